// internal/service/ledger/domain/catalog.go
package domain

import (
	"strings"

	"github.com/pkg/errors"
)

// Category 是目录条目的分类
type Category string

const (
	CategoryProduct Category = "Product"
	CategoryService Category = "Service"
)

// ParseCategory 解析分类字符串
func ParseCategory(s string) (Category, error) {
	switch c := Category(s); c {
	case CategoryProduct, CategoryService:
		return c, nil
	}
	return "", errors.Wrapf(ErrValidation, "unknown category %q", s)
}

// Product 对账本来说是只读的定价参考数据。价格以最小货币单位表示。
type Product struct {
	ID          uint64
	Name        string
	Description string
	Category    Category
	Price       int64
	CreatedAt   int64
	UpdatedAt   int64
}

// ProductInput 是创建或更新商品时提交的字段
type ProductInput struct {
	Name        string
	Description string
	Price       int64
	Category    Category
}

// Validate 校验商品字段
func (in ProductInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.Wrap(ErrValidation, "product name is required")
	}
	if in.Price <= 0 {
		return errors.Wrap(ErrValidation, "product price must be positive")
	}
	if _, err := ParseCategory(string(in.Category)); err != nil {
		return err
	}
	return nil
}
