// internal/service/ledger/domain/associate.go
package domain

import (
	"strings"

	"github.com/pkg/errors"
)

// Principal 是外部身份系统提供的账户标识。
type Principal string

// AssociateStatus 定义了会员的生命周期状态
type AssociateStatus string

const (
	StatusActive    AssociateStatus = "ACTIVE"
	StatusSuspended AssociateStatus = "SUSPENDED"
)

// Profile 是注册时由调用方提交的资料。
// AssociateID 和 ReferralCode 在全局范围内唯一，注册后不可修改。
type Profile struct {
	Name         string
	Email        string
	Phone        string
	AssociateID  string
	ReferralCode string
}

// Validate 校验注册资料的必填字段
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.Wrap(ErrValidation, "name is required")
	}
	if err := validateIdentifier("associate id", p.AssociateID); err != nil {
		return err
	}
	return validateIdentifier("referral code", p.ReferralCode)
}

func validateIdentifier(field, v string) error {
	if v == "" {
		return errors.Wrapf(ErrValidation, "%s is required", field)
	}
	if strings.ContainsAny(v, " \t\r\n") {
		return errors.Wrapf(ErrValidation, "%s must not contain whitespace", field)
	}
	return nil
}

// Associate 是推荐网络中的一个参与者。
// Upline 为空表示根节点；Upline 只在注册时写入一次。
type Associate struct {
	Principal Principal
	Profile   Profile
	Upline    Principal
	Status    AssociateStatus
	JoinedAt  int64

	// Seq 是注册顺序，用于恢复子节点列表的插入顺序
	Seq uint64
}

// IsRoot 判断该会员是否没有上线
func (a Associate) IsRoot() bool {
	return a.Upline == ""
}

// WithContact 返回更新了联系方式的副本，身份字段保持不变。
func (a Associate) WithContact(name, email, phone string) (Associate, error) {
	if strings.TrimSpace(name) == "" {
		return a, errors.Wrap(ErrValidation, "name is required")
	}
	a.Profile.Name = name
	a.Profile.Email = email
	a.Profile.Phone = phone
	return a, nil
}
