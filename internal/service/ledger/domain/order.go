// internal/service/ledger/domain/order.go
package domain

import (
	"math"

	"github.com/pkg/errors"
)

// OrderStatus 定义了订单的生命周期状态
type OrderStatus string

const (
	OrderPlaced    OrderStatus = "PLACED"
	OrderDelivered OrderStatus = "DELIVERED"
	OrderCancelled OrderStatus = "CANCELLED" // 终态，保留
)

// Order 是订单聚合的根实体。
// 除了发货状态流转和旧版佣金结算标记之外，创建后不可变。
type Order struct {
	ID          uint64
	Associate   Principal
	ProductID   uint64
	Quantity    int64
	TotalAmount int64
	Status      OrderStatus
	OrderedAt   int64
	UpdatedAt   int64

	// CommissionSettledAt 非零表示旧版百分比佣金已结算
	CommissionSettledAt int64
}

// OrderTotal 计算订单总额，数量小于 1 或溢出时返回 ErrInvalidQuantity
func OrderTotal(price, quantity int64) (int64, error) {
	if quantity < 1 {
		return 0, ErrInvalidQuantity
	}
	if price > 0 && quantity > math.MaxInt64/price {
		return 0, errors.Wrapf(ErrInvalidQuantity, "quantity %d overflows order total", quantity)
	}
	return price * quantity, nil
}

// MarkDelivered 将订单从 PLACED 流转到 DELIVERED
func (o Order) MarkDelivered(now int64) (Order, error) {
	if o.Status != OrderPlaced {
		return o, errors.Wrapf(ErrInvalidOrderTransition, "order %d is %s", o.ID, o.Status)
	}
	o.Status = OrderDelivered
	o.UpdatedAt = now
	return o, nil
}

// CommissionSettled 判断旧版佣金是否已结算
func (o Order) CommissionSettled() bool {
	return o.CommissionSettledAt != 0
}
