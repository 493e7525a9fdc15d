// internal/service/ledger/domain/settlement.go
package domain

import "github.com/pkg/errors"

// OrderFacts 是判断订单是否为合格购买时可用的事实
type OrderFacts struct {
	ProductID   uint64
	Category    Category
	Quantity    int64
	TotalAmount int64
	IsIDProduct bool
}

// QualificationRule 决定一个订单是否触发固定奖金结算。
// 规则执行出错时整个下单操作失败，不会产生任何状态变更。
type QualificationRule interface {
	Qualifies(facts OrderFacts) (bool, error)
}

// PlanOrder 规划一次下单: 创建 PLACED 订单，并在同一个变更集中完成固定奖金结算。
func (l *Ledger) PlanOrder(caller Principal, productID uint64, quantity int64, schedule BonusSchedule, rule QualificationRule, now int64) (*Changeset, Order, error) {
	if quantity < 1 {
		return nil, Order{}, ErrInvalidQuantity
	}
	product, ok := l.products[productID]
	if !ok {
		return nil, Order{}, errors.Wrapf(ErrProductNotFound, "product %d", productID)
	}
	if _, ok := l.associates[caller]; !ok {
		return nil, Order{}, errors.Wrapf(ErrNotRegistered, "principal %s", caller)
	}
	total, err := OrderTotal(product.Price, quantity)
	if err != nil {
		return nil, Order{}, err
	}

	order := Order{
		ID:          l.next.order,
		Associate:   caller,
		ProductID:   productID,
		Quantity:    quantity,
		TotalAmount: total,
		Status:      OrderPlaced,
		OrderedAt:   now,
		UpdatedAt:   now,
	}
	cs := NewChangeset()
	cs.Orders = append(cs.Orders, order)
	cs.emit(Event{Type: EventOrderPlaced, Associate: caller, OrderID: order.ID, ProductID: productID, Amount: total, Status: string(OrderPlaced), OccurredAt: now})

	qualified := true
	if rule != nil {
		qualified, err = rule.Qualifies(OrderFacts{
			ProductID:   productID,
			Category:    product.Category,
			Quantity:    quantity,
			TotalAmount: total,
			IsIDProduct: l.IsIDProduct(productID),
		})
		if err != nil {
			return nil, Order{}, errors.Wrapf(err, "evaluate qualification rule for order %d", order.ID)
		}
	}
	if qualified {
		if err := l.settleFixedBonus(cs, order, schedule, now); err != nil {
			return nil, Order{}, err
		}
	}
	cs.Settlements = append(cs.Settlements, order.ID)
	return cs, order, nil
}

// settleFixedBonus 沿上线链条最多走 7 层，按固定奖金表给每一层的上线入账，
// 追加奖金记录并更新聚合。任一步失败则整个变更集被丢弃。
func (l *Ledger) settleFixedBonus(cs *Changeset, order Order, schedule BonusSchedule, now int64) error {
	if l.IsSettled(order.ID) {
		return errors.Errorf("order %d already settled", order.ID)
	}
	agg := l.aggregate
	if cs.Aggregate != nil {
		agg = *cs.Aggregate
	}
	nextID := l.next.bonus
	for i, ancestor := range l.UplineChain(order.Associate, MaxBonusLevel) {
		level := i + 1
		amount := schedule.Amount(level)
		w, err := l.draftWallet(cs, ancestor).Credit(amount, now)
		if err != nil {
			return errors.WithMessagef(err, "credit level %d bonus for order %d", level, order.ID)
		}
		cs.Wallets[ancestor] = w

		record := ReferralBonusRecord{
			ID:          nextID,
			Beneficiary: ancestor,
			Purchaser:   order.Associate,
			OrderID:     order.ID,
			Level:       level,
			Amount:      amount,
			CreatedAt:   now,
		}
		nextID++
		cs.Bonuses = append(cs.Bonuses, record)
		agg = agg.Add(record)
		cs.emit(Event{Type: EventReferralBonusCredited, Associate: ancestor, Counterparty: order.Associate, OrderID: order.ID, Level: level, Amount: amount, OccurredAt: now})
	}
	if len(cs.Bonuses) > 0 {
		cs.Aggregate = &agg
	}
	return nil
}

// PlanLegacyCommission 规划旧版百分比佣金结算(只到第 2 层)。
// 该路径与固定奖金互相独立，每个订单最多结算一次。
func (l *Ledger) PlanLegacyCommission(orderID uint64, schedule CommissionSchedule, now int64) (*Changeset, error) {
	order, ok := l.orders[orderID]
	if !ok {
		return nil, errors.Wrapf(ErrOrderNotFound, "order %d", orderID)
	}
	if order.CommissionSettled() {
		return nil, errors.Wrapf(ErrCommissionAlreadySettled, "order %d", orderID)
	}

	cs := NewChangeset()
	nextID := l.next.commission
	for i, ancestor := range l.UplineChain(order.Associate, MaxCommissionLevel) {
		level := i + 1
		amount, err := schedule.Amount(level, order.TotalAmount)
		if err != nil {
			return nil, err
		}
		w, err := l.draftWallet(cs, ancestor).Credit(amount, now)
		if err != nil {
			return nil, errors.WithMessagef(err, "credit level %d commission for order %d", level, orderID)
		}
		cs.Wallets[ancestor] = w
		cs.Commissions = append(cs.Commissions, CommissionRecord{
			ID:          nextID,
			Beneficiary: ancestor,
			OrderID:     orderID,
			Level:       level,
			Amount:      amount,
			CreatedAt:   now,
		})
		nextID++
		cs.emit(Event{Type: EventCommissionCredited, Associate: ancestor, Counterparty: order.Associate, OrderID: orderID, Level: level, Amount: amount, OccurredAt: now})
	}
	order.CommissionSettledAt = now
	order.UpdatedAt = now
	cs.Orders = append(cs.Orders, order)
	return cs, nil
}

// PlanOrderDelivered 规划订单发货
func (l *Ledger) PlanOrderDelivered(orderID uint64, now int64) (*Changeset, error) {
	order, ok := l.orders[orderID]
	if !ok {
		return nil, errors.Wrapf(ErrOrderNotFound, "order %d", orderID)
	}
	delivered, err := order.MarkDelivered(now)
	if err != nil {
		return nil, err
	}
	cs := NewChangeset()
	cs.Orders = append(cs.Orders, delivered)
	cs.emit(Event{Type: EventOrderDelivered, Associate: order.Associate, OrderID: orderID, Status: string(OrderDelivered), OccurredAt: now})
	return cs, nil
}
