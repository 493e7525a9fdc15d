// internal/service/ledger/domain/catalog_plan.go
package domain

import "github.com/pkg/errors"

// PlanProductCreate 规划新增商品
func (l *Ledger) PlanProductCreate(in ProductInput, now int64) (*Changeset, Product, error) {
	if err := in.Validate(); err != nil {
		return nil, Product{}, err
	}
	p := Product{
		ID:          l.next.product,
		Name:        in.Name,
		Description: in.Description,
		Category:    in.Category,
		Price:       in.Price,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	cs := NewChangeset()
	cs.Products = append(cs.Products, p)
	cs.emit(Event{Type: EventProductChanged, ProductID: p.ID, Amount: p.Price, Status: "created", OccurredAt: now})
	return cs, p, nil
}

// PlanProductUpdate 规划商品更新。已下单订单的总额不受影响。
func (l *Ledger) PlanProductUpdate(id uint64, in ProductInput, now int64) (*Changeset, Product, error) {
	p, ok := l.products[id]
	if !ok {
		return nil, Product{}, errors.Wrapf(ErrProductNotFound, "product %d", id)
	}
	if err := in.Validate(); err != nil {
		return nil, Product{}, err
	}
	p.Name = in.Name
	p.Description = in.Description
	p.Category = in.Category
	p.Price = in.Price
	p.UpdatedAt = now

	cs := NewChangeset()
	cs.Products = append(cs.Products, p)
	cs.emit(Event{Type: EventProductChanged, ProductID: p.ID, Amount: p.Price, Status: "updated", OccurredAt: now})
	return cs, p, nil
}

// PlanIDProduct 指定或移除 ID 商品
func (l *Ledger) PlanIDProduct(id uint64, designate bool, now int64) (*Changeset, error) {
	if _, ok := l.products[id]; !ok {
		return nil, errors.Wrapf(ErrProductNotFound, "product %d", id)
	}
	cs := NewChangeset()
	cs.IDProducts[id] = designate
	status := "id-designated"
	if !designate {
		status = "id-removed"
	}
	cs.emit(Event{Type: EventProductChanged, ProductID: id, Status: status, OccurredAt: now})
	return cs, nil
}
