// internal/service/ledger/application/orders.go
package application

import (
	"context"

	"associate-ledger/internal/pkg/logger"
	"associate-ledger/internal/pkg/metrics"
	"associate-ledger/internal/service/ledger/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PlaceOrder 创建订单并在同一个事务中完成最多 7 层的固定奖金结算。
// requestKey 非空时通过幂等守卫保证同一个请求只会下单一次。
func (s *LedgerService) PlaceOrder(ctx context.Context, caller domain.Principal, productID uint64, quantity int64, requestKey string) (order domain.Order, err error) {
	ctx, end := s.begin(ctx, "PlaceOrder",
		attribute.String("caller", string(caller)),
		attribute.Int64("product.id", int64(productID)),
		attribute.Int64("quantity", quantity))
	defer func() { end(err) }()

	guarded := requestKey != "" && s.guard != nil
	if guarded {
		if err := s.guard.Reserve(ctx, requestKey); err != nil {
			return domain.Order{}, err
		}
	}

	cs, err := s.mutate(ctx, "order", func(l *domain.Ledger, now int64) (*domain.Changeset, error) {
		if err := s.authorize(caller, domain.CapPlaceOrder); err != nil {
			return nil, err
		}
		cs, placed, err := l.PlanOrder(caller, productID, quantity, s.bonus, s.rule, now)
		order = placed
		return cs, err
	})

	if guarded {
		if err != nil {
			if releaseErr := s.guard.Release(ctx, requestKey); releaseErr != nil {
				logger.Ctx(ctx).Error().Err(releaseErr).Str("request_key", requestKey).Msg("Failed to release idempotency key")
			}
		} else if bindErr := s.guard.Bind(ctx, requestKey, order.ID); bindErr != nil {
			logger.Ctx(ctx).Error().Err(bindErr).Str("request_key", requestKey).Uint64("order_id", order.ID).Msg("Failed to bind idempotency key")
		}
	}
	if err != nil {
		return domain.Order{}, err
	}

	metrics.OrderPlaced()
	for _, r := range cs.Bonuses {
		metrics.BonusCredited(r.Level, r.Amount)
	}
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int64("order.id", int64(order.ID)),
		attribute.Int("bonus.records", len(cs.Bonuses)))
	logger.Ctx(ctx).Info().Uint64("order_id", order.ID).Str("associate", string(caller)).
		Int64("total", order.TotalAmount).Int("bonus_records", len(cs.Bonuses)).Msg("✅ Order placed and settled")
	return order, nil
}

// GetOrderHistory 返回会员的订单，读取他人订单需要 admin
func (s *LedgerService) GetOrderHistory(ctx context.Context, caller, associate domain.Principal) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.authorizeSelfOrAdmin(caller, associate); err != nil {
		return nil, err
	}
	return s.ledger.OrdersOf(associate), nil
}

// MarkOrderDelivered 把订单从 PLACED 变为 DELIVERED
func (s *LedgerService) MarkOrderDelivered(ctx context.Context, caller domain.Principal, orderID uint64) (err error) {
	ctx, end := s.begin(ctx, "MarkOrderDelivered", attribute.Int64("order.id", int64(orderID)))
	defer func() { end(err) }()

	_, err = s.mutate(ctx, "order delivery", func(l *domain.Ledger, now int64) (*domain.Changeset, error) {
		if err := s.authorize(caller, domain.CapManageCatalog); err != nil {
			return nil, err
		}
		return l.PlanOrderDelivered(orderID, now)
	})
	return err
}

// SettleLegacyCommission 按旧版百分比佣金表结算一个订单，每个订单最多一次
func (s *LedgerService) SettleLegacyCommission(ctx context.Context, caller domain.Principal, orderID uint64) (records []domain.CommissionRecord, err error) {
	ctx, end := s.begin(ctx, "SettleLegacyCommission", attribute.Int64("order.id", int64(orderID)))
	defer func() { end(err) }()

	cs, err := s.mutate(ctx, "legacy commission", func(l *domain.Ledger, now int64) (*domain.Changeset, error) {
		if err := s.authorize(caller, domain.CapManagePayouts); err != nil {
			return nil, err
		}
		return l.PlanLegacyCommission(orderID, s.commission, now)
	})
	if err != nil {
		return nil, err
	}
	logger.Ctx(ctx).Info().Uint64("order_id", orderID).Int("records", len(cs.Commissions)).Msg("Legacy commission settled")
	return cs.Commissions, nil
}

// --- 目录 ---

// CreateProduct 新增商品
func (s *LedgerService) CreateProduct(ctx context.Context, caller domain.Principal, in domain.ProductInput) (product domain.Product, err error) {
	ctx, end := s.begin(ctx, "CreateProduct", attribute.String("product.name", in.Name))
	defer func() { end(err) }()

	_, err = s.mutate(ctx, "product create", func(l *domain.Ledger, now int64) (*domain.Changeset, error) {
		if err := s.authorize(caller, domain.CapManageCatalog); err != nil {
			return nil, err
		}
		cs, p, err := l.PlanProductCreate(in, now)
		product = p
		return cs, err
	})
	if err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// UpdateProduct 更新商品，已有订单的金额不受影响
func (s *LedgerService) UpdateProduct(ctx context.Context, caller domain.Principal, productID uint64, in domain.ProductInput) (product domain.Product, err error) {
	ctx, end := s.begin(ctx, "UpdateProduct", attribute.Int64("product.id", int64(productID)))
	defer func() { end(err) }()

	_, err = s.mutate(ctx, "product update", func(l *domain.Ledger, now int64) (*domain.Changeset, error) {
		if err := s.authorize(caller, domain.CapManageCatalog); err != nil {
			return nil, err
		}
		cs, p, err := l.PlanProductUpdate(productID, in, now)
		product = p
		return cs, err
	})
	if err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// DesignateIDProduct 将商品指定为 ID 商品
func (s *LedgerService) DesignateIDProduct(ctx context.Context, caller domain.Principal, productID uint64) error {
	return s.setIDProduct(ctx, "DesignateIDProduct", caller, productID, true)
}

// RemoveIDProduct 取消 ID 商品
func (s *LedgerService) RemoveIDProduct(ctx context.Context, caller domain.Principal, productID uint64) error {
	return s.setIDProduct(ctx, "RemoveIDProduct", caller, productID, false)
}

func (s *LedgerService) setIDProduct(ctx context.Context, op string, caller domain.Principal, productID uint64, designate bool) (err error) {
	ctx, end := s.begin(ctx, op, attribute.Int64("product.id", int64(productID)))
	defer func() { end(err) }()

	_, err = s.mutate(ctx, "id product", func(l *domain.Ledger, now int64) (*domain.Changeset, error) {
		if err := s.authorize(caller, domain.CapManageCatalog); err != nil {
			return nil, err
		}
		return l.PlanIDProduct(productID, designate, now)
	})
	return err
}

// GetProduct 读取单个商品
func (s *LedgerService) GetProduct(ctx context.Context, caller domain.Principal, productID uint64) (domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.authorize(caller, domain.CapReadCatalog); err != nil {
		return domain.Product{}, err
	}
	p, ok := s.ledger.Product(productID)
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

// GetAllProducts 按 ID 顺序返回全部商品
func (s *LedgerService) GetAllProducts(ctx context.Context, caller domain.Principal) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.authorize(caller, domain.CapReadCatalog); err != nil {
		return nil, err
	}
	return s.ledger.Products(), nil
}

// GetProductsByCategory 返回某一分类下的商品
func (s *LedgerService) GetProductsByCategory(ctx context.Context, caller domain.Principal, category domain.Category) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.authorize(caller, domain.CapReadCatalog); err != nil {
		return nil, err
	}
	var out []domain.Product
	for _, p := range s.ledger.Products() {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out, nil
}

// GetIDProducts 返回全部 ID 商品
func (s *LedgerService) GetIDProducts(ctx context.Context, caller domain.Principal) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.authorize(caller, domain.CapReadCatalog); err != nil {
		return nil, err
	}
	ids := s.ledger.IDProducts()
	out := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.ledger.Product(id); ok {
			out = append(out, p)
		}
	}
	return out, nil
}
