// internal/service/ledger/application/wallet.go
package application

import (
	"context"
	"strings"

	"associate-ledger/internal/pkg/logger"
	"associate-ledger/internal/pkg/metrics"
	"associate-ledger/internal/service/ledger/domain"

	"go.opentelemetry.io/otel/attribute"
)

// RequestPayout 创建 PENDING 提现申请，此时不扣款
func (s *LedgerService) RequestPayout(ctx context.Context, caller domain.Principal, amount int64) (req domain.PayoutRequest, err error) {
	ctx, end := s.begin(ctx, "RequestPayout",
		attribute.String("caller", string(caller)),
		attribute.Int64("amount", amount))
	defer func() { end(err) }()

	_, err = s.mutate(ctx, "payout request", func(l *domain.Ledger, now int64) (*domain.Changeset, error) {
		if err := s.authorizeAssociate(caller); err != nil {
			return nil, err
		}
		cs, r, err := l.PlanPayoutRequest(caller, amount, now)
		req = r
		return cs, err
	})
	if err != nil {
		return domain.PayoutRequest{}, err
	}
	metrics.Payout("requested")
	logger.Ctx(ctx).Info().Uint64("payout_id", req.ID).Str("associate", string(caller)).Int64("amount", amount).Msg("Payout requested")
	return req, nil
}

// ProcessPayoutRequest 批准或拒绝一个 PENDING 申请，仅 admin 可调用
func (s *LedgerService) ProcessPayoutRequest(ctx context.Context, caller domain.Principal, requestID uint64, approved bool) (req domain.PayoutRequest, err error) {
	ctx, end := s.begin(ctx, "ProcessPayoutRequest",
		attribute.Int64("payout.id", int64(requestID)),
		attribute.Bool("approved", approved))
	defer func() { end(err) }()

	_, err = s.mutate(ctx, "payout processing", func(l *domain.Ledger, now int64) (*domain.Changeset, error) {
		if err := s.authorize(caller, domain.CapManagePayouts); err != nil {
			return nil, err
		}
		cs, r, err := l.PlanPayoutProcessing(requestID, approved, caller, now)
		req = r
		return cs, err
	})
	if err != nil {
		return domain.PayoutRequest{}, err
	}
	metrics.Payout(strings.ToLower(string(req.Status)))
	logger.Ctx(ctx).Info().Uint64("payout_id", requestID).Str("status", string(req.Status)).Str("by", string(caller)).Msg("✅ Payout processed")
	return req, nil
}

// GetMyPayoutRequests 返回调用方的提现申请
func (s *LedgerService) GetMyPayoutRequests(ctx context.Context, caller domain.Principal) ([]domain.PayoutRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.authorize(caller, domain.CapReadOwnData); err != nil {
		return nil, err
	}
	return s.ledger.PayoutsOf(caller), nil
}

// GetAllPayoutRequests 按申请顺序返回全部提现申请，仅 admin 可调用
func (s *LedgerService) GetAllPayoutRequests(ctx context.Context, caller domain.Principal) ([]domain.PayoutRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.authorize(caller, domain.CapManagePayouts); err != nil {
		return nil, err
	}
	return s.ledger.Payouts(), nil
}

// UpdateWalletBalance 直接设置会员余额，差额计入 totalEarned 以保持余额不变式
func (s *LedgerService) UpdateWalletBalance(ctx context.Context, caller, associate domain.Principal, amount int64) (err error) {
	ctx, end := s.begin(ctx, "UpdateWalletBalance",
		attribute.String("associate", string(associate)),
		attribute.Int64("amount", amount))
	defer func() { end(err) }()

	_, err = s.mutate(ctx, "wallet adjustment", func(l *domain.Ledger, now int64) (*domain.Changeset, error) {
		if err := s.authorize(caller, domain.CapManagePayouts); err != nil {
			return nil, err
		}
		return l.PlanWalletAdjustment(caller, associate, amount, now)
	})
	if err == nil {
		logger.Ctx(ctx).Info().Str("associate", string(associate)).Int64("balance", amount).Str("by", string(caller)).Msg("Wallet balance adjusted")
	}
	return err
}

// GetWalletBalance 返回调用方的钱包。guest 无权读取，未注册的 admin 得到零值
func (s *LedgerService) GetWalletBalance(ctx context.Context, caller domain.Principal) (domain.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.authorize(caller, domain.CapReadOwnData); err != nil {
		return domain.Wallet{}, err
	}
	return s.ledger.Wallet(caller), nil
}

// --- 收益查询 ---

// GetEarningsDashboard 汇总调用方的收益
func (s *LedgerService) GetEarningsDashboard(ctx context.Context, caller domain.Principal) (EarningsDashboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.authorize(caller, domain.CapReadOwnData); err != nil {
		return EarningsDashboard{}, err
	}
	d := EarningsDashboard{Wallet: s.ledger.Wallet(caller)}
	for _, r := range s.ledger.BonusesOf(caller) {
		d.FixedBonusEarned += r.Amount
		d.FixedBonusCount++
	}
	for _, r := range s.ledger.CommissionsOf(caller) {
		d.CommissionEarned += r.Amount
	}
	for _, p := range s.ledger.PayoutsOf(caller) {
		if p.Status == domain.PayoutPending {
			d.PendingPayoutAmount += p.Amount
			d.PendingPayoutRequests++
		}
	}
	d.OrderCount = len(s.ledger.OrdersOf(caller))
	downline := s.ledger.Downline(caller)
	d.Level1Count, d.Level2Count = downline.Level1Count, downline.Level2Count
	return d, nil
}

// GetFixedReferralBonusSummary 返回全系统的固定奖金聚合
func (s *LedgerService) GetFixedReferralBonusSummary(ctx context.Context) BonusSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return toBonusSummary(s.ledger.Aggregate())
}

// GetReferralBonusHistory 返回调用方作为受益人的固定奖金记录
func (s *LedgerService) GetReferralBonusHistory(ctx context.Context, caller domain.Principal) ([]domain.ReferralBonusRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.authorize(caller, domain.CapReadOwnData); err != nil {
		return nil, err
	}
	return s.ledger.BonusesOf(caller), nil
}

// VerifyAggregate 用全部奖金记录重新计算聚合，并与物化的聚合比较
func (s *LedgerService) VerifyAggregate(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if recomputed := domain.RecomputeAggregate(s.ledger.Bonuses()); recomputed != s.ledger.Aggregate() {
		return domain.ErrAggregateMismatch
	}
	return nil
}
