// internal/service/ledger/application/service.go
package application

import (
	"context"
	"sync"
	"time"

	"associate-ledger/internal/pkg/logger"
	"associate-ledger/internal/pkg/metrics"
	"associate-ledger/internal/service/ledger/domain"
	"associate-ledger/internal/service/ledger/domain/port"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Settings 是结算与访问控制相关的配置
type Settings struct {
	Bonus      domain.BonusSchedule
	Commission domain.CommissionSchedule
	// Rule 为 nil 时每个订单都是合格购买
	Rule domain.QualificationRule
	// BootstrapAdmins 由部署方指定，始终拥有 admin 角色
	BootstrapAdmins []domain.Principal
}

// LedgerService 编排账本的所有用例。
// 写操作在全局写锁内完成 规划 → 提交 → 应用；读操作持有读锁并返回副本，
// 因此读方永远不会看到只完成了一半的变更。
type LedgerService struct {
	mu     sync.RWMutex
	ledger *domain.Ledger
	// fenced 非 nil 时拒绝所有写操作
	fenced error

	// outbox 在写锁内按提交顺序追加，flushMu 保证同一时刻只有一个发布者按顺序清空它
	outboxMu sync.Mutex
	outbox   []pendingEvents
	flushMu  sync.Mutex

	store     domain.LedgerStore
	publisher port.EventPublisher
	guard     port.IdempotencyGuard
	tracer    trace.Tracer

	bonus      domain.BonusSchedule
	commission domain.CommissionSchedule
	rule       domain.QualificationRule
	admins     map[domain.Principal]struct{}

	now func() int64
}

func NewLedgerService(ledger *domain.Ledger, store domain.LedgerStore, publisher port.EventPublisher, guard port.IdempotencyGuard, tracer trace.Tracer, settings Settings) *LedgerService {
	admins := make(map[domain.Principal]struct{}, len(settings.BootstrapAdmins))
	for _, p := range settings.BootstrapAdmins {
		admins[p] = struct{}{}
	}
	return &LedgerService{
		ledger: ledger, store: store, publisher: publisher, guard: guard, tracer: tracer,
		bonus: settings.Bonus, commission: settings.Commission, rule: settings.Rule,
		admins: admins,
		now:    func() int64 { return time.Now().UnixNano() },
	}
}

// begin 打开 span 并返回结束函数，结束时记录耗时、错误与失败指标
func (s *LedgerService) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, "app."+op, trace.WithAttributes(attrs...))
	observe := metrics.ObserveDuration(op)
	return ctx, func(err error) {
		observe()
		if err != nil {
			reason := failureReason(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, reason)
			metrics.Failed(op, reason)
			logger.Ctx(ctx).Warn().Err(err).Str("operation", op).Str("reason", reason).Msg("⚠️ Ledger operation rejected")
		}
		span.End()
	}
}

// Fence 永久禁止后续写操作，用于失去单写者锁之后。读操作不受影响
func (s *LedgerService) Fence(reason error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fenced == nil {
		s.fenced = errors.Wrap(domain.ErrWriterLost, reason.Error())
	}
}

type pendingEvents struct {
	ctx    context.Context
	events []domain.Event
}

// mutate 在写锁内规划并提交变更集，提交成功后才应用到内存账本。
// 规划或提交失败时内存状态保持不变。事件在写锁内进入 outbox，释放锁之后按提交顺序发布。
func (s *LedgerService) mutate(ctx context.Context, op string, plan func(l *domain.Ledger, now int64) (*domain.Changeset, error)) (*domain.Changeset, error) {
	s.mu.Lock()
	if s.fenced != nil {
		s.mu.Unlock()
		return nil, s.fenced
	}
	cs, err := plan(s.ledger, s.now())
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if err := s.store.Commit(ctx, cs); err != nil {
		s.mu.Unlock()
		return nil, errors.WithMessagef(err, "commit %s", op)
	}
	s.ledger.Apply(cs)
	if s.publisher != nil && len(cs.Events) > 0 {
		s.outboxMu.Lock()
		s.outbox = append(s.outbox, pendingEvents{ctx: context.WithoutCancel(ctx), events: cs.Events})
		s.outboxMu.Unlock()
	}
	s.mu.Unlock()

	trace.SpanFromContext(ctx).AddEvent("Changeset committed", trace.WithAttributes(attribute.Int("events", len(cs.Events))))
	s.flush()
	return cs, nil
}

// flush 按提交顺序尽力发布 outbox 中的事件；失败不影响已提交的状态。
// 并发的写操作可能由另一个调用方代为发布，但同一会员的事件不会乱序。
func (s *LedgerService) flush() {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	for {
		s.outboxMu.Lock()
		batch := s.outbox
		s.outbox = nil
		s.outboxMu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, p := range batch {
			if err := s.publisher.Publish(p.ctx, p.events); err != nil {
				logger.Ctx(p.ctx).Error().Err(err).Int("events", len(p.events)).Msg("Failed to publish ledger events")
			}
		}
	}
}

// roleOf 必须在持有锁时调用
func (s *LedgerService) roleOf(p domain.Principal) domain.Role {
	if _, ok := s.admins[p]; ok {
		return domain.RoleAdmin
	}
	return s.ledger.RoleOf(p)
}

func (s *LedgerService) authorize(caller domain.Principal, c domain.Capability) error {
	return domain.Authorize(s.roleOf(caller), c)
}

// authorizeAssociate 要求调用方已注册且仍持有 read-own-data，被降为 guest 的会员不能再操作自己的账户
func (s *LedgerService) authorizeAssociate(caller domain.Principal) error {
	if _, ok := s.ledger.Associate(caller); !ok {
		return errors.Wrapf(domain.ErrNotRegistered, "principal %s", caller)
	}
	return s.authorize(caller, domain.CapReadOwnData)
}

// authorizeSelfOrAdmin 允许读取自己的数据，读取他人数据需要 admin
func (s *LedgerService) authorizeSelfOrAdmin(caller, subject domain.Principal) error {
	if caller == subject {
		return s.authorize(caller, domain.CapReadOwnData)
	}
	if s.roleOf(caller) != domain.RoleAdmin {
		return errors.Wrapf(domain.ErrUnauthorized, "%s cannot read data of %s", caller, subject)
	}
	return nil
}

var failureReasons = []struct {
	err    error
	reason string
}{
	{domain.ErrDuplicateIdentity, "duplicate_identity"},
	{domain.ErrInvalidUpline, "invalid_upline"},
	{domain.ErrProductNotFound, "product_not_found"},
	{domain.ErrInvalidQuantity, "invalid_quantity"},
	{domain.ErrInvalidAmount, "invalid_amount"},
	{domain.ErrInsufficientBalance, "insufficient_balance"},
	{domain.ErrPayoutNotFound, "payout_not_found"},
	{domain.ErrPayoutAlreadyProcessed, "payout_already_processed"},
	{domain.ErrUnauthorized, "unauthorized"},
	{domain.ErrValidation, "validation"},
	{domain.ErrAssociateNotFound, "associate_not_found"},
	{domain.ErrNotRegistered, "not_registered"},
	{domain.ErrAlreadyRegistered, "already_registered"},
	{domain.ErrOrderNotFound, "order_not_found"},
	{domain.ErrInvalidOrderTransition, "invalid_order_transition"},
	{domain.ErrCommissionAlreadySettled, "commission_already_settled"},
	{domain.ErrDuplicateRequest, "duplicate_request"},
	{domain.ErrWriterLost, "writer_lost"},
}

func failureReason(err error) string {
	for _, r := range failureReasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return "internal"
}
