// internal/service/ledger/infrastructure/adapter/memory.go
package adapter

import (
	"context"
	"sync"

	"associate-ledger/internal/pkg/logger"
	"associate-ledger/internal/service/ledger/domain"

	"github.com/pkg/errors"
)

// MemoryIdempotencyGuard 是单实例部署和测试使用的幂等守卫，键不会过期
type MemoryIdempotencyGuard struct {
	mu   sync.Mutex
	keys map[string]uint64 // 0 表示已占用但尚未绑定订单
}

func NewMemoryIdempotencyGuard() *MemoryIdempotencyGuard {
	return &MemoryIdempotencyGuard{keys: map[string]uint64{}}
}

func (g *MemoryIdempotencyGuard) Reserve(ctx context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, taken := g.keys[key]; taken {
		return errors.Wrapf(domain.ErrDuplicateRequest, "request key %s", key)
	}
	g.keys[key] = 0
	return nil
}

func (g *MemoryIdempotencyGuard) Bind(ctx context.Context, key string, orderID uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id, ok := g.keys[key]; !ok || id != 0 {
		return errors.Errorf("request key %s is not pending", key)
	}
	g.keys[key] = orderID
	return nil
}

func (g *MemoryIdempotencyGuard) Release(ctx context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id, ok := g.keys[key]; ok && id == 0 {
		delete(g.keys, key)
	}
	return nil
}

// OrderFor 返回请求键绑定的订单号
func (g *MemoryIdempotencyGuard) OrderFor(key string) (uint64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, ok := g.keys[key]
	return id, ok && id != 0
}

// LogEventPublisher 在没有配置 Kafka 时把事件写入日志
type LogEventPublisher struct{}

func (LogEventPublisher) Publish(ctx context.Context, events []domain.Event) error {
	for _, e := range events {
		logger.Ctx(ctx).Debug().Str("type", string(e.Type)).Str("associate", string(e.Associate)).
			Int64("amount", e.Amount).Msg("Ledger event")
	}
	return nil
}

// RecordingPublisher 记录所有已发布的事件
type RecordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
	Err    error
}

func (p *RecordingPublisher) Publish(ctx context.Context, events []domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.events = append(p.events, events...)
	return nil
}

// Events 返回已发布事件的副本
func (p *RecordingPublisher) Events() []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Event(nil), p.events...)
}
