// internal/service/ledger/infrastructure/adapter/redis_idempotency_guard.go
package adapter

import (
	"context"
	"strconv"
	"time"

	"associate-ledger/internal/pkg/redis"
	"associate-ledger/internal/service/ledger/domain"

	"github.com/pkg/errors"
)

const (
	idempotencyKeyPrefix = "ledger:order-request:"
	pendingMarker        = "pending"

	bindScriptName    = "ledger_idempotency_bind"
	releaseScriptName = "ledger_idempotency_release"
)

// 只有仍处于 pending 的键才能被绑定或释放，已绑定订单号的键不会被误删
const bindScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
	return 1
end
return 0
`

const releaseScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`

// RedisIdempotencyGuard 实现了 port.IdempotencyGuard 接口
type RedisIdempotencyGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisIdempotencyGuard 创建守卫并预加载脚本
func NewRedisIdempotencyGuard(ctx context.Context, client *redis.Client, ttl time.Duration) (*RedisIdempotencyGuard, error) {
	if err := client.LoadScriptFromContent(ctx, bindScriptName, bindScript); err != nil {
		return nil, err
	}
	if err := client.LoadScriptFromContent(ctx, releaseScriptName, releaseScript); err != nil {
		return nil, err
	}
	return &RedisIdempotencyGuard{client: client, ttl: ttl}, nil
}

func (g *RedisIdempotencyGuard) Reserve(ctx context.Context, key string) error {
	ok, err := g.client.GetClient().SetNX(ctx, idempotencyKeyPrefix+key, pendingMarker, g.ttl).Result()
	if err != nil {
		return errors.Wrapf(err, "reserve request key %s", key)
	}
	if !ok {
		return errors.Wrapf(domain.ErrDuplicateRequest, "request key %s", key)
	}
	return nil
}

func (g *RedisIdempotencyGuard) Bind(ctx context.Context, key string, orderID uint64) error {
	res, err := g.client.RunScript(ctx, bindScriptName, []string{idempotencyKeyPrefix + key},
		pendingMarker, strconv.FormatUint(orderID, 10), g.ttl.Milliseconds())
	if err != nil {
		return err
	}
	if n, _ := res.(int64); n != 1 {
		return errors.Errorf("request key %s expired before order %d was bound", key, orderID)
	}
	return nil
}

func (g *RedisIdempotencyGuard) Release(ctx context.Context, key string) error {
	_, err := g.client.RunScript(ctx, releaseScriptName, []string{idempotencyKeyPrefix + key}, pendingMarker)
	return err
}
