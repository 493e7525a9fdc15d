package adapter

import (
	"context"
	"os"
	"testing"
	"time"

	"associate-ledger/internal/pkg/redis"
	"associate-ledger/internal/service/ledger/domain"
	"associate-ledger/internal/service/ledger/domain/port"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseGuard(t *testing.T, guard port.IdempotencyGuard) {
	ctx := context.Background()
	key := uuid.NewString()

	require.NoError(t, guard.Reserve(ctx, key))
	assert.ErrorIs(t, guard.Reserve(ctx, key), domain.ErrDuplicateRequest)

	// 释放后允许重试
	require.NoError(t, guard.Release(ctx, key))
	require.NoError(t, guard.Reserve(ctx, key))

	// 绑定后不可再占用，也不会被释放
	require.NoError(t, guard.Bind(ctx, key, 42))
	require.NoError(t, guard.Release(ctx, key))
	assert.ErrorIs(t, guard.Reserve(ctx, key), domain.ErrDuplicateRequest)
}

func TestMemoryIdempotencyGuard(t *testing.T) {
	guard := NewMemoryIdempotencyGuard()
	exerciseGuard(t, guard)

	require.NoError(t, guard.Reserve(context.Background(), "k"))
	require.NoError(t, guard.Bind(context.Background(), "k", 7))
	id, ok := guard.OrderFor("k")
	assert.True(t, ok)
	assert.Equal(t, uint64(7), id)
}

func TestRedisIdempotencyGuard(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()
	client, err := redis.NewClient(ctx, addr, os.Getenv("REDIS_TEST_PASSWORD"))
	require.NoError(t, err)
	defer client.Close()

	guard, err := NewRedisIdempotencyGuard(ctx, client, time.Minute)
	require.NoError(t, err)
	exerciseGuard(t, guard)
}
