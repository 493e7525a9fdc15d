package port

import "context"

// IdempotencyGuard 保证同一个下单请求键最多对应一个订单。
// Reserve 在键已被占用时返回 domain.ErrDuplicateRequest；
// 提交成功后调用 Bind 绑定订单号，失败时调用 Release 允许客户端重试。
type IdempotencyGuard interface {
	Reserve(ctx context.Context, key string) error
	Bind(ctx context.Context, key string, orderID uint64) error
	Release(ctx context.Context, key string) error
}
