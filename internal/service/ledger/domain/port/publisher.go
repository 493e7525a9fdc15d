package port

import (
	"context"

	"associate-ledger/internal/service/ledger/domain"
)

// EventPublisher 是账本领域事件的出站端口。
// 只在变更集提交成功之后调用；发布失败不会回滚已提交的状态。
type EventPublisher interface {
	Publish(ctx context.Context, events []domain.Event) error
}
