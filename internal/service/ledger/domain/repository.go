// internal/service/ledger/domain/repository.go
package domain

import "context"

// LedgerStore 定义了账本的持久化接口。
// 它位于领域层，但由基础设施层实现。
type LedgerStore interface {
	// Load 读取全部持久化实体并组成快照
	Load(ctx context.Context) (Snapshot, error)

	// Commit 在一个事务中持久化变更集，失败时不得留下任何部分写入
	Commit(ctx context.Context, cs *Changeset) error
}
