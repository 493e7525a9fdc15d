// internal/service/ledger/infrastructure/memory_store.go
package infrastructure

import (
	"context"
	"sync"

	"associate-ledger/internal/service/ledger/domain"

	"github.com/pkg/errors"
)

// MemoryStore 把提交的变更集应用到一个独立的影子账本上，
// 用于本地运行和测试。FailNext 可以让下一次提交失败，以验证回滚行为。
type MemoryStore struct {
	mu       sync.Mutex
	shadow   *domain.Ledger
	commits  int
	failNext error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{shadow: domain.NewLedger()}
}

// FailNext 让下一次 Commit 返回 err
func (s *MemoryStore) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

// Commits 返回成功提交的次数
func (s *MemoryStore) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

func (s *MemoryStore) Load(ctx context.Context) (domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shadow.Snapshot(), nil
}

func (s *MemoryStore) Commit(ctx context.Context, cs *domain.Changeset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failNext; err != nil {
		s.failNext = nil
		return errors.WithMessage(err, "memory store commit")
	}
	s.shadow.Apply(cs)
	s.commits++
	return nil
}
