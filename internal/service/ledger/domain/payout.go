// internal/service/ledger/domain/payout.go
package domain

import "github.com/pkg/errors"

// PayoutStatus 定义了提现申请的状态。PAID 和 REJECTED 都是终态。
type PayoutStatus string

const (
	PayoutPending  PayoutStatus = "PENDING"
	PayoutPaid     PayoutStatus = "PAID"
	PayoutRejected PayoutStatus = "REJECTED"
)

// PayoutRequest 是一次提现申请，只能离开 PENDING 一次。
type PayoutRequest struct {
	ID          uint64
	Associate   Principal
	Amount      int64
	Status      PayoutStatus
	RequestedAt int64

	// 仅在离开 PENDING 时写入
	ProcessedBy Principal
	ProcessedAt int64
}

// IsTerminal 判断申请是否已处理
func (p PayoutRequest) IsTerminal() bool {
	return p.Status != PayoutPending
}

func (p PayoutRequest) transition(to PayoutStatus, by Principal, now int64) (PayoutRequest, error) {
	if p.IsTerminal() {
		return p, errors.Wrapf(ErrPayoutAlreadyProcessed, "payout %d is %s", p.ID, p.Status)
	}
	p.Status = to
	p.ProcessedBy = by
	p.ProcessedAt = now
	return p, nil
}

// Approve 将申请标记为已支付。扣款由调用方在同一变更集中完成。
func (p PayoutRequest) Approve(by Principal, now int64) (PayoutRequest, error) {
	return p.transition(PayoutPaid, by, now)
}

// Reject 拒绝申请，余额不变
func (p PayoutRequest) Reject(by Principal, now int64) (PayoutRequest, error) {
	return p.transition(PayoutRejected, by, now)
}
