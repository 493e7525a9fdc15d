// internal/service/ledger/domain/wallet.go
package domain

import (
	"math"

	"github.com/pkg/errors"
)

// Wallet 是会员的可提现余额。
// 不变式: Balance == TotalEarned - TotalWithdrawn 且 Balance >= 0。
type Wallet struct {
	Associate      Principal
	Balance        int64
	TotalEarned    int64
	TotalWithdrawn int64
	UpdatedAt      int64
}

// Consistent 检查钱包不变式
func (w Wallet) Consistent() bool {
	return w.Balance >= 0 && w.Balance == w.TotalEarned-w.TotalWithdrawn
}

// Credit 入账。金额为 0 时只刷新时间戳。
func (w Wallet) Credit(amount, now int64) (Wallet, error) {
	if amount < 0 {
		return w, errors.Wrapf(ErrInvalidAmount, "credit of %d", amount)
	}
	if w.TotalEarned > math.MaxInt64-amount {
		return w, errors.Wrapf(ErrValidation, "credit of %d overflows wallet of %s", amount, w.Associate)
	}
	w.Balance += amount
	w.TotalEarned += amount
	w.UpdatedAt = now
	return w, nil
}

// Debit 提现扣款，同时累加 TotalWithdrawn
func (w Wallet) Debit(amount, now int64) (Wallet, error) {
	if amount <= 0 {
		return w, ErrInvalidAmount
	}
	if amount > w.Balance {
		return w, errors.Wrapf(ErrInsufficientBalance, "balance %d, requested %d", w.Balance, amount)
	}
	w.Balance -= amount
	w.TotalWithdrawn += amount
	w.UpdatedAt = now
	return w, nil
}

// SetBalance 是管理员的直接调整。差额计入 TotalEarned，
// 因此不变式保持成立，TotalWithdrawn 不受影响。
func (w Wallet) SetBalance(target, now int64) (Wallet, error) {
	if target < 0 {
		return w, errors.Wrapf(ErrInvalidAmount, "balance %d", target)
	}
	if target > math.MaxInt64-w.TotalWithdrawn {
		return w, errors.Wrapf(ErrValidation, "balance %d overflows total earned", target)
	}
	w.TotalEarned = target + w.TotalWithdrawn
	w.Balance = target
	w.UpdatedAt = now
	return w, nil
}
