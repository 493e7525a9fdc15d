package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWallet_CreditDebit(t *testing.T) {
	w := Wallet{Associate: "a"}

	w, err := w.Credit(1000, 1)
	require.NoError(t, err)
	w, err = w.Debit(300, 2)
	require.NoError(t, err)
	assert.Equal(t, Wallet{Associate: "a", Balance: 700, TotalEarned: 1000, TotalWithdrawn: 300, UpdatedAt: 2}, w)
	assert.True(t, w.Consistent())

	_, err = w.Debit(701, 3)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	_, err = w.Debit(0, 3)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = w.Credit(-1, 3)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = Wallet{TotalEarned: math.MaxInt64}.Credit(1, 3)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestWallet_SetBalance(t *testing.T) {
	w := Wallet{Associate: "a", Balance: 700, TotalEarned: 1000, TotalWithdrawn: 300}

	lower, err := w.SetBalance(200, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(500), lower.TotalEarned)
	assert.Equal(t, int64(300), lower.TotalWithdrawn)
	assert.True(t, lower.Consistent())

	_, err = w.SetBalance(-1, 5)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestPayoutLifecycle(t *testing.T) {
	l := NewLedger()
	ps := line(t, l, 1)
	cs, err := l.PlanWalletAdjustment("ops", ps[0], 1000, 2)
	apply(t, l, cs, err)

	cs, first, err := l.PlanPayoutRequest(ps[0], 600, 3)
	apply(t, l, cs, err)
	cs, second, err := l.PlanPayoutRequest(ps[0], 600, 4)
	apply(t, l, cs, err)
	assert.Equal(t, int64(1000), l.Wallet(ps[0]).Balance, "requests do not debit")

	cs, paid, err := l.PlanPayoutProcessing(first.ID, true, "ops", 5)
	apply(t, l, cs, err)
	assert.Equal(t, PayoutPaid, paid.Status)
	assert.Equal(t, Principal("ops"), paid.ProcessedBy)
	assert.Equal(t, Wallet{Associate: ps[0], Balance: 400, TotalEarned: 1000, TotalWithdrawn: 600, UpdatedAt: 5}, l.Wallet(ps[0]))

	// 余额已不足，第二个申请保持 PENDING
	_, _, err = l.PlanPayoutProcessing(second.ID, true, "ops", 6)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	p, _ := l.Payout(second.ID)
	assert.Equal(t, PayoutPending, p.Status)

	cs, rejected, err := l.PlanPayoutProcessing(second.ID, false, "ops", 7)
	apply(t, l, cs, err)
	assert.Equal(t, PayoutRejected, rejected.Status)
	assert.Equal(t, int64(400), l.Wallet(ps[0]).Balance)

	_, _, err = l.PlanPayoutProcessing(second.ID, true, "ops", 8)
	assert.ErrorIs(t, err, ErrPayoutAlreadyProcessed)
	_, _, err = l.PlanPayoutProcessing(99, true, "ops", 8)
	assert.ErrorIs(t, err, ErrPayoutNotFound)

	assert.Equal(t, []PayoutRequest{paid, rejected}, l.PayoutsOf(ps[0]))
}

func TestPlanPayoutRequest_Failures(t *testing.T) {
	l := NewLedger()
	ps := line(t, l, 1)

	_, _, err := l.PlanPayoutRequest("ghost", 1, 2)
	assert.ErrorIs(t, err, ErrNotRegistered)
	_, _, err = l.PlanPayoutRequest(ps[0], 0, 2)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, _, err = l.PlanPayoutRequest(ps[0], 1, 2)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	_, err = l.PlanWalletAdjustment("ops", "ghost", 1, 2)
	assert.ErrorIs(t, err, ErrAssociateNotFound)
}
