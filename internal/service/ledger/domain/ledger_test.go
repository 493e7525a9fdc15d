package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populated(t *testing.T) *Ledger {
	t.Helper()
	l := NewLedger()
	ps := line(t, l, 4)
	product := addProduct(t, l, 250)
	cs, err := l.PlanIDProduct(product.ID, true, 2)
	apply(t, l, cs, err)

	schedule := mustBonus(t, map[int]int64{1: 100, 2: 50, 3: 25})
	cs, order, err := l.PlanOrder(ps[3], product.ID, 4, schedule, nil, 10)
	apply(t, l, cs, err)
	cs, _, err = l.PlanOrder(ps[2], product.ID, 1, schedule, nil, 11)
	apply(t, l, cs, err)

	commission, err := NewCommissionSchedule(map[int]int64{1: 1000})
	require.NoError(t, err)
	cs, err = l.PlanLegacyCommission(order.ID, commission, 12)
	apply(t, l, cs, err)

	cs, req, err := l.PlanPayoutRequest(ps[2], 150, 13)
	apply(t, l, cs, err)
	cs, _, err = l.PlanPayoutProcessing(req.ID, true, "ops", 14)
	apply(t, l, cs, err)
	cs, err = l.PlanRoleAssignment("ops", ps[0], RoleAdmin, 15)
	apply(t, l, cs, err)
	return l
}

func TestSnapshotRestore_RoundTrip(t *testing.T) {
	l := populated(t)

	restored, err := Restore(l.Snapshot())
	require.NoError(t, err)

	assert.Equal(t, l.AssociateCount(), restored.AssociateCount())
	for _, p := range []Principal{"p0", "p1", "p2", "p3"} {
		assert.Equal(t, l.Wallet(p), restored.Wallet(p), p)
		assert.Equal(t, l.DirectReferrals(p), restored.DirectReferrals(p), p)
		assert.Equal(t, l.OrdersOf(p), restored.OrdersOf(p), p)
		assert.Equal(t, l.BonusesOf(p), restored.BonusesOf(p), p)
		assert.Equal(t, l.PayoutsOf(p), restored.PayoutsOf(p), p)
		assert.Equal(t, l.RoleOf(p), restored.RoleOf(p), p)
	}
	assert.Equal(t, l.Aggregate(), restored.Aggregate())
	assert.Equal(t, l.IDProducts(), restored.IDProducts())
	assert.Equal(t, l.Products(), restored.Products())
	assert.Equal(t, l.Bonuses(), restored.Bonuses())
	assert.True(t, restored.IsSettled(1))
	assert.True(t, restored.IsSettled(2))

	// 计数器从已有的最大 ID 继续
	cs, order, err := restored.PlanOrder("p1", 1, 1, BonusSchedule{}, nil, 20)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), order.ID)
	assert.Equal(t, uint64(len(l.Bonuses())+1), cs.Bonuses[0].ID)
	_, req, err := restored.PlanPayoutRequest("p1", 1, 21)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), req.ID)
}

func TestRestore_RejectsCorruptSnapshots(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(*Snapshot)
		wantErr error
	}{
		{
			name:    "aggregate drift",
			corrupt: func(s *Snapshot) { s.Aggregate.TotalAmount++ },
			wantErr: ErrAggregateMismatch,
		},
		{
			name:    "missing bonus record",
			corrupt: func(s *Snapshot) { s.Bonuses = s.Bonuses[1:] },
			wantErr: ErrAggregateMismatch,
		},
		{
			name: "inconsistent wallet",
			corrupt: func(s *Snapshot) {
				s.Wallets[0].Balance++
			},
			wantErr: ErrValidation,
		},
		{
			name:    "unknown role",
			corrupt: func(s *Snapshot) { s.Roles["p1"] = Role("owner") },
			wantErr: ErrValidation,
		},
		{
			name: "upline registered later",
			corrupt: func(s *Snapshot) {
				for i := range s.Associates {
					if s.Associates[i].Principal == "p0" {
						s.Associates[i].Seq = 100
					}
				}
			},
			wantErr: ErrInvalidUpline,
		},
		{
			name: "dangling upline",
			corrupt: func(s *Snapshot) {
				s.Associates = append(s.Associates, Associate{Principal: "orphan", Upline: "ghost", Seq: 50,
					Profile: Profile{Name: "o", AssociateID: "AS-o", ReferralCode: "RC-o"}})
			},
			wantErr: ErrInvalidUpline,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := populated(t).Snapshot()
			tt.corrupt(&snap)
			_, err := Restore(snap)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRestore_Empty(t *testing.T) {
	l, err := Restore(Snapshot{})
	require.NoError(t, err)
	assert.Equal(t, 0, l.AssociateCount())
	assert.Equal(t, BonusAggregate{}, l.Aggregate())
}
