package domain

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ruleFunc func(OrderFacts) (bool, error)

func (f ruleFunc) Qualifies(facts OrderFacts) (bool, error) { return f(facts) }

func mustBonus(t *testing.T, levels map[int]int64) BonusSchedule {
	t.Helper()
	s, err := NewBonusSchedule(levels)
	require.NoError(t, err)
	return s
}

func addProduct(t *testing.T, l *Ledger, price int64) Product {
	t.Helper()
	cs, p, err := l.PlanProductCreate(ProductInput{Name: "Kit", Price: price, Category: CategoryProduct}, 1)
	apply(t, l, cs, err)
	return p
}

func TestPlanOrder_WalksSevenLevels(t *testing.T) {
	l := NewLedger()
	ps := line(t, l, 10)
	product := addProduct(t, l, 100)
	schedule := mustBonus(t, map[int]int64{1: 700, 2: 600, 3: 500, 4: 400, 5: 300, 6: 200, 7: 100})

	cs, order, err := l.PlanOrder(ps[9], product.ID, 3, schedule, nil, 50)
	apply(t, l, cs, err)

	assert.Equal(t, int64(300), order.TotalAmount)
	assert.Equal(t, OrderPlaced, order.Status)
	require.Len(t, cs.Bonuses, MaxBonusLevel)
	for i, r := range cs.Bonuses {
		assert.Equal(t, i+1, r.Level)
		assert.Equal(t, ps[8-i], r.Beneficiary)
		assert.Equal(t, schedule.Amount(i+1), r.Amount)
	}
	// 第 8 层及以上不结算
	assert.Equal(t, int64(0), l.Wallet(ps[1]).Balance)
	assert.Equal(t, int64(100), l.Wallet(ps[2]).Balance)

	agg := l.Aggregate()
	assert.Equal(t, int64(7), agg.TotalBonuses)
	assert.Equal(t, int64(2800), agg.TotalAmount)
	assert.Equal(t, int64(50), agg.LastUpdated)
	assert.Equal(t, RecomputeAggregate(l.Bonuses()), agg)
	assert.True(t, l.IsSettled(order.ID))
}

func TestPlanOrder_ZeroLevelsStillRecorded(t *testing.T) {
	l := NewLedger()
	ps := line(t, l, 3)
	product := addProduct(t, l, 100)

	cs, _, err := l.PlanOrder(ps[2], product.ID, 1, mustBonus(t, map[int]int64{1: 500}), nil, 9)
	apply(t, l, cs, err)

	require.Len(t, cs.Bonuses, 2)
	assert.Equal(t, int64(0), cs.Bonuses[1].Amount)
	assert.Equal(t, LevelTotals{Count: 1, Amount: 0}, l.Aggregate().Level(2))
	assert.Equal(t, int64(9), l.Wallet(ps[0]).UpdatedAt)
}

func TestPlanOrder_RootBuyerEarnsNothing(t *testing.T) {
	l := NewLedger()
	ps := line(t, l, 1)
	product := addProduct(t, l, 100)

	cs, _, err := l.PlanOrder(ps[0], product.ID, 1, mustBonus(t, map[int]int64{1: 500}), nil, 2)
	apply(t, l, cs, err)
	assert.Empty(t, cs.Bonuses)
	assert.Nil(t, cs.Aggregate)
	assert.Equal(t, BonusAggregate{}, l.Aggregate())
}

func TestPlanOrder_Failures(t *testing.T) {
	l := NewLedger()
	ps := line(t, l, 2)
	product := addProduct(t, l, 100)
	huge := addProduct(t, l, math.MaxInt64/2)
	schedule := mustBonus(t, map[int]int64{1: 500})

	tests := []struct {
		name      string
		caller    Principal
		productID uint64
		quantity  int64
		rule      QualificationRule
		wantErr   error
	}{
		{"zero quantity", ps[1], product.ID, 0, nil, ErrInvalidQuantity},
		{"unknown product", ps[1], 999, 1, nil, ErrProductNotFound},
		{"unregistered buyer", "ghost", product.ID, 1, nil, ErrNotRegistered},
		{"total overflows", ps[1], huge.ID, 3, nil, ErrInvalidQuantity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := l.PlanOrder(tt.caller, tt.productID, tt.quantity, schedule, tt.rule, 5)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("rule error", func(t *testing.T) {
		boom := errors.New("rule exploded")
		_, _, err := l.PlanOrder(ps[1], product.ID, 1, schedule, ruleFunc(func(OrderFacts) (bool, error) { return false, boom }), 5)
		assert.ErrorIs(t, err, boom)
	})
	assert.Empty(t, l.OrdersOf(ps[1]))
}

func TestPlanOrder_QualificationRule(t *testing.T) {
	l := NewLedger()
	ps := line(t, l, 2)
	product := addProduct(t, l, 100)
	cs, err := l.PlanIDProduct(product.ID, true, 2)
	apply(t, l, cs, err)

	var seen OrderFacts
	onlyLarge := ruleFunc(func(f OrderFacts) (bool, error) {
		seen = f
		return f.TotalAmount >= 500, nil
	})
	schedule := mustBonus(t, map[int]int64{1: 500})

	cs, small, err := l.PlanOrder(ps[1], product.ID, 2, schedule, onlyLarge, 3)
	apply(t, l, cs, err)
	assert.Empty(t, cs.Bonuses)
	assert.True(t, l.IsSettled(small.ID))
	assert.Equal(t, OrderFacts{ProductID: product.ID, Category: CategoryProduct, Quantity: 2, TotalAmount: 200, IsIDProduct: true}, seen)

	cs, _, err = l.PlanOrder(ps[1], product.ID, 5, schedule, onlyLarge, 4)
	apply(t, l, cs, err)
	assert.Len(t, cs.Bonuses, 1)
	assert.Equal(t, int64(500), l.Wallet(ps[0]).Balance)
	assert.Len(t, l.OrdersOf(ps[1]), 2)
}

func TestPlanLegacyCommission(t *testing.T) {
	l := NewLedger()
	ps := line(t, l, 4)
	product := addProduct(t, l, 1999)
	cs, order, err := l.PlanOrder(ps[3], product.ID, 1, BonusSchedule{}, nil, 2)
	apply(t, l, cs, err)

	commission, err := NewCommissionSchedule(map[int]int64{1: 1000, 2: 500})
	require.NoError(t, err)

	cs, err = l.PlanLegacyCommission(order.ID, commission, 3)
	apply(t, l, cs, err)

	require.Len(t, cs.Commissions, 2)
	// 向下取整: 1999 * 10% = 199, 1999 * 5% = 99
	assert.Equal(t, int64(199), l.Wallet(ps[2]).Balance)
	assert.Equal(t, int64(99), l.Wallet(ps[1]).Balance)
	assert.Equal(t, int64(0), l.Wallet(ps[0]).Balance)

	o, _ := l.Order(order.ID)
	assert.True(t, o.CommissionSettled())

	_, err = l.PlanLegacyCommission(order.ID, commission, 4)
	assert.ErrorIs(t, err, ErrCommissionAlreadySettled)
	_, err = l.PlanLegacyCommission(999, commission, 4)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestPlanOrderDelivered(t *testing.T) {
	l := NewLedger()
	ps := line(t, l, 1)
	product := addProduct(t, l, 100)
	cs, order, err := l.PlanOrder(ps[0], product.ID, 1, BonusSchedule{}, nil, 2)
	apply(t, l, cs, err)

	cs, err = l.PlanOrderDelivered(order.ID, 3)
	apply(t, l, cs, err)
	o, _ := l.Order(order.ID)
	assert.Equal(t, OrderDelivered, o.Status)
	assert.Equal(t, int64(3), o.UpdatedAt)

	_, err = l.PlanOrderDelivered(order.ID, 4)
	assert.ErrorIs(t, err, ErrInvalidOrderTransition)
	_, err = l.PlanOrderDelivered(42, 4)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestSchedules(t *testing.T) {
	_, err := NewBonusSchedule(map[int]int64{8: 1})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = NewBonusSchedule(map[int]int64{1: -1})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = NewCommissionSchedule(map[int]int64{3: 100})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = NewCommissionSchedule(map[int]int64{1: 10001})
	assert.ErrorIs(t, err, ErrValidation)

	s := mustBonus(t, map[int]int64{2: 50})
	assert.Equal(t, int64(0), s.Amount(1))
	assert.Equal(t, int64(50), s.Amount(2))
	assert.Equal(t, int64(0), s.Amount(0))
	assert.Equal(t, int64(0), s.Amount(8))
}
