// internal/service/ledger/domain/bonus.go
package domain

import (
	"math"

	"github.com/pkg/errors"
)

const (
	// MaxBonusLevel 是固定奖金沿上线链条结算的最大层数
	MaxBonusLevel = 7
	// MaxCommissionLevel 是旧版百分比佣金的最大层数
	MaxCommissionLevel = 2

	basisPointsScale = 10000
)

// BonusSchedule 是固定奖金表，下标 0 对应第 1 层。与订单金额无关。
type BonusSchedule [MaxBonusLevel]int64

// NewBonusSchedule 从 level→amount 配置构造奖金表，未配置的层为 0
func NewBonusSchedule(levels map[int]int64) (BonusSchedule, error) {
	var s BonusSchedule
	for level, amount := range levels {
		if level < 1 || level > MaxBonusLevel {
			return s, errors.Wrapf(ErrValidation, "bonus level %d out of range 1..%d", level, MaxBonusLevel)
		}
		if amount < 0 {
			return s, errors.Wrapf(ErrValidation, "bonus amount for level %d is negative", level)
		}
		s[level-1] = amount
	}
	return s, nil
}

// Amount 返回某一层的固定奖金
func (s BonusSchedule) Amount(level int) int64 {
	if level < 1 || level > MaxBonusLevel {
		return 0
	}
	return s[level-1]
}

// CommissionSchedule 是旧版佣金的万分比，下标 0 对应第 1 层。
type CommissionSchedule [MaxCommissionLevel]int64

// NewCommissionSchedule 从 level→basis points 配置构造佣金表
func NewCommissionSchedule(levels map[int]int64) (CommissionSchedule, error) {
	var s CommissionSchedule
	for level, bps := range levels {
		if level < 1 || level > MaxCommissionLevel {
			return s, errors.Wrapf(ErrValidation, "commission level %d out of range 1..%d", level, MaxCommissionLevel)
		}
		if bps < 0 || bps > basisPointsScale {
			return s, errors.Wrapf(ErrValidation, "commission rate %d bps for level %d out of range", bps, level)
		}
		s[level-1] = bps
	}
	return s, nil
}

// Amount 按订单总额计算某一层的佣金，向下取整
func (s CommissionSchedule) Amount(level int, total int64) (int64, error) {
	if level < 1 || level > MaxCommissionLevel {
		return 0, nil
	}
	bps := s[level-1]
	if bps != 0 && total > math.MaxInt64/bps {
		return 0, errors.Wrapf(ErrValidation, "commission on %d overflows", total)
	}
	return total * bps / basisPointsScale, nil
}

// ReferralBonusRecord 是固定奖金的追加式记录，创建后不可修改。
type ReferralBonusRecord struct {
	ID          uint64
	Beneficiary Principal
	Purchaser   Principal
	OrderID     uint64
	Level       int
	Amount      int64
	CreatedAt   int64
}

// CommissionRecord 是旧版百分比佣金的追加式记录。
type CommissionRecord struct {
	ID          uint64
	Beneficiary Principal
	OrderID     uint64
	Level       int
	Amount      int64
	CreatedAt   int64
}

// LevelTotals 是某一层的计数与金额
type LevelTotals struct {
	Count  int64
	Amount int64
}

// BonusAggregate 是固定奖金记录的物化视图。
// 它是冗余的派生数据，必须始终等于 RecomputeAggregate 的结果。
type BonusAggregate struct {
	Levels       [MaxBonusLevel]LevelTotals
	TotalBonuses int64
	TotalAmount  int64
	LastUpdated  int64
}

// Level 返回某一层的统计
func (a BonusAggregate) Level(level int) LevelTotals {
	if level < 1 || level > MaxBonusLevel {
		return LevelTotals{}
	}
	return a.Levels[level-1]
}

// Add 返回累加了一条记录后的聚合
func (a BonusAggregate) Add(r ReferralBonusRecord) BonusAggregate {
	if r.Level < 1 || r.Level > MaxBonusLevel {
		return a
	}
	a.Levels[r.Level-1].Count++
	a.Levels[r.Level-1].Amount += r.Amount
	a.TotalBonuses++
	a.TotalAmount += r.Amount
	if r.CreatedAt > a.LastUpdated {
		a.LastUpdated = r.CreatedAt
	}
	return a
}

// RecomputeAggregate 从完整的奖金记录重新计算聚合
func RecomputeAggregate(records []ReferralBonusRecord) BonusAggregate {
	var a BonusAggregate
	for _, r := range records {
		a = a.Add(r)
	}
	return a
}
