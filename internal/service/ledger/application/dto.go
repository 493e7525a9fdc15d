// internal/service/ledger/application/dto.go
package application

import "associate-ledger/internal/service/ledger/domain"

// ProfileView 是会员资料的读模型
type ProfileView struct {
	Principal domain.Principal
	Profile   domain.Profile
	Upline    domain.Principal
	Status    domain.AssociateStatus
	Role      domain.Role
	JoinedAt  int64
}

// LevelSummary 是某一层固定奖金的统计
type LevelSummary struct {
	Level       int
	Count       int64
	TotalAmount int64
}

// BonusSummary 是全系统固定奖金聚合的读模型
type BonusSummary struct {
	Levels       []LevelSummary
	TotalBonuses int64
	TotalAmount  int64
	LastUpdated  int64
}

// Level 返回某一层的统计，越界时返回零值
func (s BonusSummary) Level(level int) LevelSummary {
	if level < 1 || level > len(s.Levels) {
		return LevelSummary{Level: level}
	}
	return s.Levels[level-1]
}

func toBonusSummary(agg domain.BonusAggregate) BonusSummary {
	s := BonusSummary{
		Levels:       make([]LevelSummary, 0, domain.MaxBonusLevel),
		TotalBonuses: agg.TotalBonuses,
		TotalAmount:  agg.TotalAmount,
		LastUpdated:  agg.LastUpdated,
	}
	for level := 1; level <= domain.MaxBonusLevel; level++ {
		t := agg.Level(level)
		s.Levels = append(s.Levels, LevelSummary{Level: level, Count: t.Count, TotalAmount: t.Amount})
	}
	return s
}

// EarningsDashboard 汇总调用方的钱包、奖金与下线情况
type EarningsDashboard struct {
	Wallet                domain.Wallet
	FixedBonusEarned      int64
	FixedBonusCount       int
	CommissionEarned      int64
	PendingPayoutAmount   int64
	PendingPayoutRequests int
	OrderCount            int
	Level1Count           int
	Level2Count           int
}
