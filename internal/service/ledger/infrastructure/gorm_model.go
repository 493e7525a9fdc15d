// internal/service/ledger/infrastructure/gorm_model.go
package infrastructure

import "associate-ledger/internal/service/ledger/domain"

// 所有时间戳均为纳秒整数，列名带 _ns 后缀，避免 GORM 的自动时间戳以秒覆盖它们。

type associateModel struct {
	Principal    string `gorm:"primaryKey;size:128"`
	Name         string `gorm:"size:255;not null"`
	Email        string `gorm:"size:255"`
	Phone        string `gorm:"size:64"`
	AssociateID  string `gorm:"size:64;not null;uniqueIndex"`
	ReferralCode string `gorm:"size:64;not null;uniqueIndex"`
	Upline       string `gorm:"size:128;index"`
	Status       string `gorm:"size:16;not null"`
	JoinedAtNs   int64
	Seq          uint64 `gorm:"not null;uniqueIndex"`
}

func (associateModel) TableName() string { return "ledger_associates" }

func toAssociateModel(a domain.Associate) associateModel {
	return associateModel{
		Principal:    string(a.Principal),
		Name:         a.Profile.Name,
		Email:        a.Profile.Email,
		Phone:        a.Profile.Phone,
		AssociateID:  a.Profile.AssociateID,
		ReferralCode: a.Profile.ReferralCode,
		Upline:       string(a.Upline),
		Status:       string(a.Status),
		JoinedAtNs:   a.JoinedAt,
		Seq:          a.Seq,
	}
}

func (m associateModel) toDomain() domain.Associate {
	return domain.Associate{
		Principal: domain.Principal(m.Principal),
		Profile: domain.Profile{
			Name:         m.Name,
			Email:        m.Email,
			Phone:        m.Phone,
			AssociateID:  m.AssociateID,
			ReferralCode: m.ReferralCode,
		},
		Upline:   domain.Principal(m.Upline),
		Status:   domain.AssociateStatus(m.Status),
		JoinedAt: m.JoinedAtNs,
		Seq:      m.Seq,
	}
}

type roleModel struct {
	Principal string `gorm:"primaryKey;size:128"`
	Role      string `gorm:"size:16;not null"`
}

func (roleModel) TableName() string { return "ledger_roles" }

type walletModel struct {
	Associate      string `gorm:"primaryKey;size:128"`
	Balance        int64  `gorm:"not null"`
	TotalEarned    int64  `gorm:"not null"`
	TotalWithdrawn int64  `gorm:"not null"`
	UpdatedAtNs    int64
}

func (walletModel) TableName() string { return "ledger_wallets" }

func toWalletModel(w domain.Wallet) walletModel {
	return walletModel{
		Associate:      string(w.Associate),
		Balance:        w.Balance,
		TotalEarned:    w.TotalEarned,
		TotalWithdrawn: w.TotalWithdrawn,
		UpdatedAtNs:    w.UpdatedAt,
	}
}

func (m walletModel) toDomain() domain.Wallet {
	return domain.Wallet{
		Associate:      domain.Principal(m.Associate),
		Balance:        m.Balance,
		TotalEarned:    m.TotalEarned,
		TotalWithdrawn: m.TotalWithdrawn,
		UpdatedAt:      m.UpdatedAtNs,
	}
}

type productModel struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement:false"`
	Name        string `gorm:"size:255;not null"`
	Description string `gorm:"type:text"`
	Category    string `gorm:"size:16;not null;index"`
	Price       int64  `gorm:"not null"`
	CreatedAtNs int64
	UpdatedAtNs int64
}

func (productModel) TableName() string { return "ledger_products" }

func toProductModel(p domain.Product) productModel {
	return productModel{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Category:    string(p.Category),
		Price:       p.Price,
		CreatedAtNs: p.CreatedAt,
		UpdatedAtNs: p.UpdatedAt,
	}
}

func (m productModel) toDomain() domain.Product {
	return domain.Product{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Category:    domain.Category(m.Category),
		Price:       m.Price,
		CreatedAt:   m.CreatedAtNs,
		UpdatedAt:   m.UpdatedAtNs,
	}
}

type idProductModel struct {
	ProductID uint64 `gorm:"primaryKey;autoIncrement:false"`
}

func (idProductModel) TableName() string { return "ledger_id_products" }

type orderModel struct {
	ID                    uint64 `gorm:"primaryKey;autoIncrement:false"`
	Associate             string `gorm:"size:128;not null;index"`
	ProductID             uint64 `gorm:"not null"`
	Quantity              int64  `gorm:"not null"`
	TotalAmount           int64  `gorm:"not null"`
	Status                string `gorm:"size:16;not null"`
	OrderedAtNs           int64
	UpdatedAtNs           int64
	CommissionSettledAtNs int64
}

func (orderModel) TableName() string { return "ledger_orders" }

func toOrderModel(o domain.Order) orderModel {
	return orderModel{
		ID:                    o.ID,
		Associate:             string(o.Associate),
		ProductID:             o.ProductID,
		Quantity:              o.Quantity,
		TotalAmount:           o.TotalAmount,
		Status:                string(o.Status),
		OrderedAtNs:           o.OrderedAt,
		UpdatedAtNs:           o.UpdatedAt,
		CommissionSettledAtNs: o.CommissionSettledAt,
	}
}

func (m orderModel) toDomain() domain.Order {
	return domain.Order{
		ID:                  m.ID,
		Associate:           domain.Principal(m.Associate),
		ProductID:           m.ProductID,
		Quantity:            m.Quantity,
		TotalAmount:         m.TotalAmount,
		Status:              domain.OrderStatus(m.Status),
		OrderedAt:           m.OrderedAtNs,
		UpdatedAt:           m.UpdatedAtNs,
		CommissionSettledAt: m.CommissionSettledAtNs,
	}
}

// bonusRecordModel 是追加式记录，只插入不更新
type bonusRecordModel struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement:false"`
	Beneficiary string `gorm:"size:128;not null;index"`
	Purchaser   string `gorm:"size:128;not null"`
	OrderID     uint64 `gorm:"not null;index"`
	Level       int    `gorm:"not null"`
	Amount      int64  `gorm:"not null"`
	CreatedAtNs int64
}

func (bonusRecordModel) TableName() string { return "ledger_referral_bonus_records" }

func toBonusRecordModel(r domain.ReferralBonusRecord) bonusRecordModel {
	return bonusRecordModel{
		ID:          r.ID,
		Beneficiary: string(r.Beneficiary),
		Purchaser:   string(r.Purchaser),
		OrderID:     r.OrderID,
		Level:       r.Level,
		Amount:      r.Amount,
		CreatedAtNs: r.CreatedAt,
	}
}

func (m bonusRecordModel) toDomain() domain.ReferralBonusRecord {
	return domain.ReferralBonusRecord{
		ID:          m.ID,
		Beneficiary: domain.Principal(m.Beneficiary),
		Purchaser:   domain.Principal(m.Purchaser),
		OrderID:     m.OrderID,
		Level:       m.Level,
		Amount:      m.Amount,
		CreatedAt:   m.CreatedAtNs,
	}
}

type commissionRecordModel struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement:false"`
	Beneficiary string `gorm:"size:128;not null;index"`
	OrderID     uint64 `gorm:"not null;index"`
	Level       int    `gorm:"not null"`
	Amount      int64  `gorm:"not null"`
	CreatedAtNs int64
}

func (commissionRecordModel) TableName() string { return "ledger_commission_records" }

func toCommissionRecordModel(r domain.CommissionRecord) commissionRecordModel {
	return commissionRecordModel{
		ID:          r.ID,
		Beneficiary: string(r.Beneficiary),
		OrderID:     r.OrderID,
		Level:       r.Level,
		Amount:      r.Amount,
		CreatedAtNs: r.CreatedAt,
	}
}

func (m commissionRecordModel) toDomain() domain.CommissionRecord {
	return domain.CommissionRecord{
		ID:          m.ID,
		Beneficiary: domain.Principal(m.Beneficiary),
		OrderID:     m.OrderID,
		Level:       m.Level,
		Amount:      m.Amount,
		CreatedAt:   m.CreatedAtNs,
	}
}

type payoutModel struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement:false"`
	Associate     string `gorm:"size:128;not null;index"`
	Amount        int64  `gorm:"not null"`
	Status        string `gorm:"size:16;not null;index"`
	RequestedAtNs int64
	ProcessedBy   string `gorm:"size:128"`
	ProcessedAtNs int64
}

func (payoutModel) TableName() string { return "ledger_payout_requests" }

func toPayoutModel(p domain.PayoutRequest) payoutModel {
	return payoutModel{
		ID:            p.ID,
		Associate:     string(p.Associate),
		Amount:        p.Amount,
		Status:        string(p.Status),
		RequestedAtNs: p.RequestedAt,
		ProcessedBy:   string(p.ProcessedBy),
		ProcessedAtNs: p.ProcessedAt,
	}
}

func (m payoutModel) toDomain() domain.PayoutRequest {
	return domain.PayoutRequest{
		ID:          m.ID,
		Associate:   domain.Principal(m.Associate),
		Amount:      m.Amount,
		Status:      domain.PayoutStatus(m.Status),
		RequestedAt: m.RequestedAtNs,
		ProcessedBy: domain.Principal(m.ProcessedBy),
		ProcessedAt: m.ProcessedAtNs,
	}
}

// bonusAggregateModel 每层一行；Level 0 行保存总计与最后更新时间
type bonusAggregateModel struct {
	Level         int   `gorm:"primaryKey;autoIncrement:false"`
	Count         int64 `gorm:"not null"`
	Amount        int64 `gorm:"not null"`
	LastUpdatedNs int64
}

func (bonusAggregateModel) TableName() string { return "ledger_bonus_aggregate" }

func toAggregateModels(a domain.BonusAggregate) []bonusAggregateModel {
	rows := []bonusAggregateModel{{Level: 0, Count: a.TotalBonuses, Amount: a.TotalAmount, LastUpdatedNs: a.LastUpdated}}
	for level := 1; level <= domain.MaxBonusLevel; level++ {
		t := a.Level(level)
		rows = append(rows, bonusAggregateModel{Level: level, Count: t.Count, Amount: t.Amount})
	}
	return rows
}

func aggregateFromModels(rows []bonusAggregateModel) domain.BonusAggregate {
	var a domain.BonusAggregate
	for _, r := range rows {
		switch {
		case r.Level == 0:
			a.TotalBonuses, a.TotalAmount, a.LastUpdated = r.Count, r.Amount, r.LastUpdatedNs
		case r.Level >= 1 && r.Level <= domain.MaxBonusLevel:
			a.Levels[r.Level-1] = domain.LevelTotals{Count: r.Count, Amount: r.Amount}
		}
	}
	return a
}

// allModels 是 AutoMigrate 需要的全部表
func allModels() []interface{} {
	return []interface{}{
		&associateModel{}, &roleModel{}, &walletModel{}, &productModel{}, &idProductModel{},
		&orderModel{}, &bonusRecordModel{}, &commissionRecordModel{}, &payoutModel{}, &bonusAggregateModel{},
	}
}
