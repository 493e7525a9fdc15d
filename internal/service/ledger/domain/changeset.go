// internal/service/ledger/domain/changeset.go
package domain

// Changeset 是一次变更操作的完整结果。
// 它先在账本快照上规划出来，再整体持久化，最后整体应用到内存账本，
// 因此任何一步失败都不会留下部分生效的状态。
type Changeset struct {
	Associates  []Associate
	Roles       map[Principal]Role
	Wallets     map[Principal]Wallet
	Products    []Product
	IDProducts  map[uint64]bool // true 为指定，false 为移除
	Orders      []Order
	Bonuses     []ReferralBonusRecord
	Commissions []CommissionRecord
	Payouts     []PayoutRequest
	Aggregate   *BonusAggregate
	Settlements []uint64
	Events      []Event
}

// NewChangeset 创建一个空的变更集
func NewChangeset() *Changeset {
	return &Changeset{
		Roles:      map[Principal]Role{},
		Wallets:    map[Principal]Wallet{},
		IDProducts: map[uint64]bool{},
	}
}

// Empty 判断变更集是否没有任何实体变更
func (cs *Changeset) Empty() bool {
	return len(cs.Associates) == 0 && len(cs.Roles) == 0 && len(cs.Wallets) == 0 &&
		len(cs.Products) == 0 && len(cs.IDProducts) == 0 && len(cs.Orders) == 0 &&
		len(cs.Bonuses) == 0 && len(cs.Commissions) == 0 && len(cs.Payouts) == 0 &&
		cs.Aggregate == nil && len(cs.Settlements) == 0
}

func (cs *Changeset) emit(e Event) {
	cs.Events = append(cs.Events, e)
}
