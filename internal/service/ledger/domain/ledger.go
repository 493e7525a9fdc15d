// internal/service/ledger/domain/ledger.go
package domain

import (
	"sort"

	"github.com/pkg/errors"
)

// Ledger 是账本的内存状态: 推荐森林、钱包、订单、奖金记录与聚合。
// 上线关系以 associate → upline 的父指针保存，子节点列表是按上线索引的二级索引。
//
// Ledger 本身不做并发控制，所有 Plan* 方法只读不写，
// 状态只能通过 Apply 改变。调用方负责串行化写操作。
type Ledger struct {
	associates     map[Principal]Associate
	byAssociateID  map[string]Principal
	byReferralCode map[string]Principal
	children       map[Principal][]Principal
	roles          map[Principal]Role
	wallets        map[Principal]Wallet

	products   map[uint64]Product
	idProducts map[uint64]struct{}

	orders   map[uint64]Order
	ordersBy map[Principal][]uint64
	settled  map[uint64]struct{}

	bonuses       []ReferralBonusRecord
	bonusesBy     map[Principal][]int
	commissions   []CommissionRecord
	commissionsBy map[Principal][]int
	aggregate     BonusAggregate

	payouts     map[uint64]PayoutRequest
	payoutsBy   map[Principal][]uint64
	payoutOrder []uint64

	next counters
}

type counters struct {
	seq, product, order, bonus, commission, payout uint64
}

// NewLedger 创建一个空账本
func NewLedger() *Ledger {
	return &Ledger{
		associates:     map[Principal]Associate{},
		byAssociateID:  map[string]Principal{},
		byReferralCode: map[string]Principal{},
		children:       map[Principal][]Principal{},
		roles:          map[Principal]Role{},
		wallets:        map[Principal]Wallet{},
		products:       map[uint64]Product{},
		idProducts:     map[uint64]struct{}{},
		orders:         map[uint64]Order{},
		ordersBy:       map[Principal][]uint64{},
		settled:        map[uint64]struct{}{},
		bonusesBy:      map[Principal][]int{},
		commissionsBy:  map[Principal][]int{},
		payouts:        map[uint64]PayoutRequest{},
		payoutsBy:      map[Principal][]uint64{},
		next:           counters{seq: 1, product: 1, order: 1, bonus: 1, commission: 1, payout: 1},
	}
}

// Apply 将一个已提交的变更集写入内存状态。Apply 不会失败。
func (l *Ledger) Apply(cs *Changeset) {
	for _, a := range cs.Associates {
		if _, exists := l.associates[a.Principal]; !exists {
			l.byAssociateID[a.Profile.AssociateID] = a.Principal
			l.byReferralCode[a.Profile.ReferralCode] = a.Principal
			if !a.IsRoot() {
				l.children[a.Upline] = append(l.children[a.Upline], a.Principal)
			}
		}
		l.associates[a.Principal] = a
		l.next.seq = maxNext(l.next.seq, a.Seq)
	}
	for p, r := range cs.Roles {
		l.roles[p] = r
	}
	for p, w := range cs.Wallets {
		l.wallets[p] = w
	}
	for _, p := range cs.Products {
		l.products[p.ID] = p
		l.next.product = maxNext(l.next.product, p.ID)
	}
	for id, designated := range cs.IDProducts {
		if designated {
			l.idProducts[id] = struct{}{}
		} else {
			delete(l.idProducts, id)
		}
	}
	for _, o := range cs.Orders {
		if _, exists := l.orders[o.ID]; !exists {
			l.ordersBy[o.Associate] = append(l.ordersBy[o.Associate], o.ID)
		}
		l.orders[o.ID] = o
		l.next.order = maxNext(l.next.order, o.ID)
	}
	for _, id := range cs.Settlements {
		l.settled[id] = struct{}{}
	}
	for _, r := range cs.Bonuses {
		l.bonusesBy[r.Beneficiary] = append(l.bonusesBy[r.Beneficiary], len(l.bonuses))
		l.bonuses = append(l.bonuses, r)
		l.next.bonus = maxNext(l.next.bonus, r.ID)
	}
	for _, r := range cs.Commissions {
		l.commissionsBy[r.Beneficiary] = append(l.commissionsBy[r.Beneficiary], len(l.commissions))
		l.commissions = append(l.commissions, r)
		l.next.commission = maxNext(l.next.commission, r.ID)
	}
	if cs.Aggregate != nil {
		l.aggregate = *cs.Aggregate
	}
	for _, p := range cs.Payouts {
		if _, exists := l.payouts[p.ID]; !exists {
			l.payoutsBy[p.Associate] = append(l.payoutsBy[p.Associate], p.ID)
			l.payoutOrder = append(l.payoutOrder, p.ID)
		}
		l.payouts[p.ID] = p
		l.next.payout = maxNext(l.next.payout, p.ID)
	}
}

func maxNext(current, used uint64) uint64 {
	if used+1 > current {
		return used + 1
	}
	return current
}

// Snapshot 是账本的完整实体集合，用于持久化层重建账本。
type Snapshot struct {
	Associates  []Associate
	Roles       map[Principal]Role
	Wallets     []Wallet
	Products    []Product
	IDProducts  []uint64
	Orders      []Order
	Bonuses     []ReferralBonusRecord
	Commissions []CommissionRecord
	Payouts     []PayoutRequest
	Aggregate   BonusAggregate
}

// Snapshot 导出当前状态的副本
func (l *Ledger) Snapshot() Snapshot {
	s := Snapshot{
		Roles:       make(map[Principal]Role, len(l.roles)),
		Bonuses:     append([]ReferralBonusRecord(nil), l.bonuses...),
		Commissions: append([]CommissionRecord(nil), l.commissions...),
		Aggregate:   l.aggregate,
	}
	for _, a := range l.associates {
		s.Associates = append(s.Associates, a)
	}
	for p, r := range l.roles {
		s.Roles[p] = r
	}
	for _, w := range l.wallets {
		s.Wallets = append(s.Wallets, w)
	}
	for _, p := range l.products {
		s.Products = append(s.Products, p)
	}
	for id := range l.idProducts {
		s.IDProducts = append(s.IDProducts, id)
	}
	for _, o := range l.orders {
		s.Orders = append(s.Orders, o)
	}
	for _, id := range l.payoutOrder {
		s.Payouts = append(s.Payouts, l.payouts[id])
	}
	return s
}

// Restore 从快照重建账本，并校验森林结构、钱包不变式与聚合一致性。
// 每个订单在下单时已完成结算，因此恢复后全部视为已结算。
func Restore(s Snapshot) (*Ledger, error) {
	associates := append([]Associate(nil), s.Associates...)
	sort.Slice(associates, func(i, j int) bool { return associates[i].Seq < associates[j].Seq })

	l := NewLedger()
	for _, a := range associates {
		if !a.IsRoot() {
			if _, ok := l.associates[a.Upline]; !ok {
				return nil, errors.Wrapf(ErrInvalidUpline, "associate %s references upline %s registered later or missing", a.Principal, a.Upline)
			}
		}
		l.Apply(&Changeset{Associates: []Associate{a}})
	}

	cs := NewChangeset()
	for p, r := range s.Roles {
		role, err := ParseRole(string(r))
		if err != nil {
			return nil, errors.WithMessagef(err, "role of %s", p)
		}
		cs.Roles[p] = role
	}
	for _, w := range s.Wallets {
		if !w.Consistent() {
			return nil, errors.Wrapf(ErrValidation, "wallet of %s violates balance invariant", w.Associate)
		}
		cs.Wallets[w.Associate] = w
	}
	for _, id := range s.IDProducts {
		cs.IDProducts[id] = true
	}
	cs.Products = sortedBy(s.Products, func(p Product) uint64 { return p.ID })
	cs.Orders = sortedBy(s.Orders, func(o Order) uint64 { return o.ID })
	cs.Bonuses = sortedBy(s.Bonuses, func(r ReferralBonusRecord) uint64 { return r.ID })
	cs.Commissions = sortedBy(s.Commissions, func(r CommissionRecord) uint64 { return r.ID })
	cs.Payouts = sortedBy(s.Payouts, func(p PayoutRequest) uint64 { return p.ID })
	for _, o := range cs.Orders {
		cs.Settlements = append(cs.Settlements, o.ID)
	}

	if recomputed := RecomputeAggregate(cs.Bonuses); recomputed != s.Aggregate {
		return nil, errors.Wrapf(ErrAggregateMismatch, "stored %d bonuses / %d total, records give %d / %d",
			s.Aggregate.TotalBonuses, s.Aggregate.TotalAmount, recomputed.TotalBonuses, recomputed.TotalAmount)
	}
	agg := s.Aggregate
	cs.Aggregate = &agg

	l.Apply(cs)
	return l, nil
}

func sortedBy[T any](in []T, key func(T) uint64) []T {
	out := append([]T(nil), in...)
	sort.Slice(out, func(i, j int) bool { return key(out[i]) < key(out[j]) })
	return out
}

// --- 查询 ---

// Associate 按账户查找会员
func (l *Ledger) Associate(p Principal) (Associate, bool) {
	a, ok := l.associates[p]
	return a, ok
}

// AssociateCount 返回已注册会员数
func (l *Ledger) AssociateCount() int {
	return len(l.associates)
}

// RoleOf 返回账户的角色，未知账户为 guest
func (l *Ledger) RoleOf(p Principal) Role {
	if r, ok := l.roles[p]; ok {
		return r
	}
	return RoleGuest
}

// Wallet 返回会员钱包，未注册时返回零值
func (l *Ledger) Wallet(p Principal) Wallet {
	if w, ok := l.wallets[p]; ok {
		return w
	}
	return Wallet{Associate: p}
}

// Product 按 ID 查找商品
func (l *Ledger) Product(id uint64) (Product, bool) {
	p, ok := l.products[id]
	return p, ok
}

// Products 按 ID 顺序返回所有商品
func (l *Ledger) Products() []Product {
	out := make([]Product, 0, len(l.products))
	for _, p := range l.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IsIDProduct 判断商品是否被指定为 ID 商品
func (l *Ledger) IsIDProduct(id uint64) bool {
	_, ok := l.idProducts[id]
	return ok
}

// IDProducts 返回所有 ID 商品
func (l *Ledger) IDProducts() []uint64 {
	out := make([]uint64, 0, len(l.idProducts))
	for id := range l.idProducts {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Order 按 ID 查找订单
func (l *Ledger) Order(id uint64) (Order, bool) {
	o, ok := l.orders[id]
	return o, ok
}

// OrdersOf 按下单顺序返回会员的订单
func (l *Ledger) OrdersOf(p Principal) []Order {
	ids := l.ordersBy[p]
	out := make([]Order, 0, len(ids))
	for _, id := range ids {
		out = append(out, l.orders[id])
	}
	return out
}

// IsSettled 判断订单是否已完成固定奖金结算
func (l *Ledger) IsSettled(orderID uint64) bool {
	_, ok := l.settled[orderID]
	return ok
}

// BonusesOf 返回某受益人的固定奖金记录
func (l *Ledger) BonusesOf(p Principal) []ReferralBonusRecord {
	idx := l.bonusesBy[p]
	out := make([]ReferralBonusRecord, 0, len(idx))
	for _, i := range idx {
		out = append(out, l.bonuses[i])
	}
	return out
}

// Bonuses 返回全部固定奖金记录
func (l *Ledger) Bonuses() []ReferralBonusRecord {
	return append([]ReferralBonusRecord(nil), l.bonuses...)
}

// CommissionsOf 返回某受益人的旧版佣金记录
func (l *Ledger) CommissionsOf(p Principal) []CommissionRecord {
	idx := l.commissionsBy[p]
	out := make([]CommissionRecord, 0, len(idx))
	for _, i := range idx {
		out = append(out, l.commissions[i])
	}
	return out
}

// Aggregate 返回当前的奖金聚合
func (l *Ledger) Aggregate() BonusAggregate {
	return l.aggregate
}

// Payout 按 ID 查找提现申请
func (l *Ledger) Payout(id uint64) (PayoutRequest, bool) {
	p, ok := l.payouts[id]
	return p, ok
}

// PayoutsOf 返回会员的提现申请
func (l *Ledger) PayoutsOf(p Principal) []PayoutRequest {
	ids := l.payoutsBy[p]
	out := make([]PayoutRequest, 0, len(ids))
	for _, id := range ids {
		out = append(out, l.payouts[id])
	}
	return out
}

// Payouts 按申请顺序返回全部提现申请
func (l *Ledger) Payouts() []PayoutRequest {
	out := make([]PayoutRequest, 0, len(l.payoutOrder))
	for _, id := range l.payoutOrder {
		out = append(out, l.payouts[id])
	}
	return out
}

// draftWallet 返回变更集中已修改的钱包，否则返回账本中的钱包
func (l *Ledger) draftWallet(cs *Changeset, p Principal) Wallet {
	if w, ok := cs.Wallets[p]; ok {
		return w
	}
	return l.Wallet(p)
}
