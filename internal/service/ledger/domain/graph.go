// internal/service/ledger/domain/graph.go
package domain

import "github.com/pkg/errors"

// DownlineStructure 是某会员的前两层下线
type DownlineStructure struct {
	Level1      []Principal
	Level2      []Principal
	Level1Count int
	Level2Count int
}

// ResolveAssociateID 按人类可读的会员号查找账户
func (l *Ledger) ResolveAssociateID(associateID string) (Principal, bool) {
	p, ok := l.byAssociateID[associateID]
	return p, ok
}

// ResolveReferralCode 按推荐码查找账户
func (l *Ledger) ResolveReferralCode(code string) (Principal, bool) {
	p, ok := l.byReferralCode[code]
	return p, ok
}

// PlanRegistration 规划一次注册: 新会员、指向已存在上线的边、空钱包，
// 以及把 guest 提升为 user。upline 为空时注册为根节点。
// 边只能在注册新会员时指向已存在的上线，因此森林中不可能出现环。
func (l *Ledger) PlanRegistration(caller Principal, profile Profile, upline Principal, now int64) (*Changeset, error) {
	if caller == "" {
		return nil, errors.Wrap(ErrValidation, "caller principal is required")
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if _, exists := l.associates[caller]; exists {
		return nil, errors.Wrapf(ErrAlreadyRegistered, "principal %s", caller)
	}
	if upline != "" {
		if _, ok := l.associates[upline]; !ok {
			return nil, errors.Wrapf(ErrInvalidUpline, "upline %s", upline)
		}
	}
	if _, taken := l.byAssociateID[profile.AssociateID]; taken {
		return nil, errors.Wrapf(ErrDuplicateIdentity, "associate id %q", profile.AssociateID)
	}
	if _, taken := l.byReferralCode[profile.ReferralCode]; taken {
		return nil, errors.Wrapf(ErrDuplicateIdentity, "referral code %q", profile.ReferralCode)
	}

	cs := NewChangeset()
	cs.Associates = append(cs.Associates, Associate{
		Principal: caller,
		Profile:   profile,
		Upline:    upline,
		Status:    StatusActive,
		JoinedAt:  now,
		Seq:       l.next.seq,
	})
	cs.Wallets[caller] = Wallet{Associate: caller, UpdatedAt: now}
	if l.RoleOf(caller) == RoleGuest {
		cs.Roles[caller] = RoleUser
	}
	cs.emit(Event{Type: EventAssociateRegistered, Associate: caller, Counterparty: upline, OccurredAt: now})
	return cs, nil
}

// PlanRegistrationUnderAssociateID 按上线会员号注册
func (l *Ledger) PlanRegistrationUnderAssociateID(caller Principal, profile Profile, uplineAssociateID string, now int64) (*Changeset, error) {
	upline, ok := l.ResolveAssociateID(uplineAssociateID)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidUpline, "associate id %q", uplineAssociateID)
	}
	return l.PlanRegistration(caller, profile, upline, now)
}

// PlanRegistrationUnderReferralCode 按推荐人的推荐码注册
func (l *Ledger) PlanRegistrationUnderReferralCode(caller Principal, profile Profile, referrerCode string, now int64) (*Changeset, error) {
	upline, ok := l.ResolveReferralCode(referrerCode)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidUpline, "referral code %q", referrerCode)
	}
	return l.PlanRegistration(caller, profile, upline, now)
}

// PlanProfileUpdate 只允许修改联系方式
func (l *Ledger) PlanProfileUpdate(caller Principal, name, email, phone string, now int64) (*Changeset, error) {
	a, ok := l.associates[caller]
	if !ok {
		return nil, errors.Wrapf(ErrNotRegistered, "principal %s", caller)
	}
	updated, err := a.WithContact(name, email, phone)
	if err != nil {
		return nil, err
	}
	cs := NewChangeset()
	cs.Associates = append(cs.Associates, updated)
	cs.emit(Event{Type: EventProfileUpdated, Associate: caller, OccurredAt: now})
	return cs, nil
}

// PlanRoleAssignment 规划角色变更
func (l *Ledger) PlanRoleAssignment(by, user Principal, role Role, now int64) (*Changeset, error) {
	if user == "" {
		return nil, errors.Wrap(ErrValidation, "user principal is required")
	}
	if _, err := ParseRole(string(role)); err != nil {
		return nil, err
	}
	cs := NewChangeset()
	cs.Roles[user] = role
	cs.emit(Event{Type: EventRoleAssigned, Associate: user, Counterparty: by, Status: string(role), OccurredAt: now})
	return cs, nil
}

// DirectReferrals 按注册顺序返回直接下线，复杂度 O(children)
func (l *Ledger) DirectReferrals(p Principal) []Principal {
	return append([]Principal(nil), l.children[p]...)
}

// Downline 返回两层下线。森林结构保证第二层不会重复。
func (l *Ledger) Downline(p Principal) DownlineStructure {
	level1 := l.DirectReferrals(p)
	var level2 []Principal
	for _, child := range level1 {
		level2 = append(level2, l.children[child]...)
	}
	return DownlineStructure{
		Level1:      level1,
		Level2:      level2,
		Level1Count: len(level1),
		Level2Count: len(level2),
	}
}

// UplineChain 从直接上线开始向上走，最多 max 步或到达根节点。
// 步数同时受会员总数约束，因此即使数据被破坏也一定终止。
func (l *Ledger) UplineChain(p Principal, max int) []Principal {
	var chain []Principal
	a, ok := l.associates[p]
	for ok && !a.IsRoot() && len(chain) < max && len(chain) < len(l.associates) {
		chain = append(chain, a.Upline)
		a, ok = l.associates[a.Upline]
	}
	return chain
}
