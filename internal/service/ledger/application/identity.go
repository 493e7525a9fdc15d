// internal/service/ledger/application/identity.go
package application

import (
	"context"

	"associate-ledger/internal/pkg/logger"
	"associate-ledger/internal/pkg/metrics"
	"associate-ledger/internal/service/ledger/domain"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// RegisterRoot 注册一个没有上线的根会员
func (s *LedgerService) RegisterRoot(ctx context.Context, caller domain.Principal, profile domain.Profile) (err error) {
	ctx, end := s.begin(ctx, "RegisterRoot", attribute.String("caller", string(caller)))
	defer func() { end(err) }()

	return s.register(ctx, "root", caller, func(l *domain.Ledger, now int64) (*domain.Changeset, error) {
		return l.PlanRegistration(caller, profile, "", now)
	})
}

// RegisterUnderUpline 以上线的会员号注册
func (s *LedgerService) RegisterUnderUpline(ctx context.Context, caller domain.Principal, profile domain.Profile, uplineAssociateID string) (err error) {
	ctx, end := s.begin(ctx, "RegisterUnderUpline",
		attribute.String("caller", string(caller)),
		attribute.String("upline.associate_id", uplineAssociateID))
	defer func() { end(err) }()

	return s.register(ctx, "upline", caller, func(l *domain.Ledger, now int64) (*domain.Changeset, error) {
		return l.PlanRegistrationUnderAssociateID(caller, profile, uplineAssociateID, now)
	})
}

// RegisterUnderReferralCode 以推荐人的推荐码注册
func (s *LedgerService) RegisterUnderReferralCode(ctx context.Context, caller domain.Principal, profile domain.Profile, referrerCode string) (err error) {
	ctx, end := s.begin(ctx, "RegisterUnderReferralCode",
		attribute.String("caller", string(caller)),
		attribute.String("referrer.code", referrerCode))
	defer func() { end(err) }()

	return s.register(ctx, "referral_code", caller, func(l *domain.Ledger, now int64) (*domain.Changeset, error) {
		return l.PlanRegistrationUnderReferralCode(caller, profile, referrerCode, now)
	})
}

func (s *LedgerService) register(ctx context.Context, kind string, caller domain.Principal, plan func(*domain.Ledger, int64) (*domain.Changeset, error)) error {
	cs, err := s.mutate(ctx, "register", plan)
	if err != nil {
		return err
	}
	metrics.Registered(kind)
	logger.Ctx(ctx).Info().Str("principal", string(caller)).Str("upline", string(cs.Associates[0].Upline)).
		Str("associate_id", cs.Associates[0].Profile.AssociateID).Msg("✅ Associate registered")
	return nil
}

// SaveCallerUserProfile 更新调用方的联系方式，会员号、推荐码、上线与加入时间不可修改
func (s *LedgerService) SaveCallerUserProfile(ctx context.Context, caller domain.Principal, name, email, phone string) (err error) {
	ctx, end := s.begin(ctx, "SaveCallerUserProfile", attribute.String("caller", string(caller)))
	defer func() { end(err) }()

	_, err = s.mutate(ctx, "profile update", func(l *domain.Ledger, now int64) (*domain.Changeset, error) {
		if err := s.authorizeAssociate(caller); err != nil {
			return nil, err
		}
		return l.PlanProfileUpdate(caller, name, email, phone, now)
	})
	return err
}

// GetCallerUserProfile 返回调用方的资料
func (s *LedgerService) GetCallerUserProfile(ctx context.Context, caller domain.Principal) (ProfileView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.authorizeAssociate(caller); err != nil {
		return ProfileView{}, err
	}
	a, _ := s.ledger.Associate(caller)
	return s.profileView(a), nil
}

// GetUserProfile 读取任意会员的资料，非本人需要 admin
func (s *LedgerService) GetUserProfile(ctx context.Context, caller, user domain.Principal) (ProfileView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.authorizeSelfOrAdmin(caller, user); err != nil {
		return ProfileView{}, err
	}
	a, ok := s.ledger.Associate(user)
	if !ok {
		return ProfileView{}, errors.Wrapf(domain.ErrAssociateNotFound, "principal %s", user)
	}
	return s.profileView(a), nil
}

func (s *LedgerService) profileView(a domain.Associate) ProfileView {
	return ProfileView{
		Principal: a.Principal,
		Profile:   a.Profile,
		Upline:    a.Upline,
		Status:    a.Status,
		Role:      s.roleOf(a.Principal),
		JoinedAt:  a.JoinedAt,
	}
}

// GetCallerUserRole 返回调用方的角色，未知账户为 guest
func (s *LedgerService) GetCallerUserRole(ctx context.Context, caller domain.Principal) domain.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roleOf(caller)
}

// IsCallerAdmin 判断调用方是否为 admin
func (s *LedgerService) IsCallerAdmin(ctx context.Context, caller domain.Principal) bool {
	return s.GetCallerUserRole(ctx, caller) == domain.RoleAdmin
}

// AssignCallerUserRole 修改某个账户的角色，仅 admin 可调用。
// 部署方指定的 bootstrap admin 的角色不能通过此接口修改。
func (s *LedgerService) AssignCallerUserRole(ctx context.Context, caller, user domain.Principal, role domain.Role) (err error) {
	ctx, end := s.begin(ctx, "AssignCallerUserRole",
		attribute.String("caller", string(caller)),
		attribute.String("user", string(user)),
		attribute.String("role", string(role)))
	defer func() { end(err) }()

	_, err = s.mutate(ctx, "role assignment", func(l *domain.Ledger, now int64) (*domain.Changeset, error) {
		if err := s.authorize(caller, domain.CapAssignRoles); err != nil {
			return nil, err
		}
		if _, ok := s.admins[user]; ok {
			return nil, errors.Wrapf(domain.ErrValidation, "%s is a bootstrap admin", user)
		}
		return l.PlanRoleAssignment(caller, user, role, now)
	})
	if err == nil {
		logger.Ctx(ctx).Info().Str("user", string(user)).Str("role", string(role)).Str("by", string(caller)).Msg("Role assigned")
	}
	return err
}

// GetDirectReferrals 按注册顺序返回调用方的直接下线
func (s *LedgerService) GetDirectReferrals(ctx context.Context, caller domain.Principal) ([]domain.Associate, error) {
	return s.DirectReferralsOf(ctx, caller, caller)
}

// DirectReferralsOf 返回某会员的直接下线，非本人需要 admin
func (s *LedgerService) DirectReferralsOf(ctx context.Context, caller, associate domain.Principal) ([]domain.Associate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.authorizeSelfOrAdmin(caller, associate); err != nil {
		return nil, err
	}
	children := s.ledger.DirectReferrals(associate)
	out := make([]domain.Associate, 0, len(children))
	for _, p := range children {
		a, _ := s.ledger.Associate(p)
		out = append(out, a)
	}
	return out, nil
}

// GetDownlineStructure 返回调用方的两层下线
func (s *LedgerService) GetDownlineStructure(ctx context.Context, caller domain.Principal) (domain.DownlineStructure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.authorize(caller, domain.CapReadOwnData); err != nil {
		return domain.DownlineStructure{}, err
	}
	return s.ledger.Downline(caller), nil
}
