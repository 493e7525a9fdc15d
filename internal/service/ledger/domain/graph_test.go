package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func apply(t *testing.T, l *Ledger, cs *Changeset, err error) {
	t.Helper()
	require.NoError(t, err)
	l.Apply(cs)
}

func testProfile(id string) Profile {
	return Profile{Name: id, AssociateID: "AS-" + id, ReferralCode: "RC-" + id}
}

// line 构造 p0 ← p1 ← ... ← p(n-1)
func line(t *testing.T, l *Ledger, n int) []Principal {
	t.Helper()
	var out []Principal
	for i := 0; i < n; i++ {
		p := Principal(fmt.Sprintf("p%d", i))
		var upline Principal
		if i > 0 {
			upline = out[i-1]
		}
		cs, err := l.PlanRegistration(p, testProfile(string(p)), upline, int64(i+1))
		apply(t, l, cs, err)
		out = append(out, p)
	}
	return out
}

func TestPlanRegistration(t *testing.T) {
	l := NewLedger()
	cs, err := l.PlanRegistration("root", testProfile("root"), "", 1)
	apply(t, l, cs, err)

	a, ok := l.Associate("root")
	require.True(t, ok)
	assert.True(t, a.IsRoot())
	assert.Equal(t, StatusActive, a.Status)
	assert.Equal(t, RoleUser, l.RoleOf("root"))
	assert.Equal(t, Wallet{Associate: "root", UpdatedAt: 1}, l.Wallet("root"))

	tests := []struct {
		name    string
		caller  Principal
		profile Profile
		upline  Principal
		wantErr error
	}{
		{"already registered", "root", testProfile("x"), "", ErrAlreadyRegistered},
		{"missing upline", "x", testProfile("x"), "ghost", ErrInvalidUpline},
		{"duplicate associate id", "x", Profile{Name: "x", AssociateID: "AS-root", ReferralCode: "RC-x"}, "root", ErrDuplicateIdentity},
		{"duplicate referral code", "x", Profile{Name: "x", AssociateID: "AS-x", ReferralCode: "RC-root"}, "root", ErrDuplicateIdentity},
		{"empty name", "x", Profile{AssociateID: "AS-x", ReferralCode: "RC-x"}, "", ErrValidation},
		{"empty caller", "", testProfile("x"), "", ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.PlanRegistration(tt.caller, tt.profile, tt.upline, 2)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Equal(t, 1, l.AssociateCount())
}

func TestPlanRegistration_ResolvesUpline(t *testing.T) {
	l := NewLedger()
	line(t, l, 1)

	cs, err := l.PlanRegistrationUnderAssociateID("a", testProfile("a"), "AS-p0", 2)
	apply(t, l, cs, err)
	cs, err = l.PlanRegistrationUnderReferralCode("b", testProfile("b"), "RC-p0", 3)
	apply(t, l, cs, err)

	assert.Equal(t, []Principal{"a", "b"}, l.DirectReferrals("p0"))

	_, err = l.PlanRegistrationUnderAssociateID("c", testProfile("c"), "AS-none", 4)
	assert.ErrorIs(t, err, ErrInvalidUpline)
	_, err = l.PlanRegistrationUnderReferralCode("c", testProfile("c"), "RC-none", 4)
	assert.ErrorIs(t, err, ErrInvalidUpline)
}

func TestPlanRegistration_AdminKeepsRole(t *testing.T) {
	l := NewLedger()
	cs, err := l.PlanRoleAssignment("ops", "boss", RoleAdmin, 1)
	apply(t, l, cs, err)
	cs, err = l.PlanRegistration("boss", testProfile("boss"), "", 2)
	apply(t, l, cs, err)
	assert.Equal(t, RoleAdmin, l.RoleOf("boss"))
}

func TestDownlineAndUplineChain(t *testing.T) {
	l := NewLedger()
	ps := line(t, l, 4)
	cs, err := l.PlanRegistration("side", testProfile("side"), "p0", 10)
	apply(t, l, cs, err)

	d := l.Downline("p0")
	assert.Equal(t, []Principal{"p1", "side"}, d.Level1)
	assert.Equal(t, []Principal{"p2"}, d.Level2)
	assert.Equal(t, 2, d.Level1Count)
	assert.Equal(t, 1, d.Level2Count)

	assert.Equal(t, []Principal{"p2", "p1", "p0"}, l.UplineChain(ps[3], MaxBonusLevel))
	assert.Equal(t, []Principal{"p2", "p1"}, l.UplineChain(ps[3], 2))
	assert.Empty(t, l.UplineChain("p0", MaxBonusLevel))
	assert.Empty(t, l.UplineChain("unknown", MaxBonusLevel))
	assert.Empty(t, l.Downline("unknown").Level1)
}

func TestPlanProfileUpdate(t *testing.T) {
	l := NewLedger()
	line(t, l, 1)

	cs, err := l.PlanProfileUpdate("p0", "Renamed", "new@example.com", "555", 5)
	apply(t, l, cs, err)

	a, _ := l.Associate("p0")
	assert.Equal(t, "Renamed", a.Profile.Name)
	assert.Equal(t, "new@example.com", a.Profile.Email)
	assert.Equal(t, "AS-p0", a.Profile.AssociateID)
	assert.Equal(t, int64(1), a.JoinedAt)

	_, err = l.PlanProfileUpdate("ghost", "x", "", "", 6)
	assert.ErrorIs(t, err, ErrNotRegistered)
	_, err = l.PlanProfileUpdate("p0", " ", "", "", 6)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPlanRoleAssignment_RejectsUnknownRole(t *testing.T) {
	l := NewLedger()
	_, err := l.PlanRoleAssignment("ops", "x", Role("superuser"), 1)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = l.PlanRoleAssignment("ops", "", RoleUser, 1)
	assert.ErrorIs(t, err, ErrValidation)
}
