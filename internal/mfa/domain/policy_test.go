package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPolicyRequired(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := TenantPolicy{
		TenantID:         "tenant-1",
		RequiredForRoles: []string{"admin"},
	}
	member := AuthContext{UserID: "u", TenantID: "tenant-1", Roles: []string{"member"}}
	admin := AuthContext{UserID: "u", TenantID: "tenant-1", Roles: []string{"member", "admin"}}

	t.Run("role not covered", func(t *testing.T) {
		require.False(t, p.Required(member, time.Time{}, now))
	})

	t.Run("covered role", func(t *testing.T) {
		require.True(t, p.Required(admin, time.Time{}, now))
	})

	t.Run("enforcement not started yet", func(t *testing.T) {
		future := p
		future.EnforcedFrom = now.Add(24 * time.Hour)
		require.False(t, future.Required(admin, time.Time{}, now))

		started := p
		started.EnforcedFrom = now.Add(-24 * time.Hour)
		require.True(t, started.Required(admin, time.Time{}, now))
	})

	t.Run("grace period exempts new users", func(t *testing.T) {
		graced := p
		graced.GracePeriodDays = 7

		require.False(t, graced.Required(admin, now.Add(-3*24*time.Hour), now))
		require.True(t, graced.Required(admin, now.Add(-8*24*time.Hour), now))

		// unknown first login gets no grace
		require.True(t, graced.Required(admin, time.Time{}, now))
	})
}

func TestDefaultPolicy(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy("tenant-1")
	require.False(t, p.RequiresAny(AuthContext{Roles: []string{"admin"}}))
	require.True(t, p.Allows(FactorTOTP))
	require.True(t, p.Allows(FactorSMS))
	require.True(t, p.Allows(FactorEmail))
}
