package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quollhq/aegis/internal/mfa/domain"
	"github.com/quollhq/aegis/internal/mfa/store"
	"github.com/quollhq/aegis/pkg/idx"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(filepath.Join(t.TempDir(), "mfa_test.db"))
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())

	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestFactorsLifecycle(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	f := domain.Factor{
		ID:        idx.New().String(),
		UserID:    "user-1",
		TenantID:  "tenant-1",
		Type:      domain.FactorTOTP,
		Status:    domain.FactorPending,
		SecretRef: "sealed-secret",
		CreatedAt: now,
	}
	require.NoError(t, s.Factors().CreateFactor(ctx, f))

	t.Run("get pending", func(t *testing.T) {
		got, err := s.Factors().GetFactorByStatus(ctx, "user-1", domain.FactorTOTP, domain.FactorPending)
		require.NoError(t, err)
		require.Equal(t, f.ID, got.ID)
		require.Equal(t, "sealed-secret", got.SecretRef)
		require.Nil(t, got.ActivatedAt)
	})

	t.Run("second pending of same type rejected", func(t *testing.T) {
		dup := f
		dup.ID = idx.New().String()
		require.Error(t, s.Factors().CreateFactor(ctx, dup))
	})

	t.Run("activate", func(t *testing.T) {
		require.NoError(t, s.Factors().ActivateFactor(ctx, f.ID, now))

		got, err := s.Factors().GetFactor(ctx, "user-1", f.ID)
		require.NoError(t, err)
		require.Equal(t, domain.FactorActive, got.Status)
		require.NotNil(t, got.ActivatedAt)

		// already active, nothing to flip
		err = s.Factors().ActivateFactor(ctx, f.ID, now)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("list and count", func(t *testing.T) {
		list, err := s.Factors().ListActiveFactors(ctx, "user-1", "tenant-1")
		require.NoError(t, err)
		require.Len(t, list, 1)

		n, err := s.Factors().CountActiveFactors(ctx, "user-1")
		require.NoError(t, err)
		require.Equal(t, 1, n)
	})

	t.Run("disable", func(t *testing.T) {
		require.NoError(t, s.Factors().DisableFactor(ctx, f.ID, now))

		got, err := s.Factors().GetFactor(ctx, "user-1", f.ID)
		require.NoError(t, err)
		require.Equal(t, domain.FactorDisabled, got.Status)
		require.NotNil(t, got.DisabledAt)

		err = s.Factors().DisableFactor(ctx, f.ID, now)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("delete pending clears abandoned enrollment", func(t *testing.T) {
		p := f
		p.ID = idx.New().String()
		p.Status = domain.FactorPending
		require.NoError(t, s.Factors().CreateFactor(ctx, p))

		require.NoError(t, s.Factors().DeletePendingFactors(ctx, "user-1", domain.FactorTOTP))

		_, err := s.Factors().GetFactorByStatus(ctx, "user-1", domain.FactorTOTP, domain.FactorPending)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("wrong owner cannot see factor", func(t *testing.T) {
		_, err := s.Factors().GetFactor(ctx, "user-2", f.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestChallengeConsumeOnce(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	c := domain.Challenge{
		ID:                idx.New().String(),
		UserID:            "user-1",
		TenantID:          "tenant-1",
		Purpose:           domain.PurposeLogin,
		FactorType:        domain.FactorSMS,
		CodeHash:          "hash-abc",
		ExpiresAt:         now.Add(10 * time.Minute),
		AttemptsRemaining: 5,
		CreatedAt:         now,
	}
	require.NoError(t, s.Challenges().CreateChallenge(ctx, c))

	got, err := s.Challenges().GetLiveChallenge(ctx, "user-1", domain.PurposeLogin)
	require.NoError(t, err)
	require.Equal(t, c.ID, got.ID)

	// wrong hash never consumes
	ok, err := s.Challenges().ConsumeChallenge(ctx, c.ID, "hash-wrong", now)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = s.Challenges().ConsumeChallenge(ctx, c.ID, "hash-abc", now)
	require.NoError(t, err)
	require.True(t, ok)

	// second consumption loses the race
	ok, err = s.Challenges().ConsumeChallenge(ctx, c.ID, "hash-abc", now)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = s.Challenges().GetLiveChallenge(ctx, "user-1", domain.PurposeLogin)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestChallengeExpiryAndAttempts(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	c := domain.Challenge{
		ID:                idx.New().String(),
		UserID:            "user-1",
		TenantID:          "tenant-1",
		Purpose:           domain.PurposeEnroll,
		FactorType:        domain.FactorEmail,
		CodeHash:          "hash-abc",
		ExpiresAt:         now.Add(5 * time.Minute),
		AttemptsRemaining: 2,
		CreatedAt:         now,
	}
	require.NoError(t, s.Challenges().CreateChallenge(ctx, c))

	t.Run("expired challenge cannot be consumed", func(t *testing.T) {
		ok, err := s.Challenges().ConsumeChallenge(ctx, c.ID, "hash-abc", now.Add(6*time.Minute))
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("attempts count down and floor at zero", func(t *testing.T) {
		left, err := s.Challenges().DecrementAttempts(ctx, c.ID)
		require.NoError(t, err)
		require.Equal(t, 1, left)

		left, err = s.Challenges().DecrementAttempts(ctx, c.ID)
		require.NoError(t, err)
		require.Equal(t, 0, left)

		left, err = s.Challenges().DecrementAttempts(ctx, c.ID)
		require.NoError(t, err)
		require.Equal(t, 0, left)
	})

	t.Run("exhausted challenge cannot be consumed", func(t *testing.T) {
		ok, err := s.Challenges().ConsumeChallenge(ctx, c.ID, "hash-abc", now)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("housekeeping removes expired rows", func(t *testing.T) {
		require.NoError(t, s.Challenges().DeleteExpiredChallenges(ctx, now.Add(time.Hour)))

		_, err := s.Challenges().GetLiveChallenge(ctx, "user-1", domain.PurposeEnroll)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestChallengeSupersede(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	old := domain.Challenge{
		ID:                idx.New().String(),
		UserID:            "user-1",
		TenantID:          "tenant-1",
		Purpose:           domain.PurposeLogin,
		FactorType:        domain.FactorSMS,
		CodeHash:          "hash-old",
		ExpiresAt:         now.Add(10 * time.Minute),
		AttemptsRemaining: 5,
		CreatedAt:         now,
	}
	require.NoError(t, s.Challenges().CreateChallenge(ctx, old))

	// reissue inside one transaction: invalidate, then insert
	fresh := old
	fresh.ID = idx.New().String()
	fresh.CodeHash = "hash-new"
	fresh.CreatedAt = now.Add(time.Second)
	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Challenges().SupersedeChallenges(ctx, "user-1", domain.PurposeLogin, now.Add(time.Second)); err != nil {
			return err
		}
		return tx.Challenges().CreateChallenge(ctx, fresh)
	})
	require.NoError(t, err)

	got, err := s.Challenges().GetLiveChallenge(ctx, "user-1", domain.PurposeLogin)
	require.NoError(t, err)
	require.Equal(t, fresh.ID, got.ID)

	ok, err := s.Challenges().ConsumeChallenge(ctx, old.ID, "hash-old", now)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	failed := errors.New("boom")
	err := s.WithTx(ctx, func(tx store.Tx) error {
		c := domain.Challenge{
			ID:                idx.New().String(),
			UserID:            "user-1",
			TenantID:          "tenant-1",
			Purpose:           domain.PurposeLogin,
			FactorType:        domain.FactorSMS,
			CodeHash:          "hash",
			ExpiresAt:         now.Add(time.Minute),
			AttemptsRemaining: 5,
			CreatedAt:         now,
		}
		if err := tx.Challenges().CreateChallenge(ctx, c); err != nil {
			return err
		}
		return failed
	})
	require.ErrorIs(t, err, failed)

	_, err = s.Challenges().GetLiveChallenge(ctx, "user-1", domain.PurposeLogin)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRecoveryCodes(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	var ids []string
	for i := 0; i < 3; i++ {
		c := domain.RecoveryCode{
			ID:          idx.New().String(),
			UserID:      "user-1",
			TenantID:    "tenant-1",
			CodeHash:    "hash",
			GeneratedAt: now,
		}
		require.NoError(t, s.RecoveryCodes().CreateRecoveryCode(ctx, c))
		ids = append(ids, c.ID)
	}

	list, err := s.RecoveryCodes().ListUnusedRecoveryCodes(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 3)

	ok, err := s.RecoveryCodes().MarkRecoveryCodeUsed(ctx, ids[0], now)
	require.NoError(t, err)
	require.True(t, ok)

	// single use
	ok, err = s.RecoveryCodes().MarkRecoveryCodeUsed(ctx, ids[0], now)
	require.NoError(t, err)
	require.False(t, ok)

	n, err := s.RecoveryCodes().CountUnusedRecoveryCodes(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.NoError(t, s.RecoveryCodes().DeleteAllRecoveryCodes(ctx, "user-1"))

	n, err = s.RecoveryCodes().CountUnusedRecoveryCodes(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestTrustedDevices(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	d := domain.TrustedDevice{
		ID:              idx.New().String(),
		UserID:          "user-1",
		TenantID:        "tenant-1",
		FingerprintHash: "fp-hash",
		UserAgent:       "test-agent",
		IPAddress:       "203.0.113.7",
		CreatedAt:       now,
		ExpiresAt:       now.Add(24 * time.Hour),
	}
	require.NoError(t, s.TrustedDevices().UpsertTrustedDevice(ctx, d))

	t.Run("get", func(t *testing.T) {
		got, err := s.TrustedDevices().GetTrustedDevice(ctx, "user-1", "tenant-1", "fp-hash")
		require.NoError(t, err)
		require.Equal(t, d.ID, got.ID)
		require.True(t, got.Trusted(now))
	})

	t.Run("re-trust extends expiry", func(t *testing.T) {
		extended := d
		extended.ID = idx.New().String()
		extended.ExpiresAt = now.Add(48 * time.Hour)
		require.NoError(t, s.TrustedDevices().UpsertTrustedDevice(ctx, extended))

		got, err := s.TrustedDevices().GetTrustedDevice(ctx, "user-1", "tenant-1", "fp-hash")
		require.NoError(t, err)
		require.Equal(t, d.ID, got.ID) // original row survives
		require.WithinDuration(t, extended.ExpiresAt, got.ExpiresAt, time.Second)
	})

	t.Run("unknown fingerprint", func(t *testing.T) {
		_, err := s.TrustedDevices().GetTrustedDevice(ctx, "user-1", "tenant-1", "fp-other")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("housekeeping removes expired rows", func(t *testing.T) {
		require.NoError(t, s.TrustedDevices().DeleteExpiredTrustedDevices(ctx, now.Add(72*time.Hour)))

		_, err := s.TrustedDevices().GetTrustedDevice(ctx, "user-1", "tenant-1", "fp-hash")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestPolicies(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	_, err := s.Policies().GetPolicy(ctx, "tenant-unknown")
	require.ErrorIs(t, err, store.ErrNotFound)

	p := domain.TenantPolicy{
		TenantID:           "tenant-1",
		RequiredForRoles:   []string{"admin", "operator"},
		AllowedFactorTypes: []domain.FactorType{domain.FactorTOTP, domain.FactorSMS},
		GracePeriodDays:    7,
		EnforcedFrom:       now.Add(-time.Hour),
		UpdatedAt:          now,
	}
	require.NoError(t, s.Policies().PutPolicy(ctx, p))

	got, err := s.Policies().GetPolicy(ctx, "tenant-1")
	require.NoError(t, err)
	require.Equal(t, p.RequiredForRoles, got.RequiredForRoles)
	require.Equal(t, p.AllowedFactorTypes, got.AllowedFactorTypes)
	require.Equal(t, 7, got.GracePeriodDays)
	require.WithinDuration(t, p.EnforcedFrom, got.EnforcedFrom, time.Second)

	// replace
	p.RequiredForRoles = nil
	p.EnforcedFrom = time.Time{}
	require.NoError(t, s.Policies().PutPolicy(ctx, p))

	got, err = s.Policies().GetPolicy(ctx, "tenant-1")
	require.NoError(t, err)
	require.Empty(t, got.RequiredForRoles)
	require.True(t, got.EnforcedFrom.IsZero())
}
