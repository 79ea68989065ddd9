package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quollhq/aegis/internal/mfa/domain"
	"github.com/quollhq/aegis/internal/mfa/store"
	"github.com/quollhq/aegis/pkg/cryptox"
	"github.com/quollhq/aegis/pkg/idx"
	"github.com/quollhq/aegis/pkg/otpx"
)

// EnrollmentService owns the factor lifecycle: initiate, prove possession,
// activate, disable. Factors stay pending until the user proves possession;
// disabling is a soft status flip so the audit trail survives.
type EnrollmentService struct {
	Store      store.Store
	Policies   *PolicyService
	Challenges *ChallengeService
	Directory  Directory

	// Sealer encrypts TOTP secrets before they are written to the factor row.
	Sealer *cryptox.Sealer

	// Issuer is the name authenticator apps display, e.g. "Aegis".
	Issuer string
}

// InitiateTOTP creates a pending TOTP factor and returns the secret and
// provisioning URI exactly once. A prior abandoned initiation of the same
// type is discarded.
func (s *EnrollmentService) InitiateTOTP(ctx context.Context, auth domain.AuthContext, account string) (domain.TOTPEnrollment, error) {
	if err := s.checkEnrollable(ctx, auth, domain.FactorTOTP); err != nil {
		return domain.TOTPEnrollment{}, err
	}

	secret, err := otpx.GenerateSecret()
	if err != nil {
		return domain.TOTPEnrollment{}, err
	}
	sealed, err := s.Sealer.Seal(secret)
	if err != nil {
		return domain.TOTPEnrollment{}, fmt.Errorf("failed to seal TOTP secret: %w", err)
	}

	f := domain.Factor{
		ID:        idx.New().String(),
		UserID:    auth.UserID,
		TenantID:  auth.TenantID,
		Type:      domain.FactorTOTP,
		Status:    domain.FactorPending,
		SecretRef: sealed,
		CreatedAt: time.Now().UTC(),
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Factors().DeletePendingFactors(ctx, auth.UserID, domain.FactorTOTP); err != nil {
			return fmt.Errorf("failed to clear stale enrollment: %w", err)
		}
		if err := tx.Factors().CreateFactor(ctx, f); err != nil {
			return fmt.Errorf("failed to store factor: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.TOTPEnrollment{}, err
	}

	return domain.TOTPEnrollment{
		FactorID: f.ID,
		Secret:   secret,
		URI:      otpx.ProvisioningURI(s.Issuer, account, secret),
	}, nil
}

// InitiateOTP creates a pending SMS or email factor and immediately issues
// an enrollment challenge to the destination, proving the user controls it.
func (s *EnrollmentService) InitiateOTP(ctx context.Context, auth domain.AuthContext, t domain.FactorType, destination string) (domain.Factor, error) {
	if !t.Delivered() {
		return domain.Factor{}, fmt.Errorf("factor type %q is not a delivered factor", t)
	}
	if destination == "" {
		return domain.Factor{}, errors.New("destination is required")
	}
	if err := s.checkEnrollable(ctx, auth, t); err != nil {
		return domain.Factor{}, err
	}

	f := domain.Factor{
		ID:          idx.New().String(),
		UserID:      auth.UserID,
		TenantID:    auth.TenantID,
		Type:        t,
		Status:      domain.FactorPending,
		Destination: destination,
		CreatedAt:   time.Now().UTC(),
	}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Factors().DeletePendingFactors(ctx, auth.UserID, t); err != nil {
			return fmt.Errorf("failed to clear stale enrollment: %w", err)
		}
		if err := tx.Factors().CreateFactor(ctx, f); err != nil {
			return fmt.Errorf("failed to store factor: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Factor{}, err
	}

	if _, err := s.Challenges.Issue(ctx, auth, domain.PurposeEnroll, t, destination); err != nil {
		return domain.Factor{}, err
	}
	return f, nil
}

// Complete proves possession for a pending factor and activates it. TOTP
// factors verify against the sealed secret; delivered factors verify the
// enrollment challenge code.
func (s *EnrollmentService) Complete(ctx context.Context, auth domain.AuthContext, factorID, code string) error {
	f, err := s.Store.Factors().GetFactor(ctx, auth.UserID, factorID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.ErrNotEnrolled
	}
	if err != nil {
		return fmt.Errorf("failed to load factor: %w", err)
	}
	if f.Status != domain.FactorPending {
		return domain.ErrAlreadyEnrolled
	}

	switch {
	case f.Type == domain.FactorTOTP:
		secret, err := s.Sealer.Open(f.SecretRef)
		if err != nil {
			return fmt.Errorf("failed to open TOTP secret: %w", err)
		}
		if !otpx.Verify(secret, code, time.Now().UTC()) {
			return domain.ErrInvalidCode
		}
	case f.Type.Delivered():
		if err := s.Challenges.Verify(ctx, auth, domain.PurposeEnroll, f.Type, code); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unhandled factor type %q", f.Type)
	}

	if err := s.Store.Factors().ActivateFactor(ctx, f.ID, time.Now().UTC()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// another Complete won the race
			return domain.ErrAlreadyEnrolled
		}
		return fmt.Errorf("failed to activate factor: %w", err)
	}
	return nil
}

// Disable soft-disables an active factor. When tenant policy currently
// requires MFA for the caller, the last active factor cannot be removed.
func (s *EnrollmentService) Disable(ctx context.Context, auth domain.AuthContext, factorID string) error {
	f, err := s.Store.Factors().GetFactor(ctx, auth.UserID, factorID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.ErrNotEnrolled
	}
	if err != nil {
		return fmt.Errorf("failed to load factor: %w", err)
	}
	if f.Status != domain.FactorActive {
		return domain.ErrNotEnrolled
	}

	firstLoginAt, err := s.Directory.FirstLoginAt(ctx, auth.UserID)
	if err != nil {
		return fmt.Errorf("failed to resolve first login: %w", err)
	}
	required, err := s.Policies.Required(ctx, auth, firstLoginAt)
	if err != nil {
		return err
	}
	if required {
		n, err := s.Store.Factors().CountActiveFactors(ctx, auth.UserID)
		if err != nil {
			return fmt.Errorf("failed to count factors: %w", err)
		}
		if n <= 1 {
			return domain.ErrLastFactorProtected
		}
	}

	if err := s.Store.Factors().DisableFactor(ctx, f.ID, time.Now().UTC()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrNotEnrolled
		}
		return fmt.Errorf("failed to disable factor: %w", err)
	}
	return nil
}

// List returns the caller's active factors. Secret material stays sealed on
// the struct; the transport layer must never serialize SecretRef.
func (s *EnrollmentService) List(ctx context.Context, auth domain.AuthContext) ([]domain.Factor, error) {
	factors, err := s.Store.Factors().ListActiveFactors(ctx, auth.UserID, auth.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list factors: %w", err)
	}
	return factors, nil
}

func (s *EnrollmentService) checkEnrollable(ctx context.Context, auth domain.AuthContext, t domain.FactorType) error {
	p, err := s.Policies.Get(ctx, auth.TenantID)
	if err != nil {
		return err
	}
	if !p.Allows(t) {
		return domain.ErrFactorTypeNotPermitted
	}

	_, err = s.Store.Factors().GetFactorByStatus(ctx, auth.UserID, t, domain.FactorActive)
	if err == nil {
		return domain.ErrAlreadyEnrolled
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to check existing factor: %w", err)
	}
	return nil
}
