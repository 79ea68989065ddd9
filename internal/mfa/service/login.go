package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quollhq/aegis/internal/mfa/domain"
	"github.com/quollhq/aegis/internal/mfa/store"
	"github.com/quollhq/aegis/pkg/cryptox"
	"github.com/quollhq/aegis/pkg/otpx"
)

// LoginService is the login-time orchestrator. It owns the decision "does
// this sign-in need a second factor", routes code delivery and verification
// to the right collaborator per method, and applies the trusted-device
// exemption. Session minting stays with the caller.
type LoginService struct {
	Store      store.Store
	Policies   *PolicyService
	Challenges *ChallengeService
	Recovery   *RecoveryService
	Devices    *DeviceService
	Directory  Directory

	Sealer *cryptox.Sealer

	// Clock is overridable in tests. Nil means time.Now.
	Clock func() time.Time
}

func (s *LoginService) now() time.Time {
	if s.Clock != nil {
		return s.Clock().UTC()
	}
	return time.Now().UTC()
}

// Evaluate answers whether MFA stands between this login and a session.
// Order matters: policy and enrollment state decide whether a challenge is
// conceptually required before device trust can waive it.
func (s *LoginService) Evaluate(ctx context.Context, auth domain.AuthContext, deviceFingerprint string) (domain.LoginEvaluation, error) {
	factors, err := s.Store.Factors().ListActiveFactors(ctx, auth.UserID, auth.TenantID)
	if err != nil {
		return domain.LoginEvaluation{}, fmt.Errorf("failed to list factors: %w", err)
	}

	if len(factors) == 0 {
		firstLoginAt, err := s.Directory.FirstLoginAt(ctx, auth.UserID)
		if err != nil {
			return domain.LoginEvaluation{}, fmt.Errorf("failed to resolve first login: %w", err)
		}
		required, err := s.Policies.Required(ctx, auth, firstLoginAt)
		if err != nil {
			return domain.LoginEvaluation{}, err
		}
		if required {
			return domain.LoginEvaluation{Outcome: domain.OutcomeEnrollmentRequired}, nil
		}
		return domain.LoginEvaluation{Outcome: domain.OutcomeNotRequired}, nil
	}

	trusted, err := s.Devices.IsTrusted(ctx, auth, deviceFingerprint)
	if err != nil {
		return domain.LoginEvaluation{}, err
	}
	if trusted {
		return domain.LoginEvaluation{Outcome: domain.OutcomeDeviceTrusted}, nil
	}

	methods := make([]domain.Method, 0, len(factors)+1)
	for _, f := range factors {
		methods = append(methods, domain.Method(f.Type))
	}
	left, err := s.Recovery.Remaining(ctx, auth)
	if err != nil {
		return domain.LoginEvaluation{}, err
	}
	if left > 0 {
		methods = append(methods, domain.MethodRecovery)
	}

	return domain.LoginEvaluation{
		Outcome: domain.OutcomeChallengeRequired,
		Methods: methods,
	}, nil
}

// SendCode issues a login challenge over a delivered factor the user has
// active. TOTP and recovery never need delivery.
func (s *LoginService) SendCode(ctx context.Context, auth domain.AuthContext, method domain.Method) error {
	t := domain.FactorType(method)
	if !t.Delivered() {
		return fmt.Errorf("method %q does not use delivered codes", method)
	}

	f, err := s.Store.Factors().GetFactorByStatus(ctx, auth.UserID, t, domain.FactorActive)
	if errors.Is(err, store.ErrNotFound) {
		return domain.ErrNotEnrolled
	}
	if err != nil {
		return fmt.Errorf("failed to load factor: %w", err)
	}

	_, err = s.Challenges.Issue(ctx, auth, domain.PurposeLogin, t, f.Destination)
	return err
}

// DeviceIntent carries the optional "remember this device" request that
// rides along with a verification.
type DeviceIntent struct {
	Trust       bool
	Fingerprint string
	UserAgent   string
	IPAddress   string
}

// Verify checks a login-time submission. On success the optional device
// intent is honored; a failed verification never trusts anything.
func (s *LoginService) Verify(ctx context.Context, auth domain.AuthContext, method domain.Method, code string, device DeviceIntent) (domain.LoginVerification, error) {
	result := domain.LoginVerification{Method: method}

	switch method {
	case domain.MethodTOTP:
		if err := s.verifyTOTP(ctx, auth, code); err != nil {
			return domain.LoginVerification{}, err
		}
	case domain.MethodSMS, domain.MethodEmail:
		if err := s.Challenges.Verify(ctx, auth, domain.PurposeLogin, domain.FactorType(method), code); err != nil {
			return domain.LoginVerification{}, err
		}
	case domain.MethodRecovery:
		left, err := s.Recovery.Consume(ctx, auth, code)
		if err != nil {
			return domain.LoginVerification{}, err
		}
		result.UsedRecoveryCode = true
		result.RecoveryCodesLeft = left
	default:
		return domain.LoginVerification{}, fmt.Errorf("unknown method %q", method)
	}

	if device.Trust && device.Fingerprint != "" {
		if err := s.Devices.Trust(ctx, auth, device.Fingerprint, device.UserAgent, device.IPAddress); err != nil {
			return domain.LoginVerification{}, err
		}
	}
	return result, nil
}

// RegenerateRecovery replaces the recovery set after a fresh primary-factor
// verification. A recovery code cannot vouch for its own replacement.
func (s *LoginService) RegenerateRecovery(ctx context.Context, auth domain.AuthContext, method domain.Method, code string) ([]string, error) {
	switch method {
	case domain.MethodTOTP:
		if err := s.verifyTOTP(ctx, auth, code); err != nil {
			return nil, err
		}
	case domain.MethodSMS, domain.MethodEmail:
		if err := s.Challenges.Verify(ctx, auth, domain.PurposeLogin, domain.FactorType(method), code); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("method %q cannot authorize recovery regeneration", method)
	}
	return s.Recovery.Generate(ctx, auth)
}

func (s *LoginService) verifyTOTP(ctx context.Context, auth domain.AuthContext, code string) error {
	f, err := s.Store.Factors().GetFactorByStatus(ctx, auth.UserID, domain.FactorTOTP, domain.FactorActive)
	if errors.Is(err, store.ErrNotFound) {
		return domain.ErrNotEnrolled
	}
	if err != nil {
		return fmt.Errorf("failed to load factor: %w", err)
	}

	secret, err := s.Sealer.Open(f.SecretRef)
	if err != nil {
		return fmt.Errorf("failed to open TOTP secret: %w", err)
	}
	if !otpx.Verify(secret, code, s.now()) {
		return domain.ErrInvalidCode
	}
	return nil
}
