package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quollhq/aegis/internal/mfa/domain"
	"github.com/quollhq/aegis/internal/mfa/notify"
	"github.com/quollhq/aegis/internal/mfa/store"
	"github.com/quollhq/aegis/pkg/cryptox"
	"github.com/quollhq/aegis/pkg/idx"
	"github.com/quollhq/aegis/pkg/otpx"
	"github.com/quollhq/aegis/pkg/slogx"
)

const (
	// challengeAttempts is the wrong-code budget per challenge.
	challengeAttempts = 5

	enrollChallengeTTL = 5 * time.Minute
	loginChallengeTTL  = 10 * time.Minute
)

// ChallengeService issues and verifies delivered one-time codes. At most one
// live challenge exists per (user, purpose); issuing a new one supersedes
// anything older inside the same transaction.
type ChallengeService struct {
	Store      store.Store
	Dispatcher notify.Dispatcher

	// Clock is overridable in tests. Nil means time.Now.
	Clock func() time.Time
}

func (s *ChallengeService) now() time.Time {
	if s.Clock != nil {
		return s.Clock().UTC()
	}
	return time.Now().UTC()
}

func purposeTTL(p domain.ChallengePurpose) time.Duration {
	if p == domain.PurposeEnroll {
		return enrollChallengeTTL
	}
	return loginChallengeTTL
}

// Issue creates a fresh challenge for (user, purpose), superseding any live
// predecessor, and dispatches the code to the factor's destination. The
// plaintext code is never persisted; only its fingerprint is.
func (s *ChallengeService) Issue(ctx context.Context, auth domain.AuthContext, purpose domain.ChallengePurpose, factorType domain.FactorType, destination string) (domain.Challenge, error) {
	if !factorType.Delivered() {
		return domain.Challenge{}, fmt.Errorf("factor type %q does not use delivered codes", factorType)
	}

	code, err := otpx.GenerateNumeric(otpx.Digits)
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("failed to generate code: %w", err)
	}

	now := s.now()
	c := domain.Challenge{
		ID:                idx.New().String(),
		UserID:            auth.UserID,
		TenantID:          auth.TenantID,
		Purpose:           purpose,
		FactorType:        factorType,
		CodeHash:          cryptox.FingerprintToken(code),
		ExpiresAt:         now.Add(purposeTTL(purpose)),
		AttemptsRemaining: challengeAttempts,
		CreatedAt:         now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Challenges().SupersedeChallenges(ctx, auth.UserID, purpose, now); err != nil {
			return fmt.Errorf("failed to supersede prior challenges: %w", err)
		}
		if err := tx.Challenges().CreateChallenge(ctx, c); err != nil {
			return fmt.Errorf("failed to store challenge: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Challenge{}, err
	}

	// Delivery is best effort once the challenge is persisted; the user can
	// always request a resend, which supersedes this one.
	if err := s.Dispatcher.Send(ctx, factorType, destination, code, purpose); err != nil {
		slogx.FromContext(ctx).Error("failed to dispatch challenge code",
			"channel", string(factorType), "purpose", string(purpose), "error", err)
	}

	return c, nil
}

// Verify checks a submitted code against the live challenge for (user,
// purpose). The code only counts for the channel it was issued over;
// submitted under any other factor type it finds no challenge. Consumption
// is atomic: of two racing correct submissions exactly one succeeds. A
// wrong code burns one attempt; spending the last one means only a fresh
// Issue can recover.
func (s *ChallengeService) Verify(ctx context.Context, auth domain.AuthContext, purpose domain.ChallengePurpose, factorType domain.FactorType, code string) error {
	c, err := s.Store.Challenges().GetLiveChallenge(ctx, auth.UserID, purpose)
	if errors.Is(err, store.ErrNotFound) {
		return domain.ErrNoChallenge
	}
	if err != nil {
		return fmt.Errorf("failed to load challenge: %w", err)
	}
	if c.FactorType != factorType {
		return domain.ErrNoChallenge
	}

	now := s.now()
	if !c.Live(now) {
		if !now.Before(c.ExpiresAt) {
			return domain.ErrExpiredCode
		}
		return domain.ErrAttemptsExhausted
	}

	ok, err := s.Store.Challenges().ConsumeChallenge(ctx, c.ID, cryptox.FingerprintToken(code), now)
	if err != nil {
		return fmt.Errorf("failed to consume challenge: %w", err)
	}
	if ok {
		return nil
	}

	// Wrong code, or a parallel request won the consumption race. Either
	// way this submission did not verify; burn an attempt.
	if _, err := s.Store.Challenges().DecrementAttempts(ctx, c.ID); err != nil {
		return fmt.Errorf("failed to burn attempt: %w", err)
	}
	return domain.ErrInvalidCode
}
