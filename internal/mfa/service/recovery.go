package service

import (
	"context"
	"fmt"
	"time"

	"github.com/quollhq/aegis/internal/mfa/domain"
	"github.com/quollhq/aegis/internal/mfa/store"
	"github.com/quollhq/aegis/pkg/cryptox"
	"github.com/quollhq/aegis/pkg/idx"
)

const (
	recoveryCodeCount = 10
	recoveryCodeBytes = cryptox.TokenSize128
)

// RecoveryService manages the user's backup code set. Codes are opaque
// high-entropy tokens, stored as salted argon2id hashes; the plaintext set
// is returned exactly once at generation.
type RecoveryService struct {
	Store store.Store
}

// Generate replaces the user's entire recovery set atomically and returns
// the fresh plaintext codes.
func (s *RecoveryService) Generate(ctx context.Context, auth domain.AuthContext) ([]string, error) {
	codes := make([]string, recoveryCodeCount)
	hashes := make([]string, recoveryCodeCount)
	for i := range codes {
		code, err := cryptox.GenerateToken(recoveryCodeBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to generate recovery code: %w", err)
		}
		hash, err := cryptox.HashSecret(code)
		if err != nil {
			return nil, fmt.Errorf("failed to hash recovery code: %w", err)
		}
		codes[i], hashes[i] = code, hash
	}

	now := time.Now().UTC()
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RecoveryCodes().DeleteAllRecoveryCodes(ctx, auth.UserID); err != nil {
			return fmt.Errorf("failed to clear old recovery set: %w", err)
		}
		for _, hash := range hashes {
			c := domain.RecoveryCode{
				ID:          idx.New().String(),
				UserID:      auth.UserID,
				TenantID:    auth.TenantID,
				CodeHash:    hash,
				GeneratedAt: now,
			}
			if err := tx.RecoveryCodes().CreateRecoveryCode(ctx, c); err != nil {
				return fmt.Errorf("failed to store recovery code: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return codes, nil
}

// Consume burns one matching unused recovery code and returns how many
// remain. Hashes are salted, so matching means verifying the submission
// against every unused hash. Of two racing submissions of the same code
// exactly one wins.
func (s *RecoveryService) Consume(ctx context.Context, auth domain.AuthContext, code string) (int, error) {
	unused, err := s.Store.RecoveryCodes().ListUnusedRecoveryCodes(ctx, auth.UserID)
	if err != nil {
		return 0, fmt.Errorf("failed to list recovery codes: %w", err)
	}

	for _, rc := range unused {
		if cryptox.VerifySecret(code, rc.CodeHash) != nil {
			continue
		}
		ok, err := s.Store.RecoveryCodes().MarkRecoveryCodeUsed(ctx, rc.ID, time.Now().UTC())
		if err != nil {
			return 0, fmt.Errorf("failed to consume recovery code: %w", err)
		}
		if !ok {
			// lost the race for this exact code
			return 0, domain.ErrInvalidRecoveryCode
		}
		left, err := s.Store.RecoveryCodes().CountUnusedRecoveryCodes(ctx, auth.UserID)
		if err != nil {
			return 0, fmt.Errorf("failed to count recovery codes: %w", err)
		}
		return left, nil
	}
	return 0, domain.ErrInvalidRecoveryCode
}

// Remaining counts unused codes without consuming anything.
func (s *RecoveryService) Remaining(ctx context.Context, auth domain.AuthContext) (int, error) {
	n, err := s.Store.RecoveryCodes().CountUnusedRecoveryCodes(ctx, auth.UserID)
	if err != nil {
		return 0, fmt.Errorf("failed to count recovery codes: %w", err)
	}
	return n, nil
}
