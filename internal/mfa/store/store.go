package store

import (
	"context"
	"errors"
	"time"

	"github.com/quollhq/aegis/internal/mfa/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres) implement this. It exposes sub-repositories to keep concerns
// tidy and testable, and to actively stop people from accidentally doing
// transactions within transactions.
type Store interface {
	Factors() Factors
	Challenges() Challenges
	RecoveryCodes() RecoveryCodes
	TrustedDevices() TrustedDevices
	Policies() Policies

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction. If fn returns an
	// error, the transaction is rolled back, otherwise committed. This is
	// the recommended way to handle multi-step atomic operations (e.g.
	// invalidate-previous-then-insert on challenge issuance).
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Factors interface {
	// CreateFactor inserts a new factor row (id is provided by app via ULID).
	CreateFactor(ctx context.Context, f domain.Factor) error

	// GetFactor returns a factor owned by the user.
	GetFactor(ctx context.Context, userID, factorID string) (domain.Factor, error)

	// GetFactorByStatus returns the user's factor of the given type and
	// status. At most one row can match per (user, type, status) for the
	// pending and active statuses.
	GetFactorByStatus(ctx context.Context, userID string, t domain.FactorType, status domain.FactorStatus) (domain.Factor, error)

	// ListActiveFactors returns the user's active factors, oldest first.
	ListActiveFactors(ctx context.Context, userID, tenantID string) ([]domain.Factor, error)

	// CountActiveFactors counts the user's active factors.
	CountActiveFactors(ctx context.Context, userID string) (int, error)

	// ActivateFactor flips a pending factor to active and stamps activated_at.
	ActivateFactor(ctx context.Context, factorID string, at time.Time) error

	// DisableFactor soft-disables a factor, keeping the row as audit trail.
	DisableFactor(ctx context.Context, factorID string, at time.Time) error

	// DeletePendingFactors removes abandoned pending rows for (user, type)
	// so a re-initiated enrollment starts clean.
	DeletePendingFactors(ctx context.Context, userID string, t domain.FactorType) error
}

type Challenges interface {
	// CreateChallenge stores a freshly issued challenge.
	CreateChallenge(ctx context.Context, c domain.Challenge) error

	// GetLiveChallenge returns the single unconsumed, unsuperseded challenge
	// for (user, purpose), regardless of expiry or attempt budget; the
	// service layer turns those conditions into the right failure.
	GetLiveChallenge(ctx context.Context, userID string, purpose domain.ChallengePurpose) (domain.Challenge, error)

	// SupersedeChallenges invalidates every live challenge for (user,
	// purpose). Run inside the same transaction as CreateChallenge so two
	// concurrent issuances never leave two valid codes behind.
	SupersedeChallenges(ctx context.Context, userID string, purpose domain.ChallengePurpose, at time.Time) error

	// ConsumeChallenge atomically consumes the challenge iff the hash
	// matches and the challenge is still live at the given time. Returns
	// false when another request got there first or the code is wrong.
	ConsumeChallenge(ctx context.Context, id, codeHash string, at time.Time) (bool, error)

	// DecrementAttempts burns one attempt iff any remain, returning the new
	// remainder. The conditional update keeps parallel failures from
	// driving the counter below zero.
	DecrementAttempts(ctx context.Context, id string) (int, error)

	// DeleteExpiredChallenges is housekeeping.
	DeleteExpiredChallenges(ctx context.Context, now time.Time) error
}

type RecoveryCodes interface {
	// CreateRecoveryCode stores one salted code hash.
	CreateRecoveryCode(ctx context.Context, c domain.RecoveryCode) error

	// ListUnusedRecoveryCodes returns the user's unconsumed codes. Hashes
	// are salted so matching happens in the service layer.
	ListUnusedRecoveryCodes(ctx context.Context, userID string) ([]domain.RecoveryCode, error)

	// MarkRecoveryCodeUsed consumes a code iff it is still unused. Returns
	// false when a parallel request already consumed it.
	MarkRecoveryCodeUsed(ctx context.Context, id string, at time.Time) (bool, error)

	// CountUnusedRecoveryCodes counts codes still available.
	CountUnusedRecoveryCodes(ctx context.Context, userID string) (int, error)

	// DeleteAllRecoveryCodes clears the set ahead of a regeneration. Run
	// inside the same transaction as the inserts replacing it.
	DeleteAllRecoveryCodes(ctx context.Context, userID string) error
}

type TrustedDevices interface {
	// UpsertTrustedDevice inserts a trust record or extends the expiry of an
	// existing one for the same (user, fingerprint).
	UpsertTrustedDevice(ctx context.Context, d domain.TrustedDevice) error

	// GetTrustedDevice returns the record for (user, tenant, fingerprint)
	// regardless of expiry; callers check Trusted().
	GetTrustedDevice(ctx context.Context, userID, tenantID, fingerprintHash string) (domain.TrustedDevice, error)

	// DeleteExpiredTrustedDevices is housekeeping.
	DeleteExpiredTrustedDevices(ctx context.Context, now time.Time) error
}

type Policies interface {
	// GetPolicy returns the tenant's MFA policy, or ErrNotFound when the
	// tenant never configured one.
	GetPolicy(ctx context.Context, tenantID string) (domain.TenantPolicy, error)

	// PutPolicy creates or replaces the tenant's policy.
	PutPolicy(ctx context.Context, p domain.TenantPolicy) error
}
