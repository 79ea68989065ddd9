package domain

import "time"

// ChallengePurpose binds a one-time code to the flow that issued it.
type ChallengePurpose string

const (
	PurposeEnroll ChallengePurpose = "enroll"
	PurposeLogin  ChallengePurpose = "login"
)

// Challenge is a live, time-bounded verification attempt. At most one live
// challenge exists per (user, purpose); issuing a new one supersedes any
// prior unconsumed challenge for that pair.
type Challenge struct {
	ID         string
	UserID     string
	TenantID   string
	Purpose    ChallengePurpose
	FactorType FactorType

	// CodeHash is the SHA-256 fingerprint of the delivered code. The
	// plaintext code is never persisted.
	CodeHash string

	ExpiresAt         time.Time
	AttemptsRemaining int
	ConsumedAt        *time.Time
	SupersededAt      *time.Time
	CreatedAt         time.Time
}

// Live reports whether the challenge can still be verified at the given time.
func (c Challenge) Live(now time.Time) bool {
	return c.ConsumedAt == nil &&
		c.SupersededAt == nil &&
		c.AttemptsRemaining > 0 &&
		now.Before(c.ExpiresAt)
}
