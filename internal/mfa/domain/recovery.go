package domain

import "time"

// RecoveryCode is one entry in a user's backup code set. Codes are stored as
// salted argon2id hashes; consuming one marks it used but keeps the row for
// audit. A regeneration replaces the whole set atomically.
type RecoveryCode struct {
	ID          string
	UserID      string
	TenantID    string
	CodeHash    string
	GeneratedAt time.Time
	UsedAt      *time.Time
}
