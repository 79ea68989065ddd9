package domain

import "time"

// FactorType is the closed set of authentication factor kinds a user can
// enroll. Verification strategy is selected once per tag at the orchestrator
// boundary rather than by scattering string checks through business logic.
type FactorType string

const (
	FactorTOTP  FactorType = "totp"
	FactorSMS   FactorType = "sms"
	FactorEmail FactorType = "email"
)

// ParseFactorType validates a wire-level factor type string.
func ParseFactorType(s string) (FactorType, bool) {
	switch FactorType(s) {
	case FactorTOTP, FactorSMS, FactorEmail:
		return FactorType(s), true
	}
	return "", false
}

// Delivered reports whether codes for this factor are delivered out-of-band
// (SMS/email) as opposed to computed locally by the user (TOTP).
func (t FactorType) Delivered() bool {
	return t == FactorSMS || t == FactorEmail
}

// Channel maps a delivered factor type to its notification channel name.
func (t FactorType) Channel() string {
	return string(t)
}

type FactorStatus string

const (
	FactorPending  FactorStatus = "pending"
	FactorActive   FactorStatus = "active"
	FactorDisabled FactorStatus = "disabled"
)

// Factor is an enrolled (or enrolling) authentication method. At most one
// active factor exists per (user, type). Disabled factors are kept as audit
// trail, never deleted.
type Factor struct {
	ID       string
	UserID   string
	TenantID string
	Type     FactorType
	Status   FactorStatus

	// SecretRef is the opaque handle to the TOTP secret in the secret store.
	// The raw secret never appears on this struct outside of provisioning.
	SecretRef string

	// Destination is the phone number or email address for delivered factors.
	Destination string

	CreatedAt   time.Time
	ActivatedAt *time.Time
	DisabledAt  *time.Time
}

// TOTPEnrollment is returned exactly once when a TOTP factor is initiated.
type TOTPEnrollment struct {
	FactorID string
	Secret   string // base32, shown to the user once for provisioning
	URI      string // otpauth:// URL for QR rendering
}
