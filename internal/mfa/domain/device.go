package domain

import "time"

// TrustedDevice exempts a client from future login challenges until the
// trust record expires. The fingerprint is an opaque client-supplied value;
// only its SHA-256 fingerprint is stored.
type TrustedDevice struct {
	ID              string
	UserID          string
	TenantID        string
	FingerprintHash string
	UserAgent       string
	IPAddress       string
	CreatedAt       time.Time
	ExpiresAt       time.Time
}

// Trusted reports whether the record still exempts the device at the given time.
func (d TrustedDevice) Trusted(now time.Time) bool {
	return now.Before(d.ExpiresAt)
}
