// Package jwtx verifies the bearer tokens the surrounding web layer attaches
// to requests hitting the MFA core. Session minting itself lives outside this
// service; we only need to read who is calling and for which tenant.
package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrAlgMismatch = errors.New("jwtx: algorithm mismatch")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")
	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
)

// Claims are the access-token claims the MFA core consumes. The web layer
// mints these; we are keeping additive changes to preserve compatibility.
type Claims struct {
	jwt.RegisteredClaims

	// TenantID scopes every operation to a tenant.
	TenantID string `json:"tid,omitempty"`

	// Roles held by the subject within the tenant, used for policy checks.
	Roles []string `json:"roles,omitempty"`

	// Scopes like "mfa:manage" or "tenant:admin".
	Scopes []string `json:"scopes,omitempty"`
}

// NewClaims builds minimally-correct claims, used by tests and the dev
// token helper.
func NewClaims(subject, tenantID string, roles, scopes []string, issuer string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        newJTI(),
		},
		TenantID: tenantID,
		Roles:    roles,
		Scopes:   scopes,
	}
}

// newJTI returns a URL-safe random identifier for the "jti" claim.
func newJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateExpiry checks exp/nbf against the current time.
func (c *Claims) ValidateExpiry() error {
	now := time.Now()
	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrExpired
	}
	return nil
}
