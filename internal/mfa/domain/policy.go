package domain

import (
	"slices"
	"time"
)

// TenantPolicy dictates whether, for whom, and by which methods MFA is
// enforced within a tenant. Owned by tenant administration; the MFA core
// treats it as read-mostly configuration.
type TenantPolicy struct {
	TenantID           string
	RequiredForRoles   []string
	AllowedFactorTypes []FactorType
	GracePeriodDays    int
	EnforcedFrom       time.Time
	UpdatedAt          time.Time
}

// DefaultPolicy is the stance for tenants that never configured MFA:
// nothing is required, every factor type may be enrolled voluntarily.
func DefaultPolicy(tenantID string) TenantPolicy {
	return TenantPolicy{
		TenantID:           tenantID,
		AllowedFactorTypes: []FactorType{FactorTOTP, FactorSMS, FactorEmail},
	}
}

// Allows reports whether the policy permits enrolling the given factor type.
func (p TenantPolicy) Allows(t FactorType) bool {
	return slices.Contains(p.AllowedFactorTypes, t)
}

// RequiresAny reports whether the caller holds any role the policy's
// required set covers.
func (p TenantPolicy) RequiresAny(a AuthContext) bool {
	for _, r := range p.RequiredForRoles {
		if a.HasRole(r) {
			return true
		}
	}
	return false
}

// Required decides whether MFA is mandatory for a caller at the given time.
// firstLoginAt feeds the grace-period exemption; a zero value means the user
// has no recorded first login and the grace period cannot apply.
func (p TenantPolicy) Required(a AuthContext, firstLoginAt time.Time, now time.Time) bool {
	if !p.RequiresAny(a) {
		return false
	}
	if !p.EnforcedFrom.IsZero() && now.Before(p.EnforcedFrom) {
		return false
	}
	if p.GracePeriodDays > 0 && !firstLoginAt.IsZero() {
		graceEnd := firstLoginAt.Add(time.Duration(p.GracePeriodDays) * 24 * time.Hour)
		if now.Before(graceEnd) {
			return false
		}
	}
	return true
}
