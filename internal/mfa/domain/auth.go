package domain

import "slices"

// AuthContext identifies the caller of every core operation. It is built once
// at the HTTP boundary from the verified bearer token and passed explicitly,
// never read from ambient request state.
type AuthContext struct {
	UserID   string
	TenantID string
	Roles    []string
}

// HasRole reports whether the caller holds the given role.
func (a AuthContext) HasRole(role string) bool {
	return slices.Contains(a.Roles, role)
}
