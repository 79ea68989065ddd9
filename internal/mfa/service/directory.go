package service

import (
	"context"
	"time"
)

// Directory resolves user attributes owned by the surrounding identity
// platform. The MFA core only needs the first-login timestamp that feeds
// the policy grace period.
type Directory interface {
	// FirstLoginAt returns when the user first signed in. A zero time means
	// unknown, which disables the grace-period exemption for that user.
	FirstLoginAt(ctx context.Context, userID string) (time.Time, error)
}

// NullDirectory is the stand-in for deployments where the identity platform
// does not expose first-login data.
type NullDirectory struct{}

func (NullDirectory) FirstLoginAt(ctx context.Context, userID string) (time.Time, error) {
	return time.Time{}, nil
}
