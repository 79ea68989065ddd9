package domain

import "errors"

// Verification and lifecycle failures surfaced to callers. Every outcome is
// reported with enough detail to choose the next UI action; code values and
// secrets never appear in error payloads.
var (
	// ErrAlreadyEnrolled: an active factor of the requested type exists.
	ErrAlreadyEnrolled = errors.New("mfa: factor already enrolled")

	// ErrFactorTypeNotPermitted: tenant policy does not allow this factor type.
	ErrFactorTypeNotPermitted = errors.New("mfa: factor type not permitted by tenant policy")

	// ErrInvalidCode: submitted code does not match the live challenge or
	// the TOTP secret.
	ErrInvalidCode = errors.New("mfa: invalid code")

	// ErrExpiredCode: the challenge's validity window has passed.
	ErrExpiredCode = errors.New("mfa: code expired")

	// ErrAttemptsExhausted: the challenge's attempt budget is spent; only a
	// fresh issuance can recover.
	ErrAttemptsExhausted = errors.New("mfa: verification attempts exhausted")

	// ErrInvalidRecoveryCode: no unused recovery code matches.
	ErrInvalidRecoveryCode = errors.New("mfa: invalid recovery code")

	// ErrLastFactorProtected: disabling would drop the user below
	// policy-required coverage.
	ErrLastFactorProtected = errors.New("mfa: cannot disable the last factor while policy requires MFA")

	// ErrNoChallenge: no live challenge exists for the (user, purpose) pair.
	ErrNoChallenge = errors.New("mfa: no live challenge")

	// ErrNotEnrolled: the operation needs a factor the user has not enrolled.
	ErrNotEnrolled = errors.New("mfa: factor not enrolled")

	// ErrPolicyViolation: the operation is forbidden by tenant policy.
	ErrPolicyViolation = errors.New("mfa: operation forbidden by tenant policy")
)
