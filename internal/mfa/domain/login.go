package domain

// Method is the closed set of ways a login challenge can be satisfied:
// any enrolled factor type, or a single-use recovery code.
type Method string

const (
	MethodTOTP     Method = Method(FactorTOTP)
	MethodSMS      Method = Method(FactorSMS)
	MethodEmail    Method = Method(FactorEmail)
	MethodRecovery Method = "recovery"
)

// ParseMethod validates a wire-level method string.
func ParseMethod(s string) (Method, bool) {
	switch Method(s) {
	case MethodTOTP, MethodSMS, MethodEmail, MethodRecovery:
		return Method(s), true
	}
	return "", false
}

// LoginOutcome is the orchestrator's answer to "does this login require a
// challenge?".
type LoginOutcome string

const (
	// OutcomeNotRequired: no active factor and policy does not demand one.
	OutcomeNotRequired LoginOutcome = "not_required"

	// OutcomeDeviceTrusted: a non-expired trusted device matched; the
	// challenge is skipped.
	OutcomeDeviceTrusted LoginOutcome = "device_trusted"

	// OutcomeChallengeRequired: the caller must complete a challenge before
	// a session may be minted.
	OutcomeChallengeRequired LoginOutcome = "challenge_required"

	// OutcomeEnrollmentRequired: policy demands MFA but the user has no
	// active factor; the caller should route to enrollment.
	OutcomeEnrollmentRequired LoginOutcome = "enrollment_required"
)

// LoginEvaluation is returned by the orchestrator when a login attempt asks
// whether MFA stands in the way.
type LoginEvaluation struct {
	Outcome LoginOutcome

	// Methods the user may satisfy the challenge with, populated when
	// Outcome is OutcomeChallengeRequired.
	Methods []Method
}

// Satisfied reports whether the login may proceed to session minting without
// further verification.
func (e LoginEvaluation) Satisfied() bool {
	return e.Outcome == OutcomeNotRequired || e.Outcome == OutcomeDeviceTrusted
}

// LoginVerification reports a successful login-time code check.
type LoginVerification struct {
	Method Method

	// UsedRecoveryCode tells the caller to warn the user about regenerating
	// their recovery set.
	UsedRecoveryCode bool

	// RecoveryCodesLeft counts unused codes after a recovery consumption.
	RecoveryCodesLeft int
}
