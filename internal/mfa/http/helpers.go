package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/quollhq/aegis/internal/mfa/domain"
	"github.com/quollhq/aegis/pkg/httpx"
	"github.com/quollhq/aegis/pkg/slogx"
)

// minFingerprintLength rejects trivially guessable device fingerprints.
const minFingerprintLength = 16

// authFromContext rebuilds the caller identity from the values the authn
// middleware injected. Services receive this struct explicitly and never
// read request state themselves.
func authFromContext(r *http.Request) (domain.AuthContext, bool) {
	ctx := r.Context()
	userID, ok := ctx.Value(httpx.CtxKeyUserID).(string)
	if !ok || userID == "" {
		return domain.AuthContext{}, false
	}
	tenantID, ok := ctx.Value(httpx.CtxKeyTenantID).(string)
	if !ok || tenantID == "" {
		return domain.AuthContext{}, false
	}
	roles, _ := ctx.Value(httpx.CtxKeyRoles).([]string)

	return domain.AuthContext{UserID: userID, TenantID: tenantID, Roles: roles}, true
}

func writeUnauthenticated(w http.ResponseWriter) {
	httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "missing or incomplete authentication context")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return false
	}
	return true
}

// writeDomainError maps the verification and lifecycle failures onto HTTP
// statuses. Anything unmapped is a server error and gets logged; sentinel
// failures are the user's problem and only logged at debug level.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	type mapping struct {
		target error
		status int
		code   string
	}
	mappings := []mapping{
		{domain.ErrAlreadyEnrolled, http.StatusConflict, "already_enrolled"},
		{domain.ErrFactorTypeNotPermitted, http.StatusForbidden, "factor_type_not_permitted"},
		{domain.ErrInvalidCode, http.StatusBadRequest, "invalid_code"},
		{domain.ErrExpiredCode, http.StatusBadRequest, "expired_code"},
		{domain.ErrAttemptsExhausted, http.StatusTooManyRequests, "attempts_exhausted"},
		{domain.ErrInvalidRecoveryCode, http.StatusBadRequest, "invalid_recovery_code"},
		{domain.ErrLastFactorProtected, http.StatusConflict, "last_factor_protected"},
		{domain.ErrNoChallenge, http.StatusNotFound, "no_challenge"},
		{domain.ErrNotEnrolled, http.StatusNotFound, "not_enrolled"},
		{domain.ErrPolicyViolation, http.StatusBadRequest, "policy_violation"},
	}

	for _, m := range mappings {
		if errors.Is(err, m.target) {
			slogx.FromContext(r.Context()).Debug("request rejected", "code", m.code)
			httpx.WriteError(w, m.status, m.code, err.Error())
			return
		}
	}

	slogx.FromContext(r.Context()).Error("request failed", "error", err)
	httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal server error")
}
