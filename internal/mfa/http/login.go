package http

import (
	"net/http"

	"github.com/quollhq/aegis/internal/mfa/domain"
	"github.com/quollhq/aegis/internal/mfa/service"
	"github.com/quollhq/aegis/pkg/httpx"
)

// LoginHandler owns the login-time endpoints the session-minting layer
// calls: evaluate, send-code, verify.
type LoginHandler struct {
	Login *service.LoginService
}

type evaluateRequest struct {
	DeviceFingerprint string `json:"device_fingerprint,omitempty"`
}

type evaluateResponse struct {
	Outcome string   `json:"outcome"`
	Methods []string `json:"methods,omitempty"`
}

// HandleEvaluate handles POST /v1/mfa/login/evaluate.
func (h *LoginHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	auth, ok := authFromContext(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	var req evaluateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if fp := req.DeviceFingerprint; fp != "" && len(fp) < minFingerprintLength {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "device fingerprint too short")
		return
	}

	ev, err := h.Login.Evaluate(r.Context(), auth, req.DeviceFingerprint)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := evaluateResponse{Outcome: string(ev.Outcome)}
	for _, m := range ev.Methods {
		resp.Methods = append(resp.Methods, string(m))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

type sendCodeRequest struct {
	Method string `json:"method"`
}

// HandleSendCode handles POST /v1/mfa/login/send-code. Re-requesting always
// supersedes the previous code.
func (h *LoginHandler) HandleSendCode(w http.ResponseWriter, r *http.Request) {
	auth, ok := authFromContext(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	var req sendCodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	method, ok := domain.ParseMethod(req.Method)
	if !ok || method == domain.MethodRecovery || method == domain.MethodTOTP {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "method must be a delivered factor type")
		return
	}

	if err := h.Login.SendCode(r.Context(), auth, method); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type verifyLoginRequest struct {
	Method string `json:"method"`
	Code   string `json:"code"`

	TrustDevice       bool   `json:"trust_device,omitempty"`
	DeviceFingerprint string `json:"device_fingerprint,omitempty"`
}

type verifyLoginResponse struct {
	Verified          bool   `json:"verified"`
	Method            string `json:"method"`
	UsedRecoveryCode  bool   `json:"used_recovery_code,omitempty"`
	RecoveryCodesLeft int    `json:"recovery_codes_left,omitempty"`
}

// HandleVerify handles POST /v1/mfa/login/verify.
func (h *LoginHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	auth, ok := authFromContext(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	var req verifyLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	method, ok := domain.ParseMethod(req.Method)
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "unknown method")
		return
	}
	if req.Code == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "code is required")
		return
	}
	if req.TrustDevice && len(req.DeviceFingerprint) < minFingerprintLength {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "device fingerprint too short")
		return
	}

	res, err := h.Login.Verify(r.Context(), auth, method, req.Code, service.DeviceIntent{
		Trust:       req.TrustDevice,
		Fingerprint: req.DeviceFingerprint,
		UserAgent:   r.UserAgent(),
		IPAddress:   r.RemoteAddr,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, verifyLoginResponse{
		Verified:          true,
		Method:            string(res.Method),
		UsedRecoveryCode:  res.UsedRecoveryCode,
		RecoveryCodesLeft: res.RecoveryCodesLeft,
	})
}
