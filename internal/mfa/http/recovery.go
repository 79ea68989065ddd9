package http

import (
	"net/http"

	"github.com/quollhq/aegis/internal/mfa/domain"
	"github.com/quollhq/aegis/internal/mfa/service"
	"github.com/quollhq/aegis/pkg/httpx"
)

// RecoveryHandler owns the backup code endpoints.
type RecoveryHandler struct {
	Login    *service.LoginService
	Recovery *service.RecoveryService
}

type generateRecoveryRequest struct {
	// Method and Code re-verify a primary factor when replacing an existing
	// set. First-time generation needs neither.
	Method string `json:"method,omitempty"`
	Code   string `json:"code,omitempty"`
}

type recoveryCodesResponse struct {
	Codes []string `json:"codes"`
}

// HandleGenerate handles POST /v1/mfa/recovery-codes. The plaintext set is
// returned exactly once. Replacing a set that still has unused codes
// requires a fresh primary-factor verification; a recovery code itself
// never qualifies.
func (h *RecoveryHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	auth, ok := authFromContext(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	var req generateRecoveryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	remaining, err := h.Recovery.Remaining(ctx, auth)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var codes []string
	if remaining == 0 {
		codes, err = h.Recovery.Generate(ctx, auth)
	} else {
		method, ok := domain.ParseMethod(req.Method)
		if !ok {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "replacing recovery codes requires a primary factor verification")
			return
		}
		codes, err = h.Login.RegenerateRecovery(ctx, auth, method, req.Code)
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusCreated, recoveryCodesResponse{Codes: codes})
}

// HandleStatus handles GET /v1/mfa/recovery-codes, reporting only the count.
func (h *RecoveryHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	auth, ok := authFromContext(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	remaining, err := h.Recovery.Remaining(r.Context(), auth)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]int{"remaining": remaining})
}
