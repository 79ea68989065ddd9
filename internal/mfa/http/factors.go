package http

import (
	"net/http"
	"time"

	"github.com/quollhq/aegis/internal/mfa/domain"
	"github.com/quollhq/aegis/internal/mfa/service"
	"github.com/quollhq/aegis/pkg/httpx"
)

// FactorsHandler owns the factor lifecycle endpoints: initiate, verify,
// list, disable.
type FactorsHandler struct {
	Enrollment *service.EnrollmentService
}

type initiateFactorRequest struct {
	Type string `json:"type"`

	// Account labels the otpauth:// URI for TOTP enrollments.
	Account string `json:"account,omitempty"`

	// Destination is the phone number or email address for sms/email factors.
	Destination string `json:"destination,omitempty"`
}

type totpEnrollmentResponse struct {
	FactorID string `json:"factor_id"`
	Secret   string `json:"secret"`
	URI      string `json:"uri"`
}

type factorResponse struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	Destination string     `json:"destination,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
}

func toFactorResponse(f domain.Factor) factorResponse {
	return factorResponse{
		ID:          f.ID,
		Type:        string(f.Type),
		Status:      string(f.Status),
		Destination: f.Destination,
		CreatedAt:   f.CreatedAt,
		ActivatedAt: f.ActivatedAt,
	}
}

// HandleInitiate handles POST /v1/mfa/factors. For TOTP the secret and
// provisioning URI come back exactly once; for delivered factors a
// confirmation code goes out to the destination instead.
func (h *FactorsHandler) HandleInitiate(w http.ResponseWriter, r *http.Request) {
	auth, ok := authFromContext(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	var req initiateFactorRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t, ok := domain.ParseFactorType(req.Type)
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "unknown factor type")
		return
	}

	ctx := r.Context()
	if t == domain.FactorTOTP {
		account := req.Account
		if account == "" {
			account = auth.UserID
		}
		enr, err := h.Enrollment.InitiateTOTP(ctx, auth, account)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		httpx.NoCache(w)
		httpx.WriteJSON(w, http.StatusCreated, totpEnrollmentResponse{
			FactorID: enr.FactorID,
			Secret:   enr.Secret,
			URI:      enr.URI,
		})
		return
	}

	f, err := h.Enrollment.InitiateOTP(ctx, auth, t, req.Destination)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toFactorResponse(f))
}

type verifyFactorRequest struct {
	Code string `json:"code"`
}

// HandleVerify handles POST /v1/mfa/factors/{id}/verify, activating the
// pending factor when the submitted code proves possession.
func (h *FactorsHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	auth, ok := authFromContext(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	var req verifyFactorRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Code == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "code is required")
		return
	}

	if err := h.Enrollment.Complete(r.Context(), auth, r.PathValue("id"), req.Code); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleList handles GET /v1/mfa/factors. Secret material never appears in
// the response.
func (h *FactorsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	auth, ok := authFromContext(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	factors, err := h.Enrollment.List(r.Context(), auth)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]factorResponse, 0, len(factors))
	for _, f := range factors {
		out = append(out, toFactorResponse(f))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"factors": out})
}

// HandleDisable handles DELETE /v1/mfa/factors/{id}.
func (h *FactorsHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	auth, ok := authFromContext(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	if err := h.Enrollment.Disable(r.Context(), auth, r.PathValue("id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
