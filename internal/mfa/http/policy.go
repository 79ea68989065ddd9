package http

import (
	"net/http"
	"time"

	"github.com/quollhq/aegis/internal/mfa/domain"
	"github.com/quollhq/aegis/internal/mfa/service"
	"github.com/quollhq/aegis/pkg/httpx"
)

// PolicyHandler owns the tenant policy admin endpoints.
type PolicyHandler struct {
	Policies *service.PolicyService
}

type policyPayload struct {
	RequiredForRoles   []string   `json:"required_for_roles"`
	AllowedFactorTypes []string   `json:"allowed_factor_types"`
	GracePeriodDays    int        `json:"grace_period_days"`
	EnforcedFrom       *time.Time `json:"enforced_from,omitempty"`
	UpdatedAt          *time.Time `json:"updated_at,omitempty"`
}

// HandleGet handles GET /v1/mfa/policy, returning the caller's tenant
// policy (or the default for unconfigured tenants).
func (h *PolicyHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	auth, ok := authFromContext(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	p, err := h.Policies.Get(r.Context(), auth.TenantID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := policyPayload{
		RequiredForRoles: p.RequiredForRoles,
		GracePeriodDays:  p.GracePeriodDays,
	}
	for _, t := range p.AllowedFactorTypes {
		out.AllowedFactorTypes = append(out.AllowedFactorTypes, string(t))
	}
	if !p.EnforcedFrom.IsZero() {
		out.EnforcedFrom = &p.EnforcedFrom
	}
	if !p.UpdatedAt.IsZero() {
		out.UpdatedAt = &p.UpdatedAt
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandlePut handles PUT /v1/mfa/policy. Scope enforcement happens in the
// middleware chain; the tenant is always the caller's own.
func (h *PolicyHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	auth, ok := authFromContext(r)
	if !ok {
		writeUnauthenticated(w)
		return
	}

	var req policyPayload
	if !decodeJSON(w, r, &req) {
		return
	}

	p := domain.TenantPolicy{
		TenantID:         auth.TenantID,
		RequiredForRoles: req.RequiredForRoles,
		GracePeriodDays:  req.GracePeriodDays,
	}
	for _, t := range req.AllowedFactorTypes {
		ft, ok := domain.ParseFactorType(t)
		if !ok {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "unknown factor type "+t)
			return
		}
		p.AllowedFactorTypes = append(p.AllowedFactorTypes, ft)
	}
	if req.EnforcedFrom != nil {
		p.EnforcedFrom = req.EnforcedFrom.UTC()
	}
	if p.GracePeriodDays < 0 {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "grace_period_days cannot be negative")
		return
	}

	if err := h.Policies.Put(r.Context(), p); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
