package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/quollhq/aegis/internal/mfa/service"
	"github.com/quollhq/aegis/internal/mfa/store"
	"github.com/quollhq/aegis/pkg/httpx"
	"github.com/quollhq/aegis/pkg/jwtx"
	"github.com/quollhq/aegis/pkg/slogx"
)

// scopes the surface enforces. Admin scope gates policy writes; everything
// else runs under the caller's own identity.
const (
	ScopeMFA        = "mfa"
	ScopeAdminRead  = "admin:read"
	ScopeAdminWrite = "admin:write"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store             store.Store
	EnrollmentService *service.EnrollmentService
	LoginService      *service.LoginService
	RecoveryService   *service.RecoveryService
	PolicyService     *service.PolicyService
}

func NewRouter(verifier jwtx.Verifier, buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerFactors()
	r.registerLogin()
	r.registerRecovery()
	r.registerPolicy()
	r.registerSystem()
}

// ServeHTTP implements http.Handler and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerFactors() {
	h := &FactorsHandler{Enrollment: r.EnrollmentService}

	// Initiation triggers code delivery for sms/email factors, so it gets
	// the strict budget.
	r.Mux.Handle("POST /v1/mfa/factors",
		httpx.Chain(http.HandlerFunc(h.HandleInitiate),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireAnyScope(ScopeMFA),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /v1/mfa/factors/{id}/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerify),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireAnyScope(ScopeMFA),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("GET /v1/mfa/factors",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireAnyScope(ScopeMFA),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)

	r.Mux.Handle("DELETE /v1/mfa/factors/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleDisable),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireAnyScope(ScopeMFA),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerLogin() {
	h := &LoginHandler{Login: r.LoginService}

	r.Mux.Handle("POST /v1/mfa/login/evaluate",
		httpx.Chain(http.HandlerFunc(h.HandleEvaluate),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireAnyScope(ScopeMFA),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)

	r.Mux.Handle("POST /v1/mfa/login/send-code",
		httpx.Chain(http.HandlerFunc(h.HandleSendCode),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireAnyScope(ScopeMFA),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)

	// Verification attempts are the brute-force target.
	r.Mux.Handle("POST /v1/mfa/login/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerify),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireAnyScope(ScopeMFA),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerRecovery() {
	h := &RecoveryHandler{Login: r.LoginService, Recovery: r.RecoveryService}

	r.Mux.Handle("POST /v1/mfa/recovery-codes",
		httpx.Chain(http.HandlerFunc(h.HandleGenerate),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireAnyScope(ScopeMFA),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("GET /v1/mfa/recovery-codes",
		httpx.Chain(http.HandlerFunc(h.HandleStatus),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireAnyScope(ScopeMFA),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerPolicy() {
	h := &PolicyHandler{Policies: r.PolicyService}

	r.Mux.Handle("GET /v1/mfa/policy",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireAnyScope(ScopeMFA, ScopeAdminRead),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)

	r.Mux.Handle("PUT /v1/mfa/policy",
		httpx.Chain(http.HandlerFunc(h.HandlePut),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireAnyScope(ScopeAdminWrite),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
