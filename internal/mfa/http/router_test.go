package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quollhq/aegis/internal/mfa/domain"
	"github.com/quollhq/aegis/internal/mfa/notify"
	"github.com/quollhq/aegis/internal/mfa/service"
	"github.com/quollhq/aegis/internal/mfa/store/drivers/sqlite"
	"github.com/quollhq/aegis/pkg/cryptox"
	"github.com/quollhq/aegis/pkg/jwtx"
	"github.com/quollhq/aegis/pkg/otpx"
)

var testJWTSecret = []byte("0123456789abcdef0123456789abcdef")

const testIssuer = "https://auth.test"

type testEnv struct {
	router  *Router
	signer  *jwtx.HS256
	capture *notify.Capture
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cryptox.SetPepperPath(filepath.Join(t.TempDir(), "pepper"))

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "mfa.db"))
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	sealer, err := cryptox.NewSealer(bytes.Repeat([]byte{0x33}, 32))
	require.NoError(t, err)

	capture := &notify.Capture{}
	policies := &service.PolicyService{Store: st}
	challenges := &service.ChallengeService{Store: st, Dispatcher: capture}
	recovery := &service.RecoveryService{Store: st}
	devices := &service.DeviceService{Store: st}
	enrollment := &service.EnrollmentService{
		Store:      st,
		Policies:   policies,
		Challenges: challenges,
		Directory:  service.NullDirectory{},
		Sealer:     sealer,
		Issuer:     "Aegis",
	}
	login := &service.LoginService{
		Store:      st,
		Policies:   policies,
		Challenges: challenges,
		Recovery:   recovery,
		Devices:    devices,
		Directory:  service.NullDirectory{},
		Sealer:     sealer,
	}

	signer, err := jwtx.NewHS256(testJWTSecret, testIssuer)
	require.NoError(t, err)

	router := NewRouter(signer, "test", st, slog.New(slog.DiscardHandler))
	router.EnrollmentService = enrollment
	router.LoginService = login
	router.RecoveryService = recovery
	router.PolicyService = policies
	router.ApplyRoutes()

	return &testEnv{router: router, signer: signer, capture: capture}
}

func (e *testEnv) token(t *testing.T, scopes ...string) string {
	t.Helper()

	claims := jwtx.NewClaims("user-1", "tenant-1", []string{"member"}, scopes, testIssuer, time.Hour, time.Now())
	token, err := e.signer.Sign(claims)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/v1/mfa/factors", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")

	rec = env.do(t, "GET", "/v1/mfa/factors", "garbage.token.here", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestScopeEnforcement(t *testing.T) {
	env := newTestEnv(t)

	// mfa scope cannot write policy
	rec := env.do(t, "PUT", "/v1/mfa/policy", env.token(t, ScopeMFA), policyPayload{})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, "PUT", "/v1/mfa/policy", env.token(t, ScopeAdminWrite), policyPayload{
		AllowedFactorTypes: []string{"totp"},
	})
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestFactorEndpoints(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, ScopeMFA)

	rec := env.do(t, "POST", "/v1/mfa/factors", token, initiateFactorRequest{Type: "totp"})
	require.Equal(t, http.StatusCreated, rec.Code)
	enr := decodeBody[totpEnrollmentResponse](t, rec)
	require.NotEmpty(t, enr.Secret)
	require.True(t, strings.HasPrefix(enr.URI, "otpauth://totp/"))

	t.Run("unknown type rejected", func(t *testing.T) {
		rec := env.do(t, "POST", "/v1/mfa/factors", token, initiateFactorRequest{Type: "carrier-pigeon"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("verify activates and list hides the secret", func(t *testing.T) {
		code, err := otpx.Compute(enr.Secret, time.Now())
		require.NoError(t, err)

		rec := env.do(t, "POST", "/v1/mfa/factors/"+enr.FactorID+"/verify", token, verifyFactorRequest{Code: code})
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = env.do(t, "GET", "/v1/mfa/factors", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.NotContains(t, rec.Body.String(), enr.Secret)

		body := decodeBody[map[string][]factorResponse](t, rec)
		require.Len(t, body["factors"], 1)
		require.Equal(t, "active", body["factors"][0].Status)
	})

	t.Run("disable", func(t *testing.T) {
		rec := env.do(t, "DELETE", "/v1/mfa/factors/"+enr.FactorID, token, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = env.do(t, "DELETE", "/v1/mfa/factors/"+enr.FactorID, token, nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestLoginEndpoints(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, ScopeMFA)

	// enroll an email factor
	rec := env.do(t, "POST", "/v1/mfa/factors", token, initiateFactorRequest{
		Type:        "email",
		Destination: "user@example.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	f := decodeBody[factorResponse](t, rec)

	d, ok := env.capture.Last()
	require.True(t, ok)
	rec = env.do(t, "POST", "/v1/mfa/factors/"+f.ID+"/verify", token, verifyFactorRequest{Code: d.Code})
	require.Equal(t, http.StatusNoContent, rec.Code)

	t.Run("evaluate demands a challenge", func(t *testing.T) {
		rec := env.do(t, "POST", "/v1/mfa/login/evaluate", token, evaluateRequest{})
		require.Equal(t, http.StatusOK, rec.Code)

		ev := decodeBody[evaluateResponse](t, rec)
		require.Equal(t, string(domain.OutcomeChallengeRequired), ev.Outcome)
		require.Contains(t, ev.Methods, "email")
	})

	t.Run("short fingerprint rejected", func(t *testing.T) {
		rec := env.do(t, "POST", "/v1/mfa/login/evaluate", token, evaluateRequest{DeviceFingerprint: "short"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("send then verify", func(t *testing.T) {
		rec := env.do(t, "POST", "/v1/mfa/login/send-code", token, sendCodeRequest{Method: "email"})
		require.Equal(t, http.StatusAccepted, rec.Code)

		d, ok := env.capture.Last()
		require.True(t, ok)
		require.Equal(t, domain.PurposeLogin, d.Purpose)

		rec = env.do(t, "POST", "/v1/mfa/login/verify", token, verifyLoginRequest{Method: "email", Code: d.Code})
		require.Equal(t, http.StatusOK, rec.Code)

		res := decodeBody[verifyLoginResponse](t, rec)
		require.True(t, res.Verified)

		// consumed
		rec = env.do(t, "POST", "/v1/mfa/login/verify", token, verifyLoginRequest{Method: "email", Code: d.Code})
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("totp send-code rejected", func(t *testing.T) {
		rec := env.do(t, "POST", "/v1/mfa/login/send-code", token, sendCodeRequest{Method: "totp"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("trusted device waives the next evaluate", func(t *testing.T) {
		rec := env.do(t, "POST", "/v1/mfa/login/send-code", token, sendCodeRequest{Method: "email"})
		require.Equal(t, http.StatusAccepted, rec.Code)
		d, _ := env.capture.Last()

		fp := "fp-0123456789abcdef"
		rec = env.do(t, "POST", "/v1/mfa/login/verify", token, verifyLoginRequest{
			Method:            "email",
			Code:              d.Code,
			TrustDevice:       true,
			DeviceFingerprint: fp,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = env.do(t, "POST", "/v1/mfa/login/evaluate", token, evaluateRequest{DeviceFingerprint: fp})
		require.Equal(t, http.StatusOK, rec.Code)
		ev := decodeBody[evaluateResponse](t, rec)
		require.Equal(t, string(domain.OutcomeDeviceTrusted), ev.Outcome)
	})
}

func TestRecoveryEndpoints(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, ScopeMFA)

	rec := env.do(t, "POST", "/v1/mfa/recovery-codes", token, generateRecoveryRequest{})
	require.Equal(t, http.StatusCreated, rec.Code)
	first := decodeBody[recoveryCodesResponse](t, rec)
	require.Len(t, first.Codes, 10)

	t.Run("status reports remaining", func(t *testing.T) {
		rec := env.do(t, "GET", "/v1/mfa/recovery-codes", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody[map[string]int](t, rec)
		require.Equal(t, 10, body["remaining"])
	})

	t.Run("replacement requires primary verification", func(t *testing.T) {
		rec := env.do(t, "POST", "/v1/mfa/recovery-codes", token, generateRecoveryRequest{})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPolicyEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/v1/mfa/policy", env.token(t, ScopeMFA), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	p := decodeBody[policyPayload](t, rec)
	require.ElementsMatch(t, []string{"totp", "sms", "email"}, p.AllowedFactorTypes)

	rec = env.do(t, "PUT", "/v1/mfa/policy", env.token(t, ScopeAdminWrite), policyPayload{
		RequiredForRoles:   []string{"admin"},
		AllowedFactorTypes: []string{"totp"},
		GracePeriodDays:    7,
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, "GET", "/v1/mfa/policy", env.token(t, ScopeMFA), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	p = decodeBody[policyPayload](t, rec)
	require.Equal(t, []string{"admin"}, p.RequiredForRoles)
	require.Equal(t, []string{"totp"}, p.AllowedFactorTypes)
	require.Equal(t, 7, p.GracePeriodDays)
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/livez", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, "GET", "/readyz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[healthResponse](t, rec)
	require.Equal(t, "ok", body.Checks["database"])
}
