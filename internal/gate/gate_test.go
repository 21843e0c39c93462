package gate_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rurallite/rurallite/internal/auth"
	"github.com/rurallite/rurallite/internal/cors"
	"github.com/rurallite/rurallite/internal/gate"
)

type seen struct {
	called   bool
	identity *auth.Identity
	headers  http.Header
}

func newGate(t *testing.T) (*auth.Codec, http.Handler, *seen, *prometheus.Registry) {
	t.Helper()
	codec := auth.NewCodec("gate-secret", 0)
	reg := prometheus.NewRegistry()
	g := gate.New(gate.Config{
		Verifier:   codec,
		CORS:       cors.NewPolicy(nil, false),
		Registerer: reg,
	})
	s := &seen{}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.called = true
		s.headers = r.Header.Clone()
		if id, ok := auth.IdentityFromContext(r.Context()); ok {
			s.identity = &id
		}
		w.WriteHeader(http.StatusOK)
	})
	return codec, g.Middleware(next), s, reg
}

func issue(t *testing.T, codec *auth.Codec, role auth.Role) string {
	t.Helper()
	token, err := codec.Issue(auth.Identity{ID: 9, Email: "alice@example.com", Role: role})
	require.NoError(t, err)
	return token
}

type failure struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   struct {
		Code string `json:"code"`
	} `json:"error"`
}

func decodeFailure(t *testing.T, res *httptest.ResponseRecorder) failure {
	t.Helper()
	var f failure
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &f))
	return f
}

func TestMissingTokenOnProtectedRoute(t *testing.T) {
	_, h, s, reg := newGate(t)
	for _, p := range []string{"/api/admin/users", "/api/users", "/api/auth/me", "/api/quiz-results", "/api/quiz-history"} {
		res := httptest.NewRecorder()
		h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, p, nil))
		require.Equal(t, http.StatusUnauthorized, res.Code, p)
		f := decodeFailure(t, res)
		assert.False(t, f.Success)
		assert.Equal(t, "Authentication required. Token missing.", f.Message)
		assert.Equal(t, "UNAUTHORIZED", f.Error.Code)
	}
	assert.False(t, s.called)
	assert.Equal(t, float64(5), decisionCount(t, reg, gate.DecisionRejectedMissing))
}

func TestMalformedAuthorizationHeaderCountsAsMissing(t *testing.T) {
	_, h, _, _ := newGate(t)
	for _, v := range []string{"Bearer", "Bearer   ", "Token abc", "abc"} {
		req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
		req.Header.Set("Authorization", v)
		res := httptest.NewRecorder()
		h.ServeHTTP(res, req)
		assert.Equal(t, http.StatusUnauthorized, res.Code, v)
	}
}

func TestInvalidTokenIsForbidden(t *testing.T) {
	_, h, s, _ := newGate(t)
	other := auth.NewCodec("someone-else", 0)

	for _, token := range []string{"garbage", issue(t, other, auth.RoleAdmin)} {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		res := httptest.NewRecorder()
		h.ServeHTTP(res, req)
		require.Equal(t, http.StatusForbidden, res.Code)
		f := decodeFailure(t, res)
		assert.Equal(t, "Invalid or expired token", f.Message)
		assert.Equal(t, "FORBIDDEN", f.Error.Code)
	}
	assert.False(t, s.called)
}

func TestMissingSigningSecretIsInternalError(t *testing.T) {
	reg := prometheus.NewRegistry()
	g := gate.New(gate.Config{Verifier: auth.NewCodec("", 0), Registerer: reg})
	called := false
	h := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		_, ok := auth.IdentityFromContext(r.Context())
		assert.False(t, ok)
	}))
	token := issue(t, auth.NewCodec("issuer-secret", 0), auth.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	require.Equal(t, http.StatusInternalServerError, res.Code)
	f := decodeFailure(t, res)
	assert.Equal(t, "INTERNAL_ERROR", f.Error.Code)
	assert.False(t, called)

	req = httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: token})
	res = httptest.NewRecorder()
	h.ServeHTTP(res, req)
	assert.Equal(t, http.StatusInternalServerError, res.Code)
	assert.False(t, called)

	req = httptest.NewRequest(http.MethodGet, "/api/quizzes", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res = httptest.NewRecorder()
	h.ServeHTTP(res, req)
	assert.True(t, called)
	assert.Equal(t, float64(3), decisionCount(t, reg, gate.DecisionError))
}

func TestStudentOnAdminRouteIsForbidden(t *testing.T) {
	codec, h, s, _ := newGate(t)
	req := httptest.NewRequest(http.MethodDelete, "/api/admin/users?id=3", nil)
	req.Header.Set("Authorization", "Bearer "+issue(t, codec, auth.RoleStudent))
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)

	require.Equal(t, http.StatusForbidden, res.Code)
	f := decodeFailure(t, res)
	assert.Equal(t, "Access denied. Required role: ADMIN", f.Message)
	assert.False(t, s.called)
}

func TestAllowedRoleIsForwardedWithIdentity(t *testing.T) {
	codec, h, s, _ := newGate(t)
	req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	req.Header.Set("Authorization", "Bearer "+issue(t, codec, auth.RoleAdmin))
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	require.True(t, s.called)
	require.NotNil(t, s.identity)
	assert.Equal(t, auth.RoleAdmin, s.identity.Role)
	assert.Equal(t, "9", s.headers.Get(gate.HeaderUserID))
	assert.Equal(t, "alice@example.com", s.headers.Get(gate.HeaderUserEmail))
	assert.Equal(t, "ADMIN", s.headers.Get(gate.HeaderUserRole))
}

func TestSpoofedTrustHeadersAreReplaced(t *testing.T) {
	codec, h, s, _ := newGate(t)
	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Authorization", "Bearer "+issue(t, codec, auth.RoleStudent))
	req.Header.Set(gate.HeaderUserRole, "ADMIN")
	req.Header.Set(gate.HeaderUserID, "1")
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)

	require.True(t, s.called)
	assert.Equal(t, "STUDENT", s.headers.Get(gate.HeaderUserRole))
	assert.Equal(t, "9", s.headers.Get(gate.HeaderUserID))
}

func TestPublicRouteStripsSpoofedHeaders(t *testing.T) {
	_, h, s, _ := newGate(t)
	req := httptest.NewRequest(http.MethodPost, "/api/lessons", nil)
	req.Header.Set(gate.HeaderUserRole, "ADMIN")
	req.Header.Set(gate.HeaderUserEmail, "mallory@example.com")
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)

	require.True(t, s.called)
	assert.Nil(t, s.identity)
	assert.Empty(t, s.headers.Get(gate.HeaderUserRole))
	assert.Empty(t, s.headers.Get(gate.HeaderUserEmail))
}

func TestPublicRouteOptionalToken(t *testing.T) {
	codec, h, s, _ := newGate(t)

	req := httptest.NewRequest(http.MethodPost, "/api/quizzes", nil)
	req.Header.Set("Authorization", "Bearer "+issue(t, codec, auth.RoleTeacher))
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, s.identity)
	assert.Equal(t, auth.RoleTeacher, s.identity.Role)

	*s = seen{}
	req = httptest.NewRequest(http.MethodGet, "/api/quizzes", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.True(t, s.called)
	assert.Nil(t, s.identity)
}

func TestPrefixMatchingIsSegmentAware(t *testing.T) {
	table := gate.DefaultRoutes()

	rule, ok := table.Match("/api/admin/users")
	require.True(t, ok)
	assert.Equal(t, "/api/admin", rule.Prefix)

	_, ok = table.Match("/api/usersettings")
	assert.False(t, ok)

	rule, ok = table.Match("/api/users")
	require.True(t, ok)
	assert.Len(t, rule.Roles, 3)

	rule, ok = table.Match("/api//admin/../admin/jobs")
	require.True(t, ok)
	assert.Equal(t, "/api/admin", rule.Prefix)

	_, ok = table.Match("/api/auth/login")
	assert.False(t, ok)
}

func TestLongestPrefixWins(t *testing.T) {
	table := gate.RouteTable{
		{Prefix: "/api/admin", Roles: []auth.Role{auth.RoleAdmin}},
		{Prefix: "/api/admin/reports", Roles: []auth.Role{auth.RoleAdmin, auth.RoleTeacher}},
	}
	rule, ok := table.Match("/api/admin/reports/weekly")
	require.True(t, ok)
	assert.Equal(t, "/api/admin/reports", rule.Prefix)
}

func TestPreflight(t *testing.T) {
	_, h, s, _ := newGate(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/admin/users", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)

	assert.Equal(t, http.StatusNoContent, res.Code)
	assert.False(t, s.called)
	assert.Equal(t, "http://localhost:3000", res.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, res.Header().Get("X-Request-ID"))
}

func TestRejectionsCarryCORSAndRequestID(t *testing.T) {
	_, h, _, _ := newGate(t)
	req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	req.Header.Set("Origin", "https://rurallite.vercel.app")
	req.Header.Set("X-Request-ID", "req-123")
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)

	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "https://rurallite.vercel.app", res.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", res.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "req-123", res.Header().Get("X-Request-ID"))
}

func TestDisallowedOriginKeepsMethods(t *testing.T) {
	_, h, _, _ := newGate(t)
	req := httptest.NewRequest(http.MethodGet, "/api/lessons", nil)
	req.Header.Set("Origin", "https://evil.example")
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)

	assert.Empty(t, res.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, PUT, PATCH, DELETE, OPTIONS", res.Header().Get("Access-Control-Allow-Methods"))
}

func TestProtectedPages(t *testing.T) {
	codec, h, s, _ := newGate(t)

	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusTemporaryRedirect, res.Code)
	assert.Equal(t, "/login", res.Header().Get("Location"))
	assert.False(t, s.called)

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: "expired-or-bogus"})
	res = httptest.NewRecorder()
	h.ServeHTTP(res, req)
	assert.Equal(t, http.StatusTemporaryRedirect, res.Code)

	req = httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: issue(t, codec, auth.RoleTeacher)})
	res = httptest.NewRecorder()
	h.ServeHTTP(res, req)
	assert.Equal(t, http.StatusOK, res.Code)
	require.NotNil(t, s.identity)
	assert.Equal(t, auth.RoleTeacher, s.identity.Role)
}

func TestUnprotectedPagePasses(t *testing.T) {
	_, h, s, _ := newGate(t)
	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/login", nil))
	assert.Equal(t, http.StatusOK, res.Code)
	assert.True(t, s.called)
	assert.True(t, strings.HasPrefix(res.Header().Get("Vary"), "Origin"))
}

func decisionCount(t *testing.T, reg *prometheus.Registry, decision string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != "rurallite_auth_gate_decisions_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "decision" && l.GetValue() == decision {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
