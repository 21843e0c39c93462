// Package gate is the edge middleware that classifies each request, verifies
// its credential token and attaches the resulting identity before any
// handler runs.
package gate

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rurallite/rurallite/internal/auth"
	"github.com/rurallite/rurallite/internal/cors"
	"github.com/rurallite/rurallite/internal/observability"
	"github.com/rurallite/rurallite/internal/platform/httpx"
	"github.com/rurallite/rurallite/internal/rbac"
	"github.com/rurallite/rurallite/internal/shared"
)

// Trust headers injected for downstream handlers. Client-supplied values are
// always removed first.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
	HeaderUserRole  = "X-User-Role"
)

const (
	msgTokenMissing = "Authentication required. Token missing."
	msgTokenInvalid = "Invalid or expired token"
	msgVerifyFailed = "Unable to verify credentials"
)

// Decision labels recorded per request.
const (
	DecisionPreflight       = "preflight"
	DecisionPublic          = "public"
	DecisionForwarded       = "forwarded"
	DecisionRejectedMissing = "rejected_missing"
	DecisionRejectedInvalid = "rejected_invalid"
	DecisionRejectedRole    = "rejected_role"
	DecisionRedirected      = "redirected"
	DecisionError           = "error"
)

// Verifier checks a credential token.
type Verifier interface {
	Verify(token string) (auth.Identity, error)
}

// Config wires the gate.
type Config struct {
	Verifier   Verifier
	CORS       *cors.Policy
	Routes     RouteTable
	Pages      []string
	LoginPath  string
	CookieName string
	Logger     *slog.Logger
	Registerer prometheus.Registerer
}

// Gate enforces the protected route table.
type Gate struct {
	verifier   Verifier
	cors       *cors.Policy
	routes     RouteTable
	pages      []string
	loginPath  string
	cookieName string
	logger     *slog.Logger
	decisions  *prometheus.CounterVec
}

// New builds a Gate, filling unset fields with the defaults.
func New(cfg Config) *Gate {
	g := &Gate{
		verifier:   cfg.Verifier,
		cors:       cfg.CORS,
		routes:     cfg.Routes,
		pages:      cfg.Pages,
		loginPath:  cfg.LoginPath,
		cookieName: cfg.CookieName,
		logger:     cfg.Logger,
	}
	if g.cors == nil {
		g.cors = cors.NewPolicy(nil, false)
	}
	if g.routes == nil {
		g.routes = DefaultRoutes()
	}
	if g.pages == nil {
		g.pages = DefaultPages()
	}
	if g.loginPath == "" {
		g.loginPath = "/login"
	}
	if g.cookieName == "" {
		g.cookieName = shared.SessionCookieName
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	g.decisions = observability.NewCounterVec(cfg.Registerer, "auth_gate_decisions_total", "Auth gate outcomes by decision.", "decision")
	return g
}

// CORS returns the policy the gate applies, for middleware that answers
// before the gate runs.
func (g *Gate) CORS() *cors.Policy {
	return g.cors
}

// Middleware runs the gate in front of next.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		rc := shared.FromRequest(r, "gate")
		w.Header().Set(shared.RequestIDHeader, rc.RequestID)

		if r.Method == http.MethodOptions {
			g.record(DecisionPreflight)
			g.cors.Preflight(w, origin)
			return
		}
		g.cors.Apply(w, origin)
		stripTrustHeaders(r.Header)

		if rule, ok := g.routes.Match(r.URL.Path); ok {
			g.protectedAPI(w, r, rc, rule, next)
			return
		}
		if strings.HasPrefix(r.URL.Path, "/api/") {
			g.publicAPI(w, r, rc, next)
			return
		}
		if matchesAny(r.URL.Path, g.pages) {
			g.protectedPage(w, r, rc, next)
			return
		}
		g.record(DecisionPublic)
		next.ServeHTTP(w, r)
	})
}

func (g *Gate) protectedAPI(w http.ResponseWriter, r *http.Request, rc shared.RequestContext, rule Rule, next http.Handler) {
	token, ok := bearerToken(r)
	if !ok {
		g.reject(w, rc, DecisionRejectedMissing, http.StatusUnauthorized, httpx.CodeUnauthorized, msgTokenMissing)
		return
	}
	id, err := g.verifier.Verify(token)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidToken) {
			g.fail(rc, err)
			httpx.Fail(w, http.StatusInternalServerError, httpx.CodeInternal, msgVerifyFailed, nil)
			return
		}
		g.reject(w, rc, DecisionRejectedInvalid, http.StatusForbidden, httpx.CodeForbidden, msgTokenInvalid)
		return
	}
	if !id.Role.In(rule.Roles...) {
		g.reject(w, rc, DecisionRejectedRole, http.StatusForbidden, httpx.CodeForbidden, rbac.DeniedMessage(rule.Roles))
		return
	}
	g.record(DecisionForwarded)
	next.ServeHTTP(w, attach(r, id))
}

// publicAPI forwards unconditionally. A valid optional bearer token still
// attaches the identity so role-checked handlers see it. A verifier fault
// is logged and the request continues anonymously.
func (g *Gate) publicAPI(w http.ResponseWriter, r *http.Request, rc shared.RequestContext, next http.Handler) {
	g.record(DecisionPublic)
	if token, ok := bearerToken(r); ok {
		id, err := g.verifier.Verify(token)
		switch {
		case err == nil:
			r = attach(r, id)
		case !errors.Is(err, auth.ErrInvalidToken):
			g.fail(rc, err)
		}
	}
	next.ServeHTTP(w, r)
}

func (g *Gate) protectedPage(w http.ResponseWriter, r *http.Request, rc shared.RequestContext, next http.Handler) {
	cookie, err := r.Cookie(g.cookieName)
	if err == nil && cookie.Value != "" {
		id, err := g.verifier.Verify(cookie.Value)
		if err == nil {
			g.record(DecisionForwarded)
			next.ServeHTTP(w, attach(r, id))
			return
		}
		if !errors.Is(err, auth.ErrInvalidToken) {
			g.fail(rc, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
	}
	g.record(DecisionRedirected)
	g.logger.Debug("page redirected to login", rc.LogAttrs()...)
	http.Redirect(w, r, g.loginPath, http.StatusTemporaryRedirect)
}

func (g *Gate) reject(w http.ResponseWriter, rc shared.RequestContext, decision string, status int, code, message string) {
	g.record(decision)
	g.logger.Info("request rejected", append(rc.LogAttrs(), slog.String("decision", decision))...)
	httpx.Fail(w, status, code, message, nil)
}

func (g *Gate) fail(rc shared.RequestContext, err error) {
	g.record(DecisionError)
	g.logger.Error("token verification failed", append(rc.LogAttrs(), slog.Any("error", err))...)
}

func (g *Gate) record(decision string) {
	g.decisions.WithLabelValues(decision).Inc()
}

func attach(r *http.Request, id auth.Identity) *http.Request {
	r = r.Clone(auth.ContextWithIdentity(r.Context(), id))
	r.Header.Set(HeaderUserID, strconv.FormatInt(id.ID, 10))
	r.Header.Set(HeaderUserEmail, id.Email)
	r.Header.Set(HeaderUserRole, string(id.Role))
	return r
}

func stripTrustHeaders(h http.Header) {
	h.Del(HeaderUserID)
	h.Del(HeaderUserEmail)
	h.Del(HeaderUserRole)
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
