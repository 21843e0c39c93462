package app_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rurallite/rurallite/internal/app"
	"github.com/rurallite/rurallite/internal/auth"
	"github.com/rurallite/rurallite/internal/cors"
	"github.com/rurallite/rurallite/internal/gate"
	"github.com/rurallite/rurallite/internal/platform/httpx"
)

func TestRateLimitedResponseCarriesCORS(t *testing.T) {
	cfg := &app.Config{AppEnv: "development", RateLimitPerMinute: 1, AppRequestTimeout: 5 * time.Second}
	g := gate.New(gate.Config{
		Verifier: auth.NewCodec("limit-secret", 0),
		CORS:     cors.NewPolicy(nil, true),
	})
	r := chi.NewRouter()
	r.Use(app.MiddlewareStack(app.MiddlewareConfig{Config: cfg, Gate: g})...)
	r.Get("/api/lessons", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/lessons", nil)
		req.RemoteAddr = "198.51.100.7:4100"
		req.Header.Set("Origin", "http://localhost:3000")
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr
	}

	require.Equal(t, http.StatusOK, send().Code)
	limited := send()
	require.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "http://localhost:3000", limited.Header().Get("Access-Control-Allow-Origin"))

	var f httpx.Failure
	require.NoError(t, json.Unmarshal(limited.Body.Bytes(), &f))
	assert.Equal(t, httpx.CodeRateLimited, f.Error.Code)
}
