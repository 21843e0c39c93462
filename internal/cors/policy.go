// Package cors decides which browser origins may call the API and renders the
// matching response headers.
package cors

import (
	"net/http"
	"net/url"
	"strings"
)

// DefaultAllowedOrigins is used when no allow-list is configured.
var DefaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:3001",
	"https://rurallite.vercel.app",
}

const (
	allowMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	allowHeaders = "Content-Type, Authorization, X-Requested-With, X-Request-ID"
	maxAge       = "86400"
)

// Policy is an immutable origin allow-list.
type Policy struct {
	origins     map[string]struct{}
	development bool
}

// NewPolicy builds a Policy. In development any http://localhost origin is
// accepted regardless of port.
func NewPolicy(origins []string, development bool) *Policy {
	if len(origins) == 0 {
		origins = DefaultAllowedOrigins
	}
	set := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			set[o] = struct{}{}
		}
	}
	return &Policy{origins: set, development: development}
}

// IsOriginAllowed reports whether origin may receive credentialed responses.
func (p *Policy) IsOriginAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	if p.development && isLocalhost(origin) {
		return true
	}
	_, ok := p.origins[origin]
	return ok
}

// Headers returns the CORS headers for origin. Methods, headers and max-age
// are always present; the allow-origin pair only for allowed origins.
func (p *Policy) Headers(origin string) http.Header {
	h := http.Header{}
	if p.IsOriginAllowed(origin) {
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	h.Set("Access-Control-Allow-Methods", allowMethods)
	h.Set("Access-Control-Allow-Headers", allowHeaders)
	h.Set("Access-Control-Max-Age", maxAge)
	h.Set("Vary", "Origin")
	return h
}

// Apply copies the CORS headers for origin onto w.
func (p *Policy) Apply(w http.ResponseWriter, origin string) {
	dst := w.Header()
	for k, v := range p.Headers(origin) {
		dst[k] = v
	}
}

// Preflight answers an OPTIONS request with 204 and no body.
func (p *Policy) Preflight(w http.ResponseWriter, origin string) {
	p.Apply(w, origin)
	w.WriteHeader(http.StatusNoContent)
}

func isLocalhost(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme != "http" {
		return false
	}
	return u.Hostname() == "localhost" && (u.Path == "" || u.Path == "/")
}
