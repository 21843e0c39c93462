// Package rbac enforces role membership on handlers that sit behind the auth
// gate.
package rbac

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rurallite/rurallite/internal/auth"
	"github.com/rurallite/rurallite/internal/platform/httpx"
)

const missingIdentityMessage = "Authentication required. Token missing."

// DeniedMessage renders the 403 message naming the required roles.
func DeniedMessage(roles []auth.Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return "Access denied. Required role: " + strings.Join(names, " or ")
}

// Authorize returns the request identity when its role is allowed. The
// returned error is an *httpx.Error ready for the envelope.
func Authorize(r *http.Request, roles ...auth.Role) (auth.Identity, error) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return auth.Identity{}, httpx.Unauthorized(missingIdentityMessage)
	}
	if len(roles) > 0 && !id.Role.In(roles...) {
		return id, httpx.Forbidden(DeniedMessage(roles))
	}
	return id, nil
}

// RequireRole rejects requests whose identity is missing (401) or whose role
// is outside roles (403) before the handler runs.
func RequireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := Authorize(r, roles...); err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteError writes the envelope for an error returned by Authorize.
func WriteError(w http.ResponseWriter, err error) {
	var e *httpx.Error
	if !errors.As(err, &e) {
		e = httpx.Forbidden(err.Error())
	}
	httpx.Fail(w, e.Status, e.Code, e.Message, e.Details)
}
