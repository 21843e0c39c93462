package shared

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// RequestIDHeader carries the correlation id in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestContext describes one inbound request for logs and error reports.
type RequestContext struct {
	RequestID string `json:"requestId"`
	Method    string `json:"method"`
	Endpoint  string `json:"endpoint"`
	Context   string `json:"context"`
}

// FromRequest derives the request metadata. The request id comes from the
// inbound X-Request-ID header and is generated when absent.
func FromRequest(r *http.Request, label string) RequestContext {
	if label == "" {
		label = "unknown"
	}
	rc := RequestContext{Context: label}
	if r == nil {
		rc.RequestID = uuid.NewString()
		return rc
	}
	rc.Method = r.Method
	if r.URL != nil {
		rc.Endpoint = r.URL.Path
	}
	rc.RequestID = strings.TrimSpace(r.Header.Get(RequestIDHeader))
	if rc.RequestID == "" {
		rc.RequestID = uuid.NewString()
	}
	return rc
}

// WithMeta merges extra key/value pairs over the base fields.
func (rc RequestContext) WithMeta(extra map[string]any) map[string]any {
	out := map[string]any{
		"requestId": rc.RequestID,
		"method":    rc.Method,
		"endpoint":  rc.Endpoint,
		"context":   rc.Context,
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// LogAttrs renders the context as slog attributes.
func (rc RequestContext) LogAttrs() []any {
	return []any{
		slog.String("request_id", rc.RequestID),
		slog.String("method", rc.Method),
		slog.String("endpoint", rc.Endpoint),
		slog.String("context", rc.Context),
	}
}

type requestIDKey struct{}

// ContextWithRequestID stores the correlation id in context.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext extracts the correlation id from context.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestIDMiddleware pins a single correlation id to the request and echoes
// it on the response before any downstream handler writes.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc := FromRequest(r, "")
		r.Header.Set(RequestIDHeader, rc.RequestID)
		w.Header().Set(RequestIDHeader, rc.RequestID)
		ctx := ContextWithRequestID(r.Context(), rc.RequestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
