package httpx

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rurallite/rurallite/internal/shared"
)

// Stable error codes exposed in the envelope.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeInternal     = "INTERNAL_ERROR"
	CodeRateLimited  = "RATE_LIMITED"
)

// Error is a domain failure that already knows its HTTP shape.
type Error struct {
	Status  int
	Code    string
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Validation returns a 400 VALIDATION_ERROR.
func Validation(message string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeValidation, Message: message}
}

// Unauthorized returns a 401 UNAUTHORIZED.
func Unauthorized(message string) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: message}
}

// Forbidden returns a 403 FORBIDDEN.
func Forbidden(message string) *Error {
	return &Error{Status: http.StatusForbidden, Code: CodeForbidden, Message: message}
}

// NotFound returns a 404 NOT_FOUND.
func NotFound(message string) *Error {
	return &Error{Status: http.StatusNotFound, Code: CodeNotFound, Message: message}
}

// Conflict returns a 409 CONFLICT.
func Conflict(message string) *Error {
	return &Error{Status: http.StatusConflict, Code: CodeConflict, Message: message}
}

// Responder maps errors to envelopes and logs unexpected ones.
type Responder struct {
	Logger *slog.Logger
	// ExposeDetails adds the underlying error text to INTERNAL_ERROR
	// envelopes. Disabled in production.
	ExposeDetails bool
}

// Error writes the envelope for err. fallback is the message used for
// unexpected failures, e.g. "Failed to create quiz".
func (rs Responder) Error(w http.ResponseWriter, rc shared.RequestContext, err error, fallback string) {
	var domainErr *Error
	switch {
	case errors.As(err, &domainErr):
		if domainErr.Status >= http.StatusInternalServerError {
			rs.log(rc, err)
		}
		Fail(w, domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details)
		return
	case errors.Is(err, shared.ErrNotFound):
		Fail(w, http.StatusNotFound, CodeNotFound, "Resource not found", nil)
		return
	case errors.Is(err, shared.ErrConflict):
		Fail(w, http.StatusConflict, CodeConflict, "Resource already exists", nil)
		return
	}

	rs.log(rc, err)
	if fallback == "" {
		fallback = "Something went wrong"
	}
	var details any
	if rs.ExposeDetails && err != nil {
		details = err.Error()
	}
	Fail(w, http.StatusInternalServerError, CodeInternal, fallback, details)
}

func (rs Responder) log(rc shared.RequestContext, err error) {
	if rs.Logger == nil {
		return
	}
	meta := rc.WithMeta(map[string]any{"error": fmt.Sprint(err)})
	rs.Logger.Error("request failed", slog.Any("meta", meta))
}
