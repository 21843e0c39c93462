// Package httpx provides the JSON response envelope shared by every API route.
package httpx

import (
	"encoding/json"
	"net/http"
	"time"
)

// timestampLayout matches millisecond ISO-8601 timestamps in UTC.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Success is the envelope returned by successful API calls.
type Success struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	Data      any            `json:"data"`
	Timestamp string         `json:"timestamp"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// Failure is the envelope returned by failed API calls.
type Failure struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Error     FailureInfo `json:"error"`
	Timestamp string      `json:"timestamp"`
}

// FailureInfo carries the stable error code and optional details.
type FailureInfo struct {
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// Now is the clock used for envelope timestamps.
var Now = time.Now

// BuildSuccess assembles a success envelope. Empty meta is omitted.
func BuildSuccess(data any, message string, meta map[string]any) Success {
	if message == "" {
		message = "Success"
	}
	env := Success{Success: true, Message: message, Data: data, Timestamp: timestamp()}
	if len(meta) > 0 {
		env.Meta = meta
	}
	return env
}

// BuildFailure assembles an error envelope.
func BuildFailure(message, code string, details any) Failure {
	if message == "" {
		message = "Something went wrong"
	}
	if code == "" {
		code = CodeInternal
	}
	return Failure{
		Success:   false,
		Message:   message,
		Error:     FailureInfo{Code: code, Details: details},
		Timestamp: timestamp(),
	}
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// OK writes a success envelope.
func OK(w http.ResponseWriter, status int, message string, data any, meta map[string]any) {
	JSON(w, status, BuildSuccess(data, message, meta))
}

// Fail writes an error envelope.
func Fail(w http.ResponseWriter, status int, code, message string, details any) {
	JSON(w, status, BuildFailure(message, code, details))
}

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 1 << 20

// DecodeJSON decodes JSON request body into the target struct. Bodies larger
// than MaxBodyBytes fail with *http.MaxBytesError.
func DecodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	return json.NewDecoder(r.Body).Decode(target)
}

func timestamp() string {
	return Now().UTC().Format(timestampLayout)
}
