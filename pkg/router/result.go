package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind tags the variant held by a Result.
type Kind int

const (
	// KindData is a successful value. The zero Result is Data(nil).
	KindData Kind = iota

	// KindRedirect asks the caller to move to another location.
	KindRedirect

	// KindFailure carries a *StatusError or a raw error.
	KindFailure
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindRedirect:
		return "redirect"
	case KindFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Result is the outcome of a loader or action.
type Result struct {
	kind     Kind
	value    any
	location string
	err      error
}

// Data returns a successful result holding v.
func Data(v any) Result {
	return Result{kind: KindData, value: v}
}

// Redirect returns a result that moves navigation to location.
func Redirect(location string) Result {
	return Result{kind: KindRedirect, location: location}
}

// Fail returns a structured failure with an HTTP-like status and payload.
func Fail(status int, payload any) Result {
	return Result{kind: KindFailure, err: &StatusError{Status: status, Payload: payload}}
}

// Error returns a failure carrying err as-is. A nil err yields Data(nil).
func Error(err error) Result {
	if err == nil {
		return Data(nil)
	}
	return Result{kind: KindFailure, err: err}
}

// Kind returns the variant.
func (r Result) Kind() Kind { return r.kind }

// Value returns the data value. It is nil for non-data results.
func (r Result) Value() any { return r.value }

// Location returns the redirect target, or "" for non-redirect results.
func (r Result) Location() string { return r.location }

// Err returns the failure, or nil for non-failure results.
func (r Result) Err() error { return r.err }

// IsData reports whether r is a data result.
func (r Result) IsData() bool { return r.kind == KindData }

// IsRedirect reports whether r is a redirect.
func (r Result) IsRedirect() bool { return r.kind == KindRedirect }

// IsFailure reports whether r is a failure.
func (r Result) IsFailure() bool { return r.kind == KindFailure }

// IsValidation reports whether r is a structured failure in the validation
// range. Validation failures are delivered to the caller instead of bubbling.
func (r Result) IsValidation() bool {
	if r.kind != KindFailure {
		return false
	}
	se, ok := AsStatus(r.err)
	return ok && IsValidationStatus(se.Status)
}

// String is meant for logs.
func (r Result) String() string {
	switch r.kind {
	case KindRedirect:
		return "redirect " + r.location
	case KindFailure:
		return "failure: " + r.err.Error()
	default:
		return "data"
	}
}

// IsValidationStatus reports whether status is in the validation range
// (400 Bad Request or 422 Unprocessable Entity).
func IsValidationStatus(status int) bool {
	return status == http.StatusBadRequest || status == http.StatusUnprocessableEntity
}

// StatusError is a structured failure: a status code plus an arbitrary
// payload, typically decoded JSON such as {"message": "..."}.
type StatusError struct {
	Status  int
	Payload any
}

// Error implements error.
func (e *StatusError) Error() string {
	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("router: status %d: %s", e.Status, msg)
	}
	return fmt.Sprintf("router: status %d", e.Status)
}

// Message extracts a human-readable message from the payload. It
// understands plain strings, maps with a "message" key, raw JSON carrying
// such a map, and values implementing interface{ Message() string }.
func (e *StatusError) Message() string {
	switch p := e.Payload.(type) {
	case nil:
		return ""
	case string:
		return p
	case map[string]any:
		if s, ok := p["message"].(string); ok {
			return s
		}
	case map[string]string:
		return p["message"]
	case json.RawMessage:
		return messageFromJSON(p)
	case []byte:
		return messageFromJSON(p)
	case interface{ Message() string }:
		return p.Message()
	}
	return ""
}

func messageFromJSON(b []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(b, &body); err != nil {
		return ""
	}
	return body.Message
}

// AsStatus unwraps err to a *StatusError. The second return value is false
// for raw errors; handlers must not assume a status is always present.
func AsStatus(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// NotFound is the synthetic failure produced when no route matches path.
func NotFound(path string) *StatusError {
	return &StatusError{
		Status:  http.StatusNotFound,
		Payload: map[string]any{"message": fmt.Sprintf("no route matches %q", path)},
	}
}

// MethodNotAllowed is returned when a submission or fetch targets a route
// that has no action (or loader) to handle it.
func MethodNotAllowed(routeID, method string) *StatusError {
	return &StatusError{
		Status: http.StatusMethodNotAllowed,
		Payload: map[string]any{
			"message": fmt.Sprintf("route %q does not handle %s", routeID, method),
		},
	}
}
