package domain

import (
	"errors"
	"fmt"
)

// ErrUnknownCategory is returned before any routing or network activity
// when a request names a category the gateway does not serve.
var ErrUnknownCategory = errors.New("unknown category")

// InvalidPayloadError reports the first missing or non-numeric field of a
// reading, in the category's declared field order.
type InvalidPayloadError struct {
	Field string
}

func (e *InvalidPayloadError) Error() string {
	return "invalid payload: " + e.Field
}

type BackendErrorKind string

const (
	BackendTimeout    BackendErrorKind = "timeout"
	BackendConnection BackendErrorKind = "connection"
	BackendStatus     BackendErrorKind = "status"
	BackendBadBody    BackendErrorKind = "bad_body"
	BackendNoDecision BackendErrorKind = "no_decision"
)

// BackendError wraps any failure of a predictor call. Cause is kept for
// internal logs only; callers see just the category tag and kind.
type BackendError struct {
	Category Category
	Kind     BackendErrorKind
	Cause    error
}

func (e *BackendError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s backend %s: %v", e.Category, e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s backend %s", e.Category, e.Kind)
}

func (e *BackendError) Unwrap() error { return e.Cause }

// Message is the caller-safe form: category tag and error kind, nothing else.
func (e *BackendError) Message() string {
	return fmt.Sprintf("%s backend unavailable (%s)", e.Category, e.Kind)
}
