package model

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
)

// ValidationError rejects a request; Reason is machine readable.
type ValidationError struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func Invalid(reason, format string, args ...any) *ValidationError {
	return &ValidationError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// IntegrityWarning reports a stored response that could not be interpreted. It is
// logged, never returned as a request failure.
type IntegrityWarning struct {
	ResponseID int64
	Err        error
}

func (w *IntegrityWarning) Error() string {
	return fmt.Sprintf("response %d: %s", w.ResponseID, w.Err)
}

func (w *IntegrityWarning) Unwrap() error {
	return w.Err
}
