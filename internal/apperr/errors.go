// Package apperr defines the error taxonomy used by the sync pipeline and the
// helpers that decide whether a failure is worth retrying.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ValidationError reports invalid input. It is never retried.
type ValidationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// UpstreamError wraps a failed call to the game API.
type UpstreamError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s: status %d: %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream %s: %v", e.Endpoint, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Temporary reports whether repeating the call may succeed. Client errors other
// than 429 are permanent.
func (e *UpstreamError) Temporary() bool {
	if e.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return e.StatusCode < 400 || e.StatusCode >= 500
}

// StoreWriteError wraps a failed upsert.
type StoreWriteError struct {
	Table string
	Err   error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Table, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }

// CancellationError marks an operation stopped by the user.
type CancellationError struct {
	Operation string
	Err       error
}

func (e *CancellationError) Error() string {
	return e.Operation + " cancelled by user"
}

func (e *CancellationError) Unwrap() error { return e.Err }

// Cancelled builds a CancellationError for operation.
func Cancelled(operation string, cause error) error {
	if cause == nil {
		cause = context.Canceled
	}
	return &CancellationError{Operation: operation, Err: cause}
}

// IsCancellation reports whether err is a user cancellation.
func IsCancellation(err error) bool {
	var ce *CancellationError
	if errors.As(err, &ce) {
		return true
	}
	return errors.Is(err, context.Canceled)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Retryable reports whether err may succeed on another attempt.
func Retryable(err error) bool {
	if err == nil || IsCancellation(err) || IsValidation(err) {
		return false
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Temporary()
	}
	return true
}
