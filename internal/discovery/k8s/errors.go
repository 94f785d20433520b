package k8s

import (
	"fmt"

	k8serrors "k8s.io/apimachinery/pkg/api/errors"
)

// Error is the base error type for discovery failures.
type Error struct {
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("k8s discovery %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("k8s discovery %s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// ConnectionError represents connection-related failures.
type ConnectionError struct{ *Error }

func NewConnectionError(message string, err error) *ConnectionError {
	return &ConnectionError{&Error{Op: "connection", Message: message, Err: err}}
}

// TimeoutError represents a deadline exceeded during discovery.
type TimeoutError struct{ *Error }

func NewTimeoutError(message string, err error) *TimeoutError {
	return &TimeoutError{&Error{Op: "timeout", Message: message, Err: err}}
}

// wrapK8sError classifies a raw k8s API error into a discovery Error.
func wrapK8sError(operation string, err error) error {
	if k8serrors.IsUnauthorized(err) || k8serrors.IsForbidden(err) {
		return &Error{Op: operation, Message: "insufficient permissions", Err: err}
	}
	if k8serrors.IsTimeout(err) || k8serrors.IsServerTimeout(err) {
		return NewTimeoutError("request timed out", err)
	}
	return &Error{Op: operation, Message: "operation failed", Err: err}
}

// isRetryableError mirrors internal/infrastructure/k8s's classification:
// transient server-side conditions retry, auth/invalid-input don't.
func isRetryableError(err error) bool {
	if k8serrors.IsTimeout(err) || k8serrors.IsServerTimeout(err) {
		return true
	}
	if k8serrors.IsInternalError(err) || k8serrors.IsServiceUnavailable(err) {
		return true
	}
	if k8serrors.IsTooManyRequests(err) {
		return true
	}
	if k8serrors.IsUnauthorized(err) || k8serrors.IsForbidden(err) {
		return false
	}
	if k8serrors.IsNotFound(err) || k8serrors.IsInvalid(err) {
		return false
	}
	return true
}
