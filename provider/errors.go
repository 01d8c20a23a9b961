package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Error classifies a provider-side failure. Timeouts, network errors and
// 5xx responses are retryable by the caller; 4xx responses (bad code,
// expired code, revoked consent) are terminal.
type Error struct {
	Status    int // HTTP status, 0 for network-level failures
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("provider error (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("provider error: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with retryability derived from the HTTP status.
func NewError(status int, err error) *Error {
	return &Error{
		Status:    status,
		Retryable: status == 0 || status >= 500,
		Err:       err,
	}
}

// ClassifyTransport wraps a transport-level failure (no HTTP response).
// Timeouts and network errors are always retryable.
func ClassifyTransport(err error) *Error {
	return &Error{Retryable: true, Err: err}
}

// IsRetryable reports whether err represents a transient provider failure.
// Context deadline expiry counts as a timeout and is therefore retryable.
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}
