package specialist

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a specialist failure.
type Kind string

const (
	// KindTimeout indicates the call exceeded its per-attempt timeout.
	KindTimeout Kind = "timeout"
	// KindBackendRejected indicates the backend refused the request (auth, validation, policy).
	KindBackendRejected Kind = "backend_rejected"
	// KindTransientUnavailable indicates a temporary backend or network failure.
	KindTransientUnavailable Kind = "transient_unavailable"
	// KindMalformedResponse indicates the backend answered with unusable content.
	KindMalformedResponse Kind = "malformed_response"
	// KindCancelled indicates the caller cancelled the call.
	KindCancelled Kind = "cancelled"
)

// Retryable reports whether failures of this kind may be retried.
func (k Kind) Retryable() bool {
	return k == KindTimeout || k == KindTransientUnavailable
}

// Error is a classified specialist failure.
type Error struct {
	Kind Kind
	Err  error
}

// Sentinel values for errors.Is comparisons against a kind.
var (
	ErrTimeout              = &Error{Kind: KindTimeout}
	ErrBackendRejected      = &Error{Kind: KindBackendRejected}
	ErrTransientUnavailable = &Error{Kind: KindTransientUnavailable}
	ErrMalformedResponse    = &Error{Kind: KindMalformedResponse}
	ErrCancelled            = &Error{Kind: KindCancelled}
)

// Errorf returns a new *Error of the given kind.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err as kind. A nil err yields nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrTimeout) works
// regardless of the wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf extracts the kind of err.
// Context errors map to KindTimeout or KindCancelled; any other unclassified
// error is treated as transient.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	return KindTransientUnavailable
}

// IsRetryable reports whether err should be retried.
func IsRetryable(err error) bool {
	return KindOf(err).Retryable()
}
