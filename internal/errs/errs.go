// Package errs defines the typed error taxonomy used by the orchestration
// services and maps each kind to an HTTP status for the handlers.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a domain error for transport mapping and logging.
type Kind int

const (
	// KindUnknown is the zero value; treated as an internal failure.
	KindUnknown Kind = iota
	// KindValidation is malformed or mistyped input (400).
	KindValidation
	// KindNotFound is a missing subject, session, or command (404).
	KindNotFound
	// KindConflict is a violated single-active invariant (409).
	KindConflict
	// KindForbidden is a failed role or ownership check (403).
	KindForbidden
	// KindUnauthenticated is a missing or unresolved caller identity (401).
	KindUnauthenticated
	// KindExternal is a failure in egress, broadcast, or blob signing (502).
	KindExternal
	// KindStore is a repository failure (500).
	KindStore
)

// Error is a kinded domain error. It wraps an optional cause, which is
// preserved for logging and errors.Is/As chains.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same kind and message, so sentinel
// errors built with E survive wrapping via fmt.Errorf("%w", ...).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Msg == t.Msg
}

// E returns a new kinded error with no cause. Use for sentinels.
func E(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap returns a kinded error wrapping cause. cause may be nil.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// HTTPStatus maps err's kind to an HTTP status code. Unknown kinds and
// non-domain errors map to 500.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindExternal:
		return http.StatusBadGateway
	case KindStore:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
