// Package middleware carries the HTTP cross-cutting concerns: caller
// identity, request logging, and panic recovery.
package middleware

import "context"

type contextKey struct{ name string }

var callerIDKey = contextKey{"caller_id"}

// WithCallerID returns a context with the authenticated caller's user ID set.
// Handlers and the rbac helpers read it via GetCallerID.
func WithCallerID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, callerIDKey, userID)
}

// GetCallerID returns the caller's user ID from context and true if set; otherwise "", false.
func GetCallerID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(callerIDKey).(string)
	return v, ok
}
