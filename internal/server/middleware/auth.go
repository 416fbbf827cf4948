package middleware

import (
	"net/http"
	"strings"

	"pso-control-plane/backend/internal/security"
)

const bearerPrefix = "bearer "

// Auth returns middleware that validates the Bearer (access) token from the
// Authorization header and sets the caller ID in context for protected
// routes. When verifier is nil (dev mode), the X-Caller-ID header is trusted
// instead.
func Auth(verifier *security.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				if id := strings.TrimSpace(r.Header.Get("X-Caller-ID")); id != "" {
					r = r.WithContext(WithCallerID(r.Context(), id))
				}
				next.ServeHTTP(w, r)
				return
			}

			token := extractBearer(r)
			if token == "" {
				http.Error(w, "missing or invalid authorization", http.StatusUnauthorized)
				return
			}
			userID, err := verifier.ValidateAccess(token)
			if err != nil {
				http.Error(w, "missing or invalid authorization", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCallerID(r.Context(), userID)))
		})
	}
}

// extractBearer returns the Bearer token from the Authorization header, or "" if missing or malformed.
func extractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
