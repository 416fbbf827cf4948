// Package rbac resolves the caller from request context and enforces role
// requirements against the user store. The permission catalog itself is the
// identity service's concern; this side only checks roles.
package rbac

import (
	"context"

	"pso-control-plane/backend/internal/errs"
	"pso-control-plane/backend/internal/server/middleware"
	"pso-control-plane/backend/internal/user/domain"
)

// UserGetter returns a user by ID. Used to resolve the caller's role.
type UserGetter interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// RequireCaller ensures the request carries an authenticated caller that
// resolves to an active user. Returns the user on success.
func RequireCaller(ctx context.Context, users UserGetter) (*domain.User, error) {
	callerID, ok := middleware.GetCallerID(ctx)
	if !ok || callerID == "" {
		return nil, errs.E(errs.KindUnauthenticated, "caller identity required")
	}
	u, err := users.GetByID(ctx, callerID)
	if err != nil {
		return nil, errs.Wrap(errs.KindStore, "resolve caller", err)
	}
	if !u.IsActiveSubject() {
		return nil, errs.E(errs.KindForbidden, "caller is not an active user")
	}
	return u, nil
}

// RequireRole ensures the caller is an active user with one of the given
// roles. Returns the user on success.
func RequireRole(ctx context.Context, users UserGetter, roles ...domain.Role) (*domain.User, error) {
	u, err := RequireCaller(ctx, users)
	if err != nil {
		return nil, err
	}
	for _, role := range roles {
		if u.Role == role {
			return u, nil
		}
	}
	return nil, errs.E(errs.KindForbidden, "insufficient role")
}
