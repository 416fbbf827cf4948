package repository

import (
	"context"

	"pso-control-plane/backend/internal/user/domain"
)

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// GetByIDs returns the found users keyed by ID. Missing IDs are simply
	// absent from the map; callers treat them as best-effort lookups.
	GetByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
}
