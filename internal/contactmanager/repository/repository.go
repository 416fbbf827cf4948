package repository

import (
	"context"

	"pso-control-plane/backend/internal/contactmanager/domain"
)

// Repository defines persistence for contact-manager profiles.
type Repository interface {
	// Get returns the user's profile, or nil when the user is not a Contact
	// Manager.
	Get(ctx context.Context, userID string) (*domain.Profile, error)
	// Upsert overwrites the profile row.
	Upsert(ctx context.Context, p *domain.Profile) error
	// List returns all profiles.
	List(ctx context.Context) ([]*domain.Profile, error)
}
