package repository

import (
	"context"

	"pso-control-plane/backend/internal/audit/domain"
)

// Repository defines persistence for audit logs.
type Repository interface {
	Create(ctx context.Context, a *domain.AuditLog) error
	List(ctx context.Context, limit, offset int32) ([]*domain.AuditLog, error)
}
