package repository

import (
	"context"
	"time"

	"pso-control-plane/backend/internal/command/domain"
)

// Repository defines persistence for pending device commands.
type Repository interface {
	// Replace atomically removes the subject's un-acknowledged commands and
	// inserts cmd in their place, in a single transaction. Two requests
	// racing on the same subject serialize on the store.
	Replace(ctx context.Context, cmd *domain.PendingCommand) error
	// ListPendingBySubject returns the subject's un-acknowledged commands,
	// newest first.
	ListPendingBySubject(ctx context.Context, subjectID string) ([]*domain.PendingCommand, error)
	// ExistingIDs returns which of ids exist, in no particular order.
	ExistingIDs(ctx context.Context, ids []string) ([]string, error)
	// MarkAcknowledged sets acknowledged/acknowledged_at on all ids and
	// returns the number of rows updated. Re-acknowledging is a no-op per
	// row but still counts the row as updated.
	MarkAcknowledged(ctx context.Context, ids []string, at time.Time) (int64, error)
	// MarkPublished sets published/published_at on the command.
	MarkPublished(ctx context.Context, id string, at time.Time) error
}
