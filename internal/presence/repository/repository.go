package repository

import (
	"context"
	"time"

	"pso-control-plane/backend/internal/presence/domain"
)

// Repository defines persistence for presence rows and history intervals.
type Repository interface {
	// Upsert overwrites the user's presence row.
	Upsert(ctx context.Context, p *domain.Presence) error
	// Get returns the user's presence, or nil when never seen.
	Get(ctx context.Context, userID string) (*domain.Presence, error)
	// OpenHistory opens a new interval unless one is already open. Returns
	// whether a new interval was opened.
	OpenHistory(ctx context.Context, id, userID string, at time.Time) (bool, error)
	// CloseOpenHistory closes the user's open interval, if any. Closing with
	// no open interval is a no-op. Returns whether an interval was closed.
	CloseOpenHistory(ctx context.Context, userID string, at time.Time) (bool, error)
	// ListHistory returns the user's intervals, newest first.
	ListHistory(ctx context.Context, userID string, limit int) ([]*domain.HistoryInterval, error)
}
