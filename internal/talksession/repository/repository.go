package repository

import (
	"context"
	"errors"
	"time"

	"pso-control-plane/backend/internal/talksession/domain"
)

// ErrDuplicateActive is returned by CreateActive when the (supervisor, pso)
// pair already has an active session. Backed by the partial unique index, so
// two racing starts cannot both succeed.
var ErrDuplicateActive = errors.New("active talk session already exists for pair")

// Repository defines persistence for talk sessions.
type Repository interface {
	// CreateActive inserts s as an active session. Returns ErrDuplicateActive
	// when the pair already has one.
	CreateActive(ctx context.Context, s *domain.TalkSession) error
	// Stop sets stopped_at/stop_reason if the session is still active, in a
	// single conditional update. Returns the resulting row and whether this
	// call performed the stop. (nil, false, nil) when the session does not
	// exist.
	Stop(ctx context.Context, id string, at time.Time, reason domain.StopReason) (*domain.TalkSession, bool, error)
	GetByID(ctx context.Context, id string) (*domain.TalkSession, error)
	// FindActiveByPSO returns the PSO's active sessions, newest first.
	FindActiveByPSO(ctx context.Context, psoID string) ([]*domain.TalkSession, error)
	// FindActiveBySupervisor returns the supervisor's active sessions, newest first.
	FindActiveBySupervisor(ctx context.Context, supervisorID string) ([]*domain.TalkSession, error)
	// List returns sessions newest first with the total count for pagination.
	List(ctx context.Context, limit, offset int) ([]*domain.TalkSession, int, error)
}
