package repository

import (
	"context"
	"time"

	"pso-control-plane/backend/internal/recording/domain"
)

// Repository defines persistence for recording sessions.
type Repository interface {
	CreateActive(ctx context.Context, s *domain.RecordingSession) error
	// FindActiveBySubject returns the subject's active sessions started at or
	// after since, newest first.
	FindActiveBySubject(ctx context.Context, subjectID string, since time.Time) ([]*domain.RecordingSession, error)
	// FindActiveByRoom returns the room's active sessions started at or
	// after since, newest first.
	FindActiveByRoom(ctx context.Context, roomName string, since time.Time) ([]*domain.RecordingSession, error)
	// Complete marks the session completed with its final blob location.
	Complete(ctx context.Context, id string, at time.Time, blobPath, blobURL string) error
	// MarkFailed marks the session failed.
	MarkFailed(ctx context.Context, id string, at time.Time) error
	// List returns sessions newest first with the total count for pagination.
	List(ctx context.Context, limit, offset int) ([]*domain.RecordingSession, int, error)
}
