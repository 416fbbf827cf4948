package repository

import (
	"context"
	"database/sql"
	"time"

	"pso-control-plane/backend/internal/recording/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a recording repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const recordingColumns = `id, room_name, egress_id, initiator_id, subject_id, subject_label, status, started_at, stopped_at, blob_path, blob_url`

func (r *PostgresRepository) CreateActive(ctx context.Context, s *domain.RecordingSession) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recording_sessions (id, room_name, egress_id, initiator_id, subject_id, subject_label, status, started_at, blob_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.RoomName, s.EgressID, s.InitiatorID, s.SubjectID, s.SubjectLabel,
		string(domain.StatusActive), s.StartedAt, s.BlobPath)
	return err
}

func (r *PostgresRepository) FindActiveBySubject(ctx context.Context, subjectID string, since time.Time) ([]*domain.RecordingSession, error) {
	return r.queryRecordings(ctx, `
		SELECT `+recordingColumns+` FROM recording_sessions
		WHERE subject_id = $1 AND status = 'active' AND started_at >= $2
		ORDER BY started_at DESC`, subjectID, since)
}

func (r *PostgresRepository) FindActiveByRoom(ctx context.Context, roomName string, since time.Time) ([]*domain.RecordingSession, error) {
	return r.queryRecordings(ctx, `
		SELECT `+recordingColumns+` FROM recording_sessions
		WHERE room_name = $1 AND status = 'active' AND started_at >= $2
		ORDER BY started_at DESC`, roomName, since)
}

func (r *PostgresRepository) Complete(ctx context.Context, id string, at time.Time, blobPath, blobURL string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE recording_sessions
		SET status = 'completed', stopped_at = $2, blob_path = $3, blob_url = $4
		WHERE id = $1`, id, at, blobPath, nullString(blobURL))
	return err
}

func (r *PostgresRepository) MarkFailed(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE recording_sessions
		SET status = 'failed', stopped_at = $2
		WHERE id = $1`, id, at)
	return err
}

func (r *PostgresRepository) List(ctx context.Context, limit, offset int) ([]*domain.RecordingSession, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM recording_sessions`).Scan(&total); err != nil {
		return nil, 0, err
	}
	sessions, err := r.queryRecordings(ctx, `
		SELECT `+recordingColumns+` FROM recording_sessions
		ORDER BY started_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

func (r *PostgresRepository) queryRecordings(ctx context.Context, query string, args ...any) ([]*domain.RecordingSession, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.RecordingSession
	for rows.Next() {
		var (
			s         domain.RecordingSession
			status    string
			stoppedAt sql.NullTime
			blobURL   sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.RoomName, &s.EgressID, &s.InitiatorID, &s.SubjectID,
			&s.SubjectLabel, &status, &s.StartedAt, &stoppedAt, &s.BlobPath, &blobURL); err != nil {
			return nil, err
		}
		s.Status = domain.Status(status)
		if stoppedAt.Valid {
			s.StoppedAt = &stoppedAt.Time
		}
		s.BlobURL = blobURL.String
		out = append(out, &s)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
