package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"pso-control-plane/backend/internal/presence/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a presence repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, p *domain.Presence) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO presence (user_id, status, last_seen_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET status = EXCLUDED.status, last_seen_at = EXCLUDED.last_seen_at`,
		p.UserID, string(p.Status), p.LastSeenAt)
	return err
}

func (r *PostgresRepository) Get(ctx context.Context, userID string) (*domain.Presence, error) {
	var (
		p      domain.Presence
		status string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, status, last_seen_at FROM presence WHERE user_id = $1`, userID).
		Scan(&p.UserID, &status, &p.LastSeenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Status = domain.Status(status)
	return &p, nil
}

// OpenHistory inserts an open interval. The partial unique index on
// (user_id) WHERE ended_at IS NULL makes a second open a detectable
// conflict, which is treated as "already open", not an error.
func (r *PostgresRepository) OpenHistory(ctx context.Context, id, userID string, at time.Time) (bool, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO presence_history (id, user_id, started_at)
		VALUES ($1, $2, $3)`, id, userID, at)
	if isUniqueViolation(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *PostgresRepository) CloseOpenHistory(ctx context.Context, userID string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE presence_history
		SET ended_at = $2
		WHERE user_id = $1 AND ended_at IS NULL`, userID, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *PostgresRepository) ListHistory(ctx context.Context, userID string, limit int) ([]*domain.HistoryInterval, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, started_at, ended_at FROM presence_history
		WHERE user_id = $1
		ORDER BY started_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.HistoryInterval
	for rows.Next() {
		var (
			h       domain.HistoryInterval
			endedAt sql.NullTime
		)
		if err := rows.Scan(&h.ID, &h.UserID, &h.StartedAt, &endedAt); err != nil {
			return nil, err
		}
		if endedAt.Valid {
			h.EndedAt = &endedAt.Time
		}
		out = append(out, &h)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
