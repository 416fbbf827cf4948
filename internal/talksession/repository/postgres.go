package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"pso-control-plane/backend/internal/talksession/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a talk session repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const sessionColumns = `id, supervisor_id, pso_id, started_at, stopped_at, stop_reason`

// CreateActive inserts an active session. The partial unique index on
// (supervisor_id, pso_id) WHERE stopped_at IS NULL rejects a second active
// row for the pair.
func (r *PostgresRepository) CreateActive(ctx context.Context, s *domain.TalkSession) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO talk_sessions (id, supervisor_id, pso_id, started_at)
		VALUES ($1, $2, $3, $4)`,
		s.ID, s.SupervisorID, s.PSOID, s.StartedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateActive
	}
	return err
}

// Stop performs the conditional update. The WHERE stopped_at IS NULL clause
// makes the first stop win; a later stop falls through to a plain read.
func (r *PostgresRepository) Stop(ctx context.Context, id string, at time.Time, reason domain.StopReason) (*domain.TalkSession, bool, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE talk_sessions
		SET stopped_at = $2, stop_reason = $3
		WHERE id = $1 AND stopped_at IS NULL
		RETURNING `+sessionColumns, id, at, string(reason))
	s, err := scanSession(row)
	if err == nil {
		return s, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}
	s, err = r.GetByID(ctx, id)
	return s, false, err
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.TalkSession, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM talk_sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (r *PostgresRepository) FindActiveByPSO(ctx context.Context, psoID string) ([]*domain.TalkSession, error) {
	return r.querySessions(ctx, `
		SELECT `+sessionColumns+` FROM talk_sessions
		WHERE pso_id = $1 AND stopped_at IS NULL
		ORDER BY started_at DESC`, psoID)
}

func (r *PostgresRepository) FindActiveBySupervisor(ctx context.Context, supervisorID string) ([]*domain.TalkSession, error) {
	return r.querySessions(ctx, `
		SELECT `+sessionColumns+` FROM talk_sessions
		WHERE supervisor_id = $1 AND stopped_at IS NULL
		ORDER BY started_at DESC`, supervisorID)
}

func (r *PostgresRepository) List(ctx context.Context, limit, offset int) ([]*domain.TalkSession, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM talk_sessions`).Scan(&total); err != nil {
		return nil, 0, err
	}
	sessions, err := r.querySessions(ctx, `
		SELECT `+sessionColumns+` FROM talk_sessions
		ORDER BY started_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

func (r *PostgresRepository) querySessions(ctx context.Context, query string, args ...any) ([]*domain.TalkSession, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.TalkSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(s rowScanner) (*domain.TalkSession, error) {
	var (
		sess       domain.TalkSession
		stoppedAt  sql.NullTime
		stopReason sql.NullString
	)
	if err := s.Scan(&sess.ID, &sess.SupervisorID, &sess.PSOID, &sess.StartedAt, &stoppedAt, &stopReason); err != nil {
		return nil, err
	}
	if stoppedAt.Valid {
		sess.StoppedAt = &stoppedAt.Time
	}
	sess.StopReason = domain.StopReason(stopReason.String)
	return &sess, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
