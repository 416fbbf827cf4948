package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"pso-control-plane/backend/internal/command/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a command repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const commandColumns = `id, subject_id, command_type, issued_at, reason, acknowledged, acknowledged_at, published, published_at, initiator_id`

// Replace deletes the subject's un-acknowledged commands and inserts cmd in
// one transaction. The partial unique index on (subject_id) WHERE NOT
// acknowledged turns a concurrent replace into a serialization conflict
// instead of a silent duplicate.
func (r *PostgresRepository) Replace(ctx context.Context, cmd *domain.PendingCommand) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM pending_commands WHERE subject_id = $1 AND NOT acknowledged`, cmd.SubjectID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO pending_commands (id, subject_id, command_type, issued_at, reason, acknowledged, published, initiator_id)
		VALUES ($1, $2, $3, $4, $5, FALSE, FALSE, $6)`,
		cmd.ID, cmd.SubjectID, string(cmd.Type), cmd.IssuedAt, nullString(cmd.Reason), nullString(cmd.InitiatorID)); err != nil {
		return err
	}
	return tx.Commit()
}

// ListPendingBySubject returns the subject's un-acknowledged commands, newest first.
func (r *PostgresRepository) ListPendingBySubject(ctx context.Context, subjectID string) ([]*domain.PendingCommand, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+commandColumns+` FROM pending_commands
		WHERE subject_id = $1 AND NOT acknowledged
		ORDER BY issued_at DESC`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.PendingCommand
	for rows.Next() {
		cmd, err := scanCommand(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cmd)
	}
	return out, rows.Err()
}

// ExistingIDs returns which of ids exist.
func (r *PostgresRepository) ExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM pending_commands WHERE id = ANY($1::text[])`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// MarkAcknowledged sets acknowledged on all ids. Already-acknowledged rows
// keep their original acknowledged_at.
func (r *PostgresRepository) MarkAcknowledged(ctx context.Context, ids []string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE pending_commands
		SET acknowledged = TRUE,
		    acknowledged_at = COALESCE(acknowledged_at, $2)
		WHERE id = ANY($1::text[])`, pq.Array(ids), at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkPublished sets published/published_at on the command.
func (r *PostgresRepository) MarkPublished(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE pending_commands
		SET published = TRUE,
		    published_at = COALESCE(published_at, $2)
		WHERE id = $1`, id, at)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCommand(s rowScanner) (*domain.PendingCommand, error) {
	var (
		cmd             domain.PendingCommand
		cmdType         string
		reason          sql.NullString
		acknowledgedAt  sql.NullTime
		publishedAt     sql.NullTime
		initiatorID     sql.NullString
	)
	if err := s.Scan(&cmd.ID, &cmd.SubjectID, &cmdType, &cmd.IssuedAt, &reason,
		&cmd.Acknowledged, &acknowledgedAt, &cmd.Published, &publishedAt, &initiatorID); err != nil {
		return nil, err
	}
	cmd.Type = domain.CommandType(cmdType)
	cmd.Reason = reason.String
	cmd.InitiatorID = initiatorID.String
	if acknowledgedAt.Valid {
		cmd.AcknowledgedAt = &acknowledgedAt.Time
	}
	if publishedAt.Valid {
		cmd.PublishedAt = &publishedAt.Time
	}
	return &cmd, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
