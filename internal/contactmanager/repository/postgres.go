package repository

import (
	"context"
	"database/sql"
	"errors"

	"pso-control-plane/backend/internal/contactmanager/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a contact-manager profile repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	var (
		p      domain.Profile
		status string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, status, updated_at FROM contact_manager_profiles WHERE user_id = $1`, userID).
		Scan(&p.UserID, &status, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Status = domain.Status(status)
	return &p, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, p *domain.Profile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO contact_manager_profiles (user_id, status, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`,
		p.UserID, string(p.Status), p.UpdatedAt)
	return err
}

func (r *PostgresRepository) List(ctx context.Context) ([]*domain.Profile, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, status, updated_at FROM contact_manager_profiles ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Profile
	for rows.Next() {
		var (
			p      domain.Profile
			status string
		)
		if err := rows.Scan(&p.UserID, &status, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.Status = domain.Status(status)
		out = append(out, &p)
	}
	return out, rows.Err()
}
