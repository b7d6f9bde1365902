package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/songclash/songclash/models"
)

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionOwnerInvalid = errors.New("session owner conflict or invalid")
)

type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	Update(ctx context.Context, id string, update models.SessionUpdate) error
	Delete(ctx context.Context, id string) error
}

type postgresSessionRepository struct {
	db *sql.DB
}

func NewPostgresSessionRepository(db *sql.DB) SessionRepository {
	return &postgresSessionRepository{db: db}
}

func (r *postgresSessionRepository) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (id, owner_id, status)
		VALUES ($1, $2, $3)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		session.ID,
		session.OwnerID,
		session.Status,
	).Scan(&session.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Constraint == "sessions_owner_id_fkey" {
			return ErrSessionOwnerInvalid
		}
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (r *postgresSessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	query := `
		SELECT id, owner_id, status, created_at
		FROM sessions
		WHERE id = $1`

	session := &models.Session{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID,
		&session.OwnerID,
		&session.Status,
		&session.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to scan session %s: %w", id, err)
	}
	return session, nil
}

func (r *postgresSessionRepository) Update(ctx context.Context, id string, update models.SessionUpdate) error {
	if update.Status == nil {
		return nil
	}
	query := `UPDATE sessions SET status = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, *update.Status, id)
	if err != nil {
		return fmt.Errorf("failed to update session %s: %w", id, err)
	}
	return checkAffectedRows(result, ErrSessionNotFound)
}

func (r *postgresSessionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return checkAffectedRows(result, ErrSessionNotFound)
}
