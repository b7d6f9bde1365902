package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/songclash/songclash/models"
)

var (
	ErrTournamentNotFound       = errors.New("tournament not found")
	ErrTournamentSessionInvalid = errors.New("tournament session conflict or invalid")
)

type TournamentRepository interface {
	Create(ctx context.Context, tournament *models.Tournament) error
	GetByID(ctx context.Context, id string) (*models.Tournament, error)
	// GetActiveBySession returns the newest non-finished tournament of a
	// session, or ErrTournamentNotFound when every tournament is finished.
	GetActiveBySession(ctx context.Context, sessionID string) (*models.Tournament, error)
	// GetLatestBySession returns the newest tournament regardless of status.
	GetLatestBySession(ctx context.Context, sessionID string) (*models.Tournament, error)
	ListBySession(ctx context.Context, sessionID string) ([]*models.Tournament, error)
	Update(ctx context.Context, id string, update models.TournamentUpdate) error
	Delete(ctx context.Context, id string) error
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

const tournamentColumns = `id, session_id, category, status, current_round, current_picker_index, winning_song_id, created_at`

func (r *postgresTournamentRepository) Create(ctx context.Context, tournament *models.Tournament) error {
	query := `
		INSERT INTO tournaments
			(id, session_id, category, status, current_round, current_picker_index, winning_song_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		tournament.ID,
		tournament.SessionID,
		tournament.Category,
		tournament.Status,
		tournament.CurrentRound,
		tournament.CurrentPickerIndex,
		tournament.WinningSongID,
	).Scan(&tournament.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Constraint == "tournaments_session_id_fkey" {
			return ErrTournamentSessionInvalid
		}
		return fmt.Errorf("failed to insert tournament: %w", err)
	}
	return nil
}

func (r *postgresTournamentRepository) scanTournament(row *sql.Row) (*models.Tournament, error) {
	tournament := &models.Tournament{}
	err := row.Scan(
		&tournament.ID,
		&tournament.SessionID,
		&tournament.Category,
		&tournament.Status,
		&tournament.CurrentRound,
		&tournament.CurrentPickerIndex,
		&tournament.WinningSongID,
		&tournament.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament: %w", err)
	}
	return tournament, nil
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id string) (*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE id = $1`
	return r.scanTournament(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresTournamentRepository) GetActiveBySession(ctx context.Context, sessionID string) (*models.Tournament, error) {
	query := `
		SELECT ` + tournamentColumns + `
		FROM tournaments
		WHERE session_id = $1 AND status <> $2
		ORDER BY created_at DESC
		LIMIT 1`
	return r.scanTournament(r.db.QueryRowContext(ctx, query, sessionID, models.TournamentStatusFinished))
}

func (r *postgresTournamentRepository) GetLatestBySession(ctx context.Context, sessionID string) (*models.Tournament, error) {
	query := `
		SELECT ` + tournamentColumns + `
		FROM tournaments
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT 1`
	return r.scanTournament(r.db.QueryRowContext(ctx, query, sessionID))
}

func (r *postgresTournamentRepository) ListBySession(ctx context.Context, sessionID string) ([]*models.Tournament, error) {
	query := `
		SELECT ` + tournamentColumns + `
		FROM tournaments
		WHERE session_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tournaments for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	tournaments := make([]*models.Tournament, 0)
	for rows.Next() {
		var t models.Tournament
		if scanErr := rows.Scan(
			&t.ID,
			&t.SessionID,
			&t.Category,
			&t.Status,
			&t.CurrentRound,
			&t.CurrentPickerIndex,
			&t.WinningSongID,
			&t.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan tournament row: %w", scanErr)
		}
		tournaments = append(tournaments, &t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during tournament rows iteration: %w", err)
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) Update(ctx context.Context, id string, update models.TournamentUpdate) error {
	var setClauses []string
	var args []interface{}
	placeholder := 1

	if update.Category != nil {
		setClauses = append(setClauses, "category = $"+strconv.Itoa(placeholder))
		args = append(args, *update.Category)
		placeholder++
	}
	if update.Status != nil {
		setClauses = append(setClauses, "status = $"+strconv.Itoa(placeholder))
		args = append(args, *update.Status)
		placeholder++
	}
	if update.CurrentRound != nil {
		setClauses = append(setClauses, "current_round = $"+strconv.Itoa(placeholder))
		args = append(args, *update.CurrentRound)
		placeholder++
	}
	if update.WinningSongID != nil {
		setClauses = append(setClauses, "winning_song_id = $"+strconv.Itoa(placeholder))
		args = append(args, *update.WinningSongID)
		placeholder++
	}
	if len(setClauses) == 0 {
		return nil
	}

	query := "UPDATE tournaments SET " + strings.Join(setClauses, ", ") +
		" WHERE id = $" + strconv.Itoa(placeholder)
	args = append(args, id)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update tournament %s: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tournaments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete tournament %s: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}
