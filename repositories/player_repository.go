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
	ErrPlayerNotFound          = errors.New("player not found")
	ErrPlayerSessionInvalid    = errors.New("player session conflict or invalid")
	ErrPlayerJoinOrderConflict = errors.New("player join order already taken for this session")
)

type PlayerRepository interface {
	// Create inserts the player and assigns its join order: one past the
	// highest order in the session. The row count would collide with a
	// surviving player after a kick.
	Create(ctx context.Context, player *models.Player) error
	GetByID(ctx context.Context, id string) (*models.Player, error)
	ListBySession(ctx context.Context, sessionID string) ([]*models.Player, error)
	CountBySession(ctx context.Context, sessionID string) (int, error)
	Update(ctx context.Context, id string, update models.PlayerUpdate) error
	Delete(ctx context.Context, id string) error
}

type postgresPlayerRepository struct {
	db *sql.DB
}

func NewPostgresPlayerRepository(db *sql.DB) PlayerRepository {
	return &postgresPlayerRepository{db: db}
}

func (r *postgresPlayerRepository) Create(ctx context.Context, player *models.Player) error {
	query := `
		INSERT INTO players (id, session_id, name, spotify_device_id, is_owner, join_order)
		VALUES ($1, $2, $3, $4, $5,
			(SELECT COALESCE(MAX(join_order) + 1, 0) FROM players WHERE session_id = $2))
		RETURNING join_order, created_at`

	err := r.db.QueryRowContext(ctx, query,
		player.ID,
		player.SessionID,
		player.Name,
		player.SpotifyDeviceID,
		player.IsOwner,
	).Scan(&player.JoinOrder, &player.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Constraint {
			case "players_session_id_fkey":
				return ErrPlayerSessionInvalid
			case "players_session_id_join_order_key":
				return ErrPlayerJoinOrderConflict
			}
		}
		return fmt.Errorf("failed to insert player: %w", err)
	}
	return nil
}

func (r *postgresPlayerRepository) GetByID(ctx context.Context, id string) (*models.Player, error) {
	query := `
		SELECT id, session_id, name, spotify_device_id, is_owner, join_order, created_at
		FROM players
		WHERE id = $1`

	player := &models.Player{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&player.ID,
		&player.SessionID,
		&player.Name,
		&player.SpotifyDeviceID,
		&player.IsOwner,
		&player.JoinOrder,
		&player.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to scan player %s: %w", id, err)
	}
	return player, nil
}

func (r *postgresPlayerRepository) ListBySession(ctx context.Context, sessionID string) ([]*models.Player, error) {
	query := `
		SELECT id, session_id, name, spotify_device_id, is_owner, join_order, created_at
		FROM players
		WHERE session_id = $1
		ORDER BY join_order ASC`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query players for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	players := make([]*models.Player, 0)
	for rows.Next() {
		var player models.Player
		if scanErr := rows.Scan(
			&player.ID,
			&player.SessionID,
			&player.Name,
			&player.SpotifyDeviceID,
			&player.IsOwner,
			&player.JoinOrder,
			&player.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan player row: %w", scanErr)
		}
		players = append(players, &player)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during player rows iteration: %w", err)
	}
	return players, nil
}

func (r *postgresPlayerRepository) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM players WHERE session_id = $1`, sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count players for session %s: %w", sessionID, err)
	}
	return count, nil
}

func (r *postgresPlayerRepository) Update(ctx context.Context, id string, update models.PlayerUpdate) error {
	var setClauses []string
	var args []interface{}
	placeholder := 1

	if update.Name != nil {
		setClauses = append(setClauses, "name = $"+strconv.Itoa(placeholder))
		args = append(args, *update.Name)
		placeholder++
	}
	if update.SpotifyDeviceID != nil {
		setClauses = append(setClauses, "spotify_device_id = $"+strconv.Itoa(placeholder))
		args = append(args, *update.SpotifyDeviceID)
		placeholder++
	}
	if len(setClauses) == 0 {
		return nil
	}

	query := "UPDATE players SET " + strings.Join(setClauses, ", ") +
		" WHERE id = $" + strconv.Itoa(placeholder)
	args = append(args, id)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update player %s: %w", id, err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM players WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete player %s: %w", id, err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}
