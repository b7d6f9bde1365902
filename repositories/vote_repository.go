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
	ErrVoteNotFound     = errors.New("vote not found")
	ErrVoteMatchInvalid = errors.New("vote match conflict or invalid")
)

type VoteRepository interface {
	// Upsert records a player's vote, replacing any earlier vote by the
	// same player on the same match. The (match_id, player_id) uniqueness
	// constraint is what makes replacement atomic.
	Upsert(ctx context.Context, vote *models.Vote) error
	GetByMatchAndPlayer(ctx context.Context, matchID, playerID string) (*models.Vote, error)
	ListByMatch(ctx context.Context, matchID string) ([]*models.Vote, error)
	// CountBySong counts current votes on a match that target one song.
	CountBySong(ctx context.Context, matchID, songID string) (int, error)
	// CountDistinctVoters counts players with a current vote on a match.
	CountDistinctVoters(ctx context.Context, matchID string) (int, error)
}

type postgresVoteRepository struct {
	db *sql.DB
}

func NewPostgresVoteRepository(db *sql.DB) VoteRepository {
	return &postgresVoteRepository{db: db}
}

func (r *postgresVoteRepository) Upsert(ctx context.Context, vote *models.Vote) error {
	query := `
		INSERT INTO votes (id, match_id, player_id, song_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (match_id, player_id)
		DO UPDATE SET song_id = EXCLUDED.song_id, created_at = now()
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		vote.ID,
		vote.MatchID,
		vote.PlayerID,
		vote.SongID,
	).Scan(&vote.ID, &vote.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Constraint {
			case "votes_match_id_fkey":
				return ErrVoteMatchInvalid
			}
		}
		return fmt.Errorf("failed to upsert vote: %w", err)
	}
	return nil
}

func (r *postgresVoteRepository) GetByMatchAndPlayer(ctx context.Context, matchID, playerID string) (*models.Vote, error) {
	query := `
		SELECT id, match_id, player_id, song_id, created_at
		FROM votes
		WHERE match_id = $1 AND player_id = $2`

	vote := &models.Vote{}
	err := r.db.QueryRowContext(ctx, query, matchID, playerID).Scan(
		&vote.ID,
		&vote.MatchID,
		&vote.PlayerID,
		&vote.SongID,
		&vote.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVoteNotFound
		}
		return nil, fmt.Errorf("failed to scan vote: %w", err)
	}
	return vote, nil
}

func (r *postgresVoteRepository) ListByMatch(ctx context.Context, matchID string) ([]*models.Vote, error) {
	query := `
		SELECT id, match_id, player_id, song_id, created_at
		FROM votes
		WHERE match_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query votes for match %s: %w", matchID, err)
	}
	defer rows.Close()

	votes := make([]*models.Vote, 0)
	for rows.Next() {
		var vote models.Vote
		if scanErr := rows.Scan(
			&vote.ID,
			&vote.MatchID,
			&vote.PlayerID,
			&vote.SongID,
			&vote.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan vote row: %w", scanErr)
		}
		votes = append(votes, &vote)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during vote rows iteration: %w", err)
	}
	return votes, nil
}

func (r *postgresVoteRepository) CountBySong(ctx context.Context, matchID, songID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM votes WHERE match_id = $1 AND song_id = $2`,
		matchID, songID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count votes for match %s song %s: %w", matchID, songID, err)
	}
	return count, nil
}

func (r *postgresVoteRepository) CountDistinctVoters(ctx context.Context, matchID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT player_id) FROM votes WHERE match_id = $1`,
		matchID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count voters for match %s: %w", matchID, err)
	}
	return count, nil
}
