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
	ErrMatchNotFound          = errors.New("match not found")
	ErrMatchTournamentInvalid = errors.New("match tournament conflict or invalid")
	ErrMatchSongInvalid       = errors.New("match song conflict or invalid")
)

type MatchRepository interface {
	Create(ctx context.Context, match *models.Match) error
	GetByID(ctx context.Context, id string) (*models.Match, error)
	// GetByNumber looks a match up by its ladder sequence number.
	GetByNumber(ctx context.Context, tournamentID string, matchNumber int) (*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID string) ([]*models.Match, error)
	Update(ctx context.Context, id string, update models.MatchUpdate) error
	Delete(ctx context.Context, id string) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

const matchColumns = `id, tournament_id, round_number, match_number, song_a_id, song_b_id,
	       winner_id, status, votes_a, votes_b, currently_playing_song_id, created_at`

func (r *postgresMatchRepository) Create(ctx context.Context, match *models.Match) error {
	query := `
		INSERT INTO matches
			(id, tournament_id, round_number, match_number, song_a_id, song_b_id,
			 winner_id, status, votes_a, votes_b, currently_playing_song_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		match.ID,
		match.TournamentID,
		match.RoundNumber,
		match.MatchNumber,
		match.SongAID,
		match.SongBID,
		match.WinnerID,
		match.Status,
		match.VotesA,
		match.VotesB,
		match.CurrentlyPlayingSongID,
	).Scan(&match.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Constraint {
			case "matches_tournament_id_fkey":
				return ErrMatchTournamentInvalid
			case "matches_song_a_id_fkey", "matches_song_b_id_fkey", "matches_winner_id_fkey":
				return ErrMatchSongInvalid
			}
		}
		return fmt.Errorf("failed to insert match: %w", err)
	}
	return nil
}

func (r *postgresMatchRepository) scanMatch(row *sql.Row) (*models.Match, error) {
	match := &models.Match{}
	err := row.Scan(
		&match.ID,
		&match.TournamentID,
		&match.RoundNumber,
		&match.MatchNumber,
		&match.SongAID,
		&match.SongBID,
		&match.WinnerID,
		&match.Status,
		&match.VotesA,
		&match.VotesB,
		&match.CurrentlyPlayingSongID,
		&match.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match: %w", err)
	}
	return match, nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id string) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	return r.scanMatch(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresMatchRepository) GetByNumber(ctx context.Context, tournamentID string, matchNumber int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE tournament_id = $1 AND match_number = $2`
	return r.scanMatch(r.db.QueryRowContext(ctx, query, tournamentID, matchNumber))
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, tournamentID string) ([]*models.Match, error) {
	query := `
		SELECT ` + matchColumns + `
		FROM matches
		WHERE tournament_id = $1
		ORDER BY match_number ASC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for tournament %s: %w", tournamentID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		var match models.Match
		if scanErr := rows.Scan(
			&match.ID,
			&match.TournamentID,
			&match.RoundNumber,
			&match.MatchNumber,
			&match.SongAID,
			&match.SongBID,
			&match.WinnerID,
			&match.Status,
			&match.VotesA,
			&match.VotesB,
			&match.CurrentlyPlayingSongID,
			&match.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, &match)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) Update(ctx context.Context, id string, update models.MatchUpdate) error {
	var setClauses []string
	var args []interface{}
	placeholder := 1

	appendClause := func(column string, value interface{}) {
		setClauses = append(setClauses, column+" = $"+strconv.Itoa(placeholder))
		args = append(args, value)
		placeholder++
	}

	if update.SongAID != nil {
		appendClause("song_a_id", *update.SongAID)
	}
	if update.SongBID != nil {
		appendClause("song_b_id", *update.SongBID)
	}
	if update.WinnerID != nil {
		appendClause("winner_id", *update.WinnerID)
	}
	if update.Status != nil {
		appendClause("status", *update.Status)
	}
	if update.VotesA != nil {
		appendClause("votes_a", *update.VotesA)
	}
	if update.VotesB != nil {
		appendClause("votes_b", *update.VotesB)
	}
	if update.ClearCurrentlyPlaying {
		setClauses = append(setClauses, "currently_playing_song_id = NULL")
	} else if update.CurrentlyPlayingSongID != nil {
		appendClause("currently_playing_song_id", *update.CurrentlyPlayingSongID)
	}
	if len(setClauses) == 0 {
		return nil
	}

	query := "UPDATE matches SET " + strings.Join(setClauses, ", ") +
		" WHERE id = $" + strconv.Itoa(placeholder)
	args = append(args, id)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update match %s: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM matches WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete match %s: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}
