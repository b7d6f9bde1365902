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
	ErrSongNotFound          = errors.New("song not found")
	ErrSongTournamentInvalid = errors.New("song tournament conflict or invalid")
	ErrSongPlayerInvalid     = errors.New("song player conflict or invalid")
)

type SongRepository interface {
	Create(ctx context.Context, song *models.Song) error
	GetByID(ctx context.Context, id string) (*models.Song, error)
	ListByTournament(ctx context.Context, tournamentID string) ([]*models.Song, error)
	CountByTournament(ctx context.Context, tournamentID string) (int, error)
	Delete(ctx context.Context, id string) error
}

type postgresSongRepository struct {
	db *sql.DB
}

func NewPostgresSongRepository(db *sql.DB) SongRepository {
	return &postgresSongRepository{db: db}
}

func (r *postgresSongRepository) Create(ctx context.Context, song *models.Song) error {
	query := `
		INSERT INTO songs
			(id, tournament_id, player_id, spotify_id, song_name, artist_name, start_time, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		song.ID,
		song.TournamentID,
		song.PlayerID,
		song.SpotifyID,
		song.Name,
		song.ArtistName,
		song.StartTime,
		song.ImageURL,
	).Scan(&song.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Constraint {
			case "songs_tournament_id_fkey":
				return ErrSongTournamentInvalid
			case "songs_player_id_fkey":
				return ErrSongPlayerInvalid
			}
		}
		return fmt.Errorf("failed to insert song: %w", err)
	}
	return nil
}

func (r *postgresSongRepository) GetByID(ctx context.Context, id string) (*models.Song, error) {
	query := `
		SELECT id, tournament_id, player_id, spotify_id, song_name, artist_name, start_time, image_url, created_at
		FROM songs
		WHERE id = $1`

	song := &models.Song{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&song.ID,
		&song.TournamentID,
		&song.PlayerID,
		&song.SpotifyID,
		&song.Name,
		&song.ArtistName,
		&song.StartTime,
		&song.ImageURL,
		&song.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSongNotFound
		}
		return nil, fmt.Errorf("failed to scan song %s: %w", id, err)
	}
	return song, nil
}

func (r *postgresSongRepository) ListByTournament(ctx context.Context, tournamentID string) ([]*models.Song, error) {
	query := `
		SELECT id, tournament_id, player_id, spotify_id, song_name, artist_name, start_time, image_url, created_at
		FROM songs
		WHERE tournament_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query songs for tournament %s: %w", tournamentID, err)
	}
	defer rows.Close()

	songs := make([]*models.Song, 0)
	for rows.Next() {
		var song models.Song
		if scanErr := rows.Scan(
			&song.ID,
			&song.TournamentID,
			&song.PlayerID,
			&song.SpotifyID,
			&song.Name,
			&song.ArtistName,
			&song.StartTime,
			&song.ImageURL,
			&song.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan song row: %w", scanErr)
		}
		songs = append(songs, &song)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during song rows iteration: %w", err)
	}
	return songs, nil
}

func (r *postgresSongRepository) CountByTournament(ctx context.Context, tournamentID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM songs WHERE tournament_id = $1`, tournamentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count songs for tournament %s: %w", tournamentID, err)
	}
	return count, nil
}

func (r *postgresSongRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM songs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete song %s: %w", id, err)
	}
	return checkAffectedRows(result, ErrSongNotFound)
}
