package models

import "time"

// Song is a candidate submitted for a tournament's category. StartTime is
// the playback offset in seconds.
type Song struct {
	ID           string    `json:"id" db:"id"`
	TournamentID string    `json:"tournament_id" db:"tournament_id"`
	PlayerID     string    `json:"player_id" db:"player_id"`
	SpotifyID    string    `json:"spotify_id" db:"spotify_id"`
	Name         string    `json:"song_name" db:"song_name"`
	ArtistName   string    `json:"artist_name" db:"artist_name"`
	StartTime    int       `json:"start_time" db:"start_time"`
	ImageURL     *string   `json:"image_url,omitempty" db:"image_url"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
