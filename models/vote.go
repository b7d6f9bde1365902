package models

import "time"

// Vote records one player's current choice within a match. Unique per
// (match_id, player_id); casting again replaces the previous vote.
type Vote struct {
	ID        string    `json:"id" db:"id"`
	MatchID   string    `json:"match_id" db:"match_id"`
	PlayerID  string    `json:"player_id" db:"player_id"`
	SongID    string    `json:"song_id" db:"song_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
