package models

import "time"

type MatchStatus string

const (
	MatchStatusPending   MatchStatus = "pending"
	MatchStatusPlaying   MatchStatus = "playing"
	MatchStatusVoting    MatchStatus = "voting"
	MatchStatusCompleted MatchStatus = "completed"
)

// Match is one head-to-head contest within a tournament's ladder. A nil
// slot is either "not yet filled by a winner" or a bye; a match with both
// slots nil is invalid.
type Match struct {
	ID                     string      `json:"id" db:"id"`
	TournamentID           string      `json:"tournament_id" db:"tournament_id"`
	RoundNumber            int         `json:"round_number" db:"round_number"`
	MatchNumber            int         `json:"match_number" db:"match_number"`
	SongAID                *string     `json:"song_a_id,omitempty" db:"song_a_id"`
	SongBID                *string     `json:"song_b_id,omitempty" db:"song_b_id"`
	WinnerID               *string     `json:"winner_id,omitempty" db:"winner_id"`
	Status                 MatchStatus `json:"status" db:"status"`
	VotesA                 int         `json:"votes_a" db:"votes_a"`
	VotesB                 int         `json:"votes_b" db:"votes_b"`
	CurrentlyPlayingSongID *string     `json:"currently_playing_song_id,omitempty" db:"currently_playing_song_id"`
	CreatedAt              time.Time   `json:"created_at" db:"created_at"`
}

// HasSong reports whether songID occupies one of the match's slots.
func (m *Match) HasSong(songID string) bool {
	if m.SongAID != nil && *m.SongAID == songID {
		return true
	}
	return m.SongBID != nil && *m.SongBID == songID
}

type MatchUpdate struct {
	SongAID                *string
	SongBID                *string
	WinnerID               *string
	Status                 *MatchStatus
	VotesA                 *int
	VotesB                 *int
	CurrentlyPlayingSongID *string
	ClearCurrentlyPlaying  bool
}
