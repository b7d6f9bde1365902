package models

import "time"

// TournamentStatus represents the phases of one round cycle.
type TournamentStatus string

const (
	TournamentStatusWaiting           TournamentStatus = "waiting"
	TournamentStatusCategorySelection TournamentStatus = "category_selection"
	TournamentStatusSongSubmission    TournamentStatus = "song_submission"
	TournamentStatusTournament        TournamentStatus = "tournament"
	TournamentStatusFinished          TournamentStatus = "finished"
)

// Tournament is one category-themed elimination round within a session.
type Tournament struct {
	ID                 string           `json:"id" db:"id"`
	SessionID          string           `json:"session_id" db:"session_id"`
	Category           string           `json:"category" db:"category"`
	Status             TournamentStatus `json:"status" db:"status"`
	CurrentRound       int              `json:"current_round" db:"current_round"`
	CurrentPickerIndex int              `json:"current_picker_index" db:"current_picker_index"`
	WinningSongID      *string          `json:"winning_song_id,omitempty" db:"winning_song_id"`
	CreatedAt          time.Time        `json:"created_at" db:"created_at"`
}

type TournamentUpdate struct {
	Category      *string
	Status        *TournamentStatus
	CurrentRound  *int
	WinningSongID *string
}
