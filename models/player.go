package models

import "time"

// Player is a participant in a session. JoinOrder is assigned at join time,
// is unique per session and drives category picker rotation.
type Player struct {
	ID              string    `json:"id" db:"id"`
	SessionID       string    `json:"session_id" db:"session_id"`
	Name            string    `json:"name" db:"name"`
	SpotifyDeviceID *string   `json:"spotify_device_id,omitempty" db:"spotify_device_id"`
	IsOwner         bool      `json:"is_owner" db:"is_owner"`
	JoinOrder       int       `json:"join_order" db:"join_order"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

type PlayerUpdate struct {
	Name            *string
	SpotifyDeviceID *string
}
