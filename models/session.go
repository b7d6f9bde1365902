package models

import "time"

// SessionStatus mirrors the ENUM in the database.
type SessionStatus string

const (
	SessionStatusActive   SessionStatus = "active"
	SessionStatusArchived SessionStatus = "archived"
)

// Session is a standing multiplayer room. It owns players and a history of
// tournaments; at most one tournament per session is not finished.
type Session struct {
	ID        string        `json:"id" db:"id"`
	OwnerID   string        `json:"owner_id" db:"owner_id"`
	Status    SessionStatus `json:"status" db:"status"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}

// SessionUpdate applies only the fields that are set.
type SessionUpdate struct {
	Status *SessionStatus
}
