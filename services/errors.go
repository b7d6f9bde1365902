package services

import "errors"

// Sentinel errors shared across services and the HTTP mapping layer.
var (
	// Validation and business rules
	ErrValidationFailed  = errors.New("validation failed")
	ErrNameRequired      = errors.New("player name is required")
	ErrCategoryRequired  = errors.New("category is required")
	ErrCategoryTooLong   = errors.New("category must be at most 100 characters")
	ErrPasswordTooShort  = errors.New("password is too short")
	ErrInsufficientSongs = errors.New("need at least 2 songs to start the tournament")
	ErrSongNotInMatch    = errors.New("song is not part of this match")

	// Illegal state for the current phase
	ErrWrongPhase      = errors.New("operation is not allowed in the current phase")
	ErrMatchNotVotable = errors.New("match is not open for voting")
	ErrNoPlayers       = errors.New("session has no players")
	ErrSessionArchived = errors.New("session is archived")

	// Conflicts
	ErrActiveTournamentExists = errors.New("session already has an active tournament")

	// Authentication and authorization
	ErrAuthInvalidCredentials = errors.New("invalid email or password")
	ErrOwnerOnly              = errors.New("only the session owner can perform this action")
	ErrNotPicker              = errors.New("only the current picker can submit the category")
	ErrPlayerNotInSession     = errors.New("player does not belong to this session")
)
