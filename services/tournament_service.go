package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/songclash/songclash/brackets"
	"github.com/songclash/songclash/models"
	"github.com/songclash/songclash/repositories"
)

const maxCategoryLength = 100

// StateLoader provides the aggregate snapshot rebroadcast on every phase
// transition. The session service satisfies it.
type StateLoader interface {
	Snapshot(ctx context.Context, sessionID string) (*models.GameState, error)
}

// ArtworkMirror copies remote cover art into our own object storage and
// returns the mirrored URL. A nil mirror leaves the original URL in place.
type ArtworkMirror interface {
	Mirror(ctx context.Context, sourceURL string) (string, error)
}

type SongInput struct {
	SpotifyID  string  `json:"spotify_id"`
	Name       string  `json:"song_name"`
	ArtistName string  `json:"artist_name"`
	StartTime  int     `json:"start_time"`
	ImageURL   *string `json:"image_url"`
}

type TournamentService interface {
	// NewRound opens the next category round. Only one non-finished
	// tournament may exist per session; the picker seat rotates by join
	// order from the previous round's picker.
	NewRound(ctx context.Context, sessionID, playerID string) (*models.Tournament, error)
	// SubmitCategory sets the round's theme. Picker-only.
	SubmitCategory(ctx context.Context, sessionID, playerID, category string) (*models.Tournament, error)
	// SubmitSong adds a candidate during the submission phase.
	SubmitSong(ctx context.Context, sessionID, playerID string, input SongInput) (*models.Song, error)
	// Start freezes submissions, builds the ladder and opens the first
	// match. Owner-only.
	Start(ctx context.Context, sessionID, playerID string) (*models.Tournament, error)
}

type tournamentService struct {
	sessionRepo    repositories.SessionRepository
	playerRepo     repositories.PlayerRepository
	tournamentRepo repositories.TournamentRepository
	songRepo       repositories.SongRepository
	matchRepo      repositories.MatchRepository
	generator      brackets.Generator
	state          StateLoader
	hub            Broadcaster
	artwork        ArtworkMirror
	logger         *slog.Logger
}

func NewTournamentService(
	sessionRepo repositories.SessionRepository,
	playerRepo repositories.PlayerRepository,
	tournamentRepo repositories.TournamentRepository,
	songRepo repositories.SongRepository,
	matchRepo repositories.MatchRepository,
	generator brackets.Generator,
	state StateLoader,
	hub Broadcaster,
	artwork ArtworkMirror,
	logger *slog.Logger,
) TournamentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &tournamentService{
		sessionRepo:    sessionRepo,
		playerRepo:     playerRepo,
		tournamentRepo: tournamentRepo,
		songRepo:       songRepo,
		matchRepo:      matchRepo,
		generator:      generator,
		state:          state,
		hub:            hub,
		artwork:        artwork,
		logger:         logger,
	}
}

func (s *tournamentService) NewRound(ctx context.Context, sessionID, playerID string) (*models.Tournament, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionStatusActive {
		return nil, ErrSessionArchived
	}
	if _, err := s.requireSessionPlayer(ctx, sessionID, playerID); err != nil {
		return nil, err
	}

	_, err = s.tournamentRepo.GetActiveBySession(ctx, sessionID)
	if err == nil {
		return nil, ErrActiveTournamentExists
	}
	if !errors.Is(err, repositories.ErrTournamentNotFound) {
		return nil, fmt.Errorf("failed to check for active tournament: %w", err)
	}

	playerCount, err := s.playerRepo.CountBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count players: %w", err)
	}
	if playerCount == 0 {
		return nil, ErrNoPlayers
	}

	// The picker seat is recomputed against the current roster, so a kick
	// between rounds never strands the rotation on a gone player.
	pickerIndex := 0
	if prev, prevErr := s.tournamentRepo.GetLatestBySession(ctx, sessionID); prevErr == nil {
		pickerIndex = (prev.CurrentPickerIndex + 1) % playerCount
	} else if !errors.Is(prevErr, repositories.ErrTournamentNotFound) {
		return nil, fmt.Errorf("failed to load previous tournament: %w", prevErr)
	}

	tournament := &models.Tournament{
		ID:                 newID(),
		SessionID:          sessionID,
		Status:             models.TournamentStatusCategorySelection,
		CurrentPickerIndex: pickerIndex,
	}
	if err := s.tournamentRepo.Create(ctx, tournament); err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}

	s.broadcastState(ctx, sessionID)
	return tournament, nil
}

func (s *tournamentService) SubmitCategory(ctx context.Context, sessionID, playerID, category string) (*models.Tournament, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, ErrCategoryRequired
	}
	if len(category) > maxCategoryLength {
		return nil, ErrCategoryTooLong
	}

	tournament, err := s.tournamentRepo.GetActiveBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if tournament.Status != models.TournamentStatusCategorySelection {
		return nil, ErrWrongPhase
	}

	players, err := s.playerRepo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	if len(players) == 0 {
		return nil, ErrNoPlayers
	}
	picker := players[tournament.CurrentPickerIndex%len(players)]
	if picker.ID != playerID {
		return nil, ErrNotPicker
	}

	status := models.TournamentStatusSongSubmission
	update := models.TournamentUpdate{Category: &category, Status: &status}
	if err := s.tournamentRepo.Update(ctx, tournament.ID, update); err != nil {
		return nil, fmt.Errorf("failed to announce category: %w", err)
	}
	tournament.Category = category
	tournament.Status = status

	s.hub.Broadcast(sessionID, models.NewCategoryAnnounced(category))
	s.broadcastState(ctx, sessionID)
	return tournament, nil
}

func (s *tournamentService) SubmitSong(ctx context.Context, sessionID, playerID string, input SongInput) (*models.Song, error) {
	if strings.TrimSpace(input.SpotifyID) == "" || strings.TrimSpace(input.Name) == "" {
		return nil, ErrValidationFailed
	}
	if input.StartTime < 0 {
		return nil, ErrValidationFailed
	}

	tournament, err := s.tournamentRepo.GetActiveBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if tournament.Status != models.TournamentStatusSongSubmission {
		return nil, ErrWrongPhase
	}
	if _, err := s.requireSessionPlayer(ctx, sessionID, playerID); err != nil {
		return nil, err
	}

	imageURL := input.ImageURL
	if s.artwork != nil && imageURL != nil && *imageURL != "" {
		mirrored, mirrorErr := s.artwork.Mirror(ctx, *imageURL)
		if mirrorErr != nil {
			// Cover art is cosmetic, keep the original URL on failure.
			s.logger.Warn("failed to mirror song artwork",
				slog.String("source_url", *imageURL),
				slog.Any("error", mirrorErr))
		} else {
			imageURL = &mirrored
		}
	}

	song := &models.Song{
		ID:           newID(),
		TournamentID: tournament.ID,
		PlayerID:     playerID,
		SpotifyID:    input.SpotifyID,
		Name:         input.Name,
		ArtistName:   input.ArtistName,
		StartTime:    input.StartTime,
		ImageURL:     imageURL,
	}
	if err := s.songRepo.Create(ctx, song); err != nil {
		return nil, fmt.Errorf("failed to add song: %w", err)
	}

	s.hub.Broadcast(sessionID, models.NewSongSubmitted(*song))
	return song, nil
}

func (s *tournamentService) Start(ctx context.Context, sessionID, playerID string) (*models.Tournament, error) {
	player, err := s.requireSessionPlayer(ctx, sessionID, playerID)
	if err != nil {
		return nil, err
	}
	if !player.IsOwner {
		return nil, ErrOwnerOnly
	}

	tournament, err := s.tournamentRepo.GetActiveBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if tournament.Status != models.TournamentStatusSongSubmission {
		return nil, ErrWrongPhase
	}

	songPtrs, err := s.songRepo.ListByTournament(ctx, tournament.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list songs: %w", err)
	}
	songs := make([]models.Song, 0, len(songPtrs))
	for _, song := range songPtrs {
		songs = append(songs, *song)
	}

	seeds, err := s.generator.Build(brackets.BuildParams{Songs: songs})
	if err != nil {
		if errors.Is(err, brackets.ErrNotEnoughSongs) {
			return nil, ErrInsufficientSongs
		}
		return nil, fmt.Errorf("failed to build bracket: %w", err)
	}

	var opening *models.Match
	for _, seed := range seeds {
		match := &models.Match{
			ID:           newID(),
			TournamentID: tournament.ID,
			RoundNumber:  seed.RoundNumber,
			MatchNumber:  seed.MatchNumber,
			SongAID:      seed.SongAID,
			SongBID:      seed.SongBID,
			Status:       seed.Status,
		}
		if err := s.matchRepo.Create(ctx, match); err != nil {
			return nil, fmt.Errorf("failed to create match %d: %w", seed.MatchNumber, err)
		}
		if match.MatchNumber == 0 {
			opening = match
		}
	}

	status := models.TournamentStatusTournament
	round := 1
	if err := s.tournamentRepo.Update(ctx, tournament.ID, models.TournamentUpdate{
		Status:       &status,
		CurrentRound: &round,
	}); err != nil {
		return nil, fmt.Errorf("failed to start tournament: %w", err)
	}
	tournament.Status = status
	tournament.CurrentRound = round

	if opening != nil {
		started, buildErr := s.matchStartedData(ctx, opening)
		if buildErr != nil {
			s.logger.Error("failed to assemble match start payload",
				slog.String("match_id", opening.ID),
				slog.Any("error", buildErr))
		} else {
			s.hub.Broadcast(sessionID, models.NewMatchStarted(started))
		}
	}
	s.broadcastState(ctx, sessionID)
	return tournament, nil
}

func (s *tournamentService) requireSessionPlayer(ctx context.Context, sessionID, playerID string) (*models.Player, error) {
	player, err := s.playerRepo.GetByID(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if player.SessionID != sessionID {
		return nil, ErrPlayerNotInSession
	}
	return player, nil
}

func (s *tournamentService) matchStartedData(ctx context.Context, match *models.Match) (models.MatchStartedData, error) {
	data := models.MatchStartedData{
		MatchID:         match.ID,
		DurationSeconds: brackets.PlaybackDuration(match.MatchNumber),
	}
	if match.SongAID != nil {
		song, err := s.songRepo.GetByID(ctx, *match.SongAID)
		if err != nil {
			return data, err
		}
		data.SongA = song
	}
	if match.SongBID != nil {
		song, err := s.songRepo.GetByID(ctx, *match.SongBID)
		if err != nil {
			return data, err
		}
		data.SongB = song
	}
	return data, nil
}

func (s *tournamentService) broadcastState(ctx context.Context, sessionID string) {
	state, err := s.state.Snapshot(ctx, sessionID)
	if err != nil {
		s.logger.Error("failed to assemble session snapshot",
			slog.String("session_id", sessionID),
			slog.Any("error", err))
		return
	}
	s.hub.Broadcast(sessionID, models.NewGameState(*state))
}
