package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/songclash/songclash/models"
	"github.com/songclash/songclash/repositories"
	"golang.org/x/sync/errgroup"
)

type SessionService interface {
	Create(ctx context.Context, ownerID string) (*models.Session, error)
	Get(ctx context.Context, sessionID string) (*models.Session, error)
	// Join adds a player to a session. identityID may be empty for guests;
	// the owner flag is set by comparing it to the session owner.
	Join(ctx context.Context, sessionID, playerName, identityID string) (*models.Player, error)
	// Kick removes a player. Owner-only. The player's recorded votes stay
	// in place so finished tallies keep their history.
	Kick(ctx context.Context, sessionID, playerID, requesterID string) error
	Archive(ctx context.Context, sessionID, requesterID string) error
	Delete(ctx context.Context, sessionID, requesterID string) error
	// Snapshot assembles the full aggregate state of a session: the thing
	// every phase transition rebroadcasts and every new stream connection
	// receives first.
	Snapshot(ctx context.Context, sessionID string) (*models.GameState, error)
}

type sessionService struct {
	sessionRepo    repositories.SessionRepository
	playerRepo     repositories.PlayerRepository
	tournamentRepo repositories.TournamentRepository
	songRepo       repositories.SongRepository
	matchRepo      repositories.MatchRepository
	hub            Broadcaster
}

func NewSessionService(
	sessionRepo repositories.SessionRepository,
	playerRepo repositories.PlayerRepository,
	tournamentRepo repositories.TournamentRepository,
	songRepo repositories.SongRepository,
	matchRepo repositories.MatchRepository,
	hub Broadcaster,
) SessionService {
	return &sessionService{
		sessionRepo:    sessionRepo,
		playerRepo:     playerRepo,
		tournamentRepo: tournamentRepo,
		songRepo:       songRepo,
		matchRepo:      matchRepo,
		hub:            hub,
	}
}

func (s *sessionService) Create(ctx context.Context, ownerID string) (*models.Session, error) {
	if ownerID == "" {
		return nil, ErrValidationFailed
	}
	session := &models.Session{
		ID:      newID(),
		OwnerID: ownerID,
		Status:  models.SessionStatusActive,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

func (s *sessionService) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	return s.sessionRepo.GetByID(ctx, sessionID)
}

func (s *sessionService) Join(ctx context.Context, sessionID, playerName, identityID string) (*models.Player, error) {
	playerName = strings.TrimSpace(playerName)
	if playerName == "" {
		return nil, ErrNameRequired
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionStatusActive {
		return nil, ErrSessionArchived
	}

	player := &models.Player{
		ID:        newID(),
		SessionID: sessionID,
		Name:      playerName,
		IsOwner:   identityID != "" && identityID == session.OwnerID,
	}
	// The store assigns the join order on insert.
	if err := s.playerRepo.Create(ctx, player); err != nil {
		return nil, fmt.Errorf("failed to add player: %w", err)
	}

	s.hub.Broadcast(sessionID, models.NewPlayerJoined(*player))
	return player, nil
}

func (s *sessionService) Kick(ctx context.Context, sessionID, playerID, requesterID string) error {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.OwnerID != requesterID {
		return ErrOwnerOnly
	}

	player, err := s.playerRepo.GetByID(ctx, playerID)
	if err != nil {
		return err
	}
	if player.SessionID != sessionID {
		return ErrPlayerNotInSession
	}

	if err := s.playerRepo.Delete(ctx, playerID); err != nil {
		return fmt.Errorf("failed to remove player %s: %w", playerID, err)
	}

	s.hub.Broadcast(sessionID, models.NewPlayerLeft(playerID))
	return nil
}

func (s *sessionService) Archive(ctx context.Context, sessionID, requesterID string) error {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.OwnerID != requesterID {
		return ErrOwnerOnly
	}
	archived := models.SessionStatusArchived
	return s.sessionRepo.Update(ctx, sessionID, models.SessionUpdate{Status: &archived})
}

func (s *sessionService) Delete(ctx context.Context, sessionID, requesterID string) error {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.OwnerID != requesterID {
		return ErrOwnerOnly
	}
	return s.sessionRepo.Delete(ctx, sessionID)
}

func (s *sessionService) Snapshot(ctx context.Context, sessionID string) (*models.GameState, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	state := &models.GameState{
		Session: *session,
		Players: []models.Player{},
		Songs:   []models.Song{},
		Matches: []models.Match{},
	}

	tournament, err := s.tournamentRepo.GetActiveBySession(ctx, sessionID)
	if err != nil && !errors.Is(err, repositories.ErrTournamentNotFound) {
		return nil, fmt.Errorf("failed to load active tournament: %w", err)
	}
	if err == nil {
		state.Tournament = tournament
	} else {
		// Between rounds the latest finished tournament is still the one
		// clients render (winner screen), so fall back to it.
		latest, latestErr := s.tournamentRepo.GetLatestBySession(ctx, sessionID)
		if latestErr == nil {
			state.Tournament = latest
		} else if !errors.Is(latestErr, repositories.ErrTournamentNotFound) {
			return nil, fmt.Errorf("failed to load latest tournament: %w", latestErr)
		}
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		players, err := s.playerRepo.ListBySession(gCtx, sessionID)
		if err != nil {
			return fmt.Errorf("failed to list players: %w", err)
		}
		state.Players = make([]models.Player, 0, len(players))
		for _, p := range players {
			state.Players = append(state.Players, *p)
		}
		return nil
	})

	if state.Tournament != nil {
		tournamentID := state.Tournament.ID
		g.Go(func() error {
			songs, err := s.songRepo.ListByTournament(gCtx, tournamentID)
			if err != nil {
				return fmt.Errorf("failed to list songs: %w", err)
			}
			state.Songs = make([]models.Song, 0, len(songs))
			for _, song := range songs {
				state.Songs = append(state.Songs, *song)
			}
			return nil
		})
		g.Go(func() error {
			matches, err := s.matchRepo.ListByTournament(gCtx, tournamentID)
			if err != nil {
				return fmt.Errorf("failed to list matches: %w", err)
			}
			state.Matches = make([]models.Match, 0, len(matches))
			for _, match := range matches {
				state.Matches = append(state.Matches, *match)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return state, nil
}
