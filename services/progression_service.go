package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/songclash/songclash/brackets"
	"github.com/songclash/songclash/events"
	"github.com/songclash/songclash/models"
	"github.com/songclash/songclash/repositories"
)

// ProgressionService drives the ladder forward off the event bus: every cast
// vote is checked against the voter threshold, a completed match resolves its
// winner and either opens the successor or finishes the tournament.
type ProgressionService struct {
	playerRepo     repositories.PlayerRepository
	tournamentRepo repositories.TournamentRepository
	songRepo       repositories.SongRepository
	matchRepo      repositories.MatchRepository
	voteRepo       repositories.VoteRepository
	ladder         *brackets.LadderGenerator
	locker         *MatchLocker
	bus            *events.Bus
	state          StateLoader
	hub            Broadcaster
	logger         *slog.Logger
}

func NewProgressionService(
	playerRepo repositories.PlayerRepository,
	tournamentRepo repositories.TournamentRepository,
	songRepo repositories.SongRepository,
	matchRepo repositories.MatchRepository,
	voteRepo repositories.VoteRepository,
	ladder *brackets.LadderGenerator,
	locker *MatchLocker,
	bus *events.Bus,
	state StateLoader,
	hub Broadcaster,
	logger *slog.Logger,
) *ProgressionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressionService{
		playerRepo:     playerRepo,
		tournamentRepo: tournamentRepo,
		songRepo:       songRepo,
		matchRepo:      matchRepo,
		voteRepo:       voteRepo,
		ladder:         ladder,
		locker:         locker,
		bus:            bus,
		state:          state,
		hub:            hub,
		logger:         logger,
	}
}

// Register wires the service's handlers into the bus. Call once at startup.
func (s *ProgressionService) Register() {
	s.bus.OnVoteCast(s.handleVoteCast)
	s.bus.OnMatchCompleted(s.handleMatchCompleted)
}

func (s *ProgressionService) handleVoteCast(ctx context.Context, e events.VoteCast) {
	match, err := s.matchRepo.GetByID(ctx, e.MatchID)
	if err != nil {
		s.logger.Error("completion check: failed to load match",
			slog.String("match_id", e.MatchID), slog.Any("error", err))
		return
	}
	if match.Status == models.MatchStatusCompleted {
		return
	}

	voters, err := s.voteRepo.CountDistinctVoters(ctx, e.MatchID)
	if err != nil {
		s.logger.Error("completion check: failed to count voters",
			slog.String("match_id", e.MatchID), slog.Any("error", err))
		return
	}
	playerCount, err := s.playerRepo.CountBySession(ctx, e.SessionID)
	if err != nil {
		s.logger.Error("completion check: failed to count players",
			slog.String("session_id", e.SessionID), slog.Any("error", err))
		return
	}

	// Kicked players keep their recorded votes, so after a kick the voter
	// count can already exceed the remaining roster.
	if playerCount > 0 && voters >= playerCount {
		s.bus.EmitMatchCompleted(ctx, events.MatchCompleted{
			SessionID:    e.SessionID,
			TournamentID: e.TournamentID,
			MatchID:      e.MatchID,
		})
	}
}

func (s *ProgressionService) handleMatchCompleted(ctx context.Context, e events.MatchCompleted) {
	completed, err := s.completeMatch(ctx, e)
	if err != nil {
		s.logger.Error("failed to complete match",
			slog.String("match_id", e.MatchID), slog.Any("error", err))
		return
	}
	if completed == nil {
		// Someone else already completed it.
		return
	}

	s.hub.Broadcast(e.SessionID, models.NewMatchEnded(models.MatchEndedData{
		MatchID:  completed.ID,
		WinnerID: *completed.WinnerID,
		VotesA:   completed.VotesA,
		VotesB:   completed.VotesB,
	}))
	s.hub.Broadcast(e.SessionID, models.NewRoundComplete(completed.RoundNumber))

	if err := s.advance(ctx, e, completed); err != nil {
		s.logger.Error("failed to advance tournament",
			slog.String("tournament_id", e.TournamentID), slog.Any("error", err))
	}
}

// completeMatch resolves and persists the winner under the match lock. It
// returns nil without error when the match was already completed, which makes
// duplicate completion events harmless.
func (s *ProgressionService) completeMatch(ctx context.Context, e events.MatchCompleted) (*models.Match, error) {
	lock := s.locker.Get(e.MatchID)
	lock.Lock()
	defer lock.Unlock()

	match, err := s.matchRepo.GetByID(ctx, e.MatchID)
	if err != nil {
		return nil, err
	}
	if match.Status == models.MatchStatusCompleted {
		return nil, nil
	}

	winnerID, err := s.ladder.ResolveWinner(match)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve winner: %w", err)
	}

	status := models.MatchStatusCompleted
	if err := s.matchRepo.Update(ctx, e.MatchID, models.MatchUpdate{
		WinnerID:              &winnerID,
		Status:                &status,
		ClearCurrentlyPlaying: true,
	}); err != nil {
		return nil, err
	}
	match.WinnerID = &winnerID
	match.Status = status
	match.CurrentlyPlayingSongID = nil
	return match, nil
}

// advance opens the ladder successor with the winner in slot A, or finishes
// the tournament when the completed match was the last one.
func (s *ProgressionService) advance(ctx context.Context, e events.MatchCompleted, completed *models.Match) error {
	matchPtrs, err := s.matchRepo.ListByTournament(ctx, e.TournamentID)
	if err != nil {
		return fmt.Errorf("failed to list matches: %w", err)
	}
	matches := make([]models.Match, 0, len(matchPtrs))
	for _, m := range matchPtrs {
		matches = append(matches, *m)
	}

	next, err := brackets.NextMatch(matches, completed)
	if err != nil {
		return err
	}
	if next == nil {
		return s.finish(ctx, e, *completed.WinnerID)
	}

	playing := models.MatchStatusPlaying
	if err := s.matchRepo.Update(ctx, next.ID, models.MatchUpdate{
		SongAID: completed.WinnerID,
		Status:  &playing,
	}); err != nil {
		return fmt.Errorf("failed to open next match: %w", err)
	}
	next.SongAID = completed.WinnerID
	next.Status = playing

	if err := s.tournamentRepo.Update(ctx, e.TournamentID, models.TournamentUpdate{
		CurrentRound: &next.RoundNumber,
	}); err != nil {
		return fmt.Errorf("failed to bump current round: %w", err)
	}

	started, err := s.matchStartedData(ctx, next)
	if err != nil {
		s.logger.Error("failed to assemble match start payload",
			slog.String("match_id", next.ID), slog.Any("error", err))
	} else {
		s.hub.Broadcast(e.SessionID, models.NewMatchStarted(started))
	}
	s.broadcastState(ctx, e.SessionID)

	s.bus.EmitRoundAdvanced(ctx, events.RoundAdvanced{
		SessionID:    e.SessionID,
		TournamentID: e.TournamentID,
		RoundNumber:  next.RoundNumber,
	})

	// A successor whose challenger slot emptied (submitted song withdrawn)
	// is a bye: resolve it right away instead of waiting for votes.
	if next.SongBID == nil {
		s.bus.EmitMatchCompleted(ctx, events.MatchCompleted{
			SessionID:    e.SessionID,
			TournamentID: e.TournamentID,
			MatchID:      next.ID,
		})
	}
	return nil
}

func (s *ProgressionService) finish(ctx context.Context, e events.MatchCompleted, winningSongID string) error {
	finished := models.TournamentStatusFinished
	if err := s.tournamentRepo.Update(ctx, e.TournamentID, models.TournamentUpdate{
		Status:        &finished,
		WinningSongID: &winningSongID,
	}); err != nil {
		return fmt.Errorf("failed to finish tournament: %w", err)
	}

	s.hub.Broadcast(e.SessionID, models.NewGameWinner(winningSongID))
	s.broadcastState(ctx, e.SessionID)

	s.bus.EmitGameFinished(ctx, events.GameFinished{
		SessionID:     e.SessionID,
		TournamentID:  e.TournamentID,
		WinningSongID: winningSongID,
	})
	return nil
}

func (s *ProgressionService) matchStartedData(ctx context.Context, match *models.Match) (models.MatchStartedData, error) {
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

func (s *ProgressionService) broadcastState(ctx context.Context, sessionID string) {
	state, err := s.state.Snapshot(ctx, sessionID)
	if err != nil {
		s.logger.Error("failed to assemble session snapshot",
			slog.String("session_id", sessionID), slog.Any("error", err))
		return
	}
	s.hub.Broadcast(sessionID, models.NewGameState(*state))
}
