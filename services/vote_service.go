package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/songclash/songclash/events"
	"github.com/songclash/songclash/models"
	"github.com/songclash/songclash/repositories"
)

type VoteService interface {
	// CastVote records or replaces a player's vote on a match and refreshes
	// the match tally. The returned match carries the updated counts.
	CastVote(ctx context.Context, sessionID, playerID, matchID, songID string) (*models.Match, error)
}

type voteService struct {
	playerRepo     repositories.PlayerRepository
	tournamentRepo repositories.TournamentRepository
	matchRepo      repositories.MatchRepository
	voteRepo       repositories.VoteRepository
	locker         *MatchLocker
	bus            *events.Bus
	state          StateLoader
	hub            Broadcaster
	logger         *slog.Logger
}

func NewVoteService(
	playerRepo repositories.PlayerRepository,
	tournamentRepo repositories.TournamentRepository,
	matchRepo repositories.MatchRepository,
	voteRepo repositories.VoteRepository,
	locker *MatchLocker,
	bus *events.Bus,
	state StateLoader,
	hub Broadcaster,
	logger *slog.Logger,
) VoteService {
	if logger == nil {
		logger = slog.Default()
	}
	return &voteService{
		playerRepo:     playerRepo,
		tournamentRepo: tournamentRepo,
		matchRepo:      matchRepo,
		voteRepo:       voteRepo,
		locker:         locker,
		bus:            bus,
		state:          state,
		hub:            hub,
		logger:         logger,
	}
}

func (s *voteService) CastVote(ctx context.Context, sessionID, playerID, matchID, songID string) (*models.Match, error) {
	tournament, err := s.tournamentRepo.GetActiveBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if tournament.Status != models.TournamentStatusTournament {
		return nil, ErrWrongPhase
	}

	player, err := s.playerRepo.GetByID(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if player.SessionID != sessionID {
		return nil, ErrPlayerNotInSession
	}

	match, err := s.recordVote(ctx, tournament.ID, playerID, matchID, songID)
	if err != nil {
		return nil, err
	}

	s.broadcastState(ctx, sessionID)
	// Emitted outside the match lock: the completion handler re-acquires it.
	s.bus.EmitVoteCast(ctx, events.VoteCast{
		SessionID:    sessionID,
		TournamentID: tournament.ID,
		MatchID:      matchID,
		PlayerID:     playerID,
		SongID:       songID,
	})
	return match, nil
}

// recordVote holds the per-match lock across the upsert and the recount, so
// the tally a completion decision reads is never mid-update.
func (s *voteService) recordVote(ctx context.Context, tournamentID, playerID, matchID, songID string) (*models.Match, error) {
	lock := s.locker.Get(matchID)
	lock.Lock()
	defer lock.Unlock()

	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.TournamentID != tournamentID {
		return nil, repositories.ErrMatchNotFound
	}
	if match.Status != models.MatchStatusPlaying && match.Status != models.MatchStatusVoting {
		return nil, ErrMatchNotVotable
	}
	if !match.HasSong(songID) {
		return nil, ErrSongNotInMatch
	}

	vote := &models.Vote{
		ID:       newID(),
		MatchID:  matchID,
		PlayerID: playerID,
		SongID:   songID,
	}
	if err := s.voteRepo.Upsert(ctx, vote); err != nil {
		return nil, fmt.Errorf("failed to record vote: %w", err)
	}

	// Recount both slots from the vote table instead of incrementing, so a
	// replaced vote moves the tally instead of inflating it.
	votesA, votesB := 0, 0
	if match.SongAID != nil {
		if votesA, err = s.voteRepo.CountBySong(ctx, matchID, *match.SongAID); err != nil {
			return nil, fmt.Errorf("failed to count votes: %w", err)
		}
	}
	if match.SongBID != nil {
		if votesB, err = s.voteRepo.CountBySong(ctx, matchID, *match.SongBID); err != nil {
			return nil, fmt.Errorf("failed to count votes: %w", err)
		}
	}

	status := models.MatchStatusVoting
	update := models.MatchUpdate{VotesA: &votesA, VotesB: &votesB}
	if match.Status == models.MatchStatusPlaying {
		update.Status = &status
	}
	if err := s.matchRepo.Update(ctx, matchID, update); err != nil {
		return nil, fmt.Errorf("failed to update match tally: %w", err)
	}
	match.VotesA = votesA
	match.VotesB = votesB
	if update.Status != nil {
		match.Status = status
	}
	return match, nil
}

func (s *voteService) broadcastState(ctx context.Context, sessionID string) {
	state, err := s.state.Snapshot(ctx, sessionID)
	if err != nil {
		s.logger.Error("failed to assemble session snapshot",
			slog.String("session_id", sessionID),
			slog.Any("error", err))
		return
	}
	s.hub.Broadcast(sessionID, models.NewGameState(*state))
}
