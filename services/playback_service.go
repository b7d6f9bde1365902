package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/songclash/songclash/models"
	"github.com/songclash/songclash/repositories"
)

// PlaybackController remote-controls a player's Spotify device. The spotify
// package satisfies it; a nil controller makes playback broadcast-only.
type PlaybackController interface {
	Play(ctx context.Context, deviceID, spotifyID string, positionMs int) error
	Pause(ctx context.Context, deviceID string) error
}

type PlaybackService interface {
	// Start marks a match song as playing, nudges the caller's Spotify
	// device and tells everyone else to start their own playback.
	Start(ctx context.Context, sessionID, playerID, matchID, songID string) error
	// Stop clears the playing marker and broadcasts the stop.
	Stop(ctx context.Context, sessionID, playerID, matchID string) error
}

type playbackService struct {
	playerRepo     repositories.PlayerRepository
	tournamentRepo repositories.TournamentRepository
	songRepo       repositories.SongRepository
	matchRepo      repositories.MatchRepository
	controller     PlaybackController
	hub            Broadcaster
	logger         *slog.Logger
}

func NewPlaybackService(
	playerRepo repositories.PlayerRepository,
	tournamentRepo repositories.TournamentRepository,
	songRepo repositories.SongRepository,
	matchRepo repositories.MatchRepository,
	controller PlaybackController,
	hub Broadcaster,
	logger *slog.Logger,
) PlaybackService {
	if logger == nil {
		logger = slog.Default()
	}
	return &playbackService{
		playerRepo:     playerRepo,
		tournamentRepo: tournamentRepo,
		songRepo:       songRepo,
		matchRepo:      matchRepo,
		controller:     controller,
		hub:            hub,
		logger:         logger,
	}
}

func (s *playbackService) Start(ctx context.Context, sessionID, playerID, matchID, songID string) error {
	player, match, err := s.requireVotableMatch(ctx, sessionID, playerID, matchID)
	if err != nil {
		return err
	}
	if !match.HasSong(songID) {
		return ErrSongNotInMatch
	}

	song, err := s.songRepo.GetByID(ctx, songID)
	if err != nil {
		return err
	}

	if err := s.matchRepo.Update(ctx, matchID, models.MatchUpdate{
		CurrentlyPlayingSongID: &songID,
	}); err != nil {
		return fmt.Errorf("failed to mark playing song: %w", err)
	}

	if s.controller != nil && player.SpotifyDeviceID != nil {
		if playErr := s.controller.Play(ctx, *player.SpotifyDeviceID, song.SpotifyID, song.StartTime*1000); playErr != nil {
			// Playback is best effort, the broadcast still goes out.
			s.logger.Warn("failed to start spotify playback",
				slog.String("player_id", playerID),
				slog.Any("error", playErr))
		}
	}

	s.hub.Broadcast(sessionID, models.NewPlaybackStarted(models.PlaybackStartedData{
		MatchID:    matchID,
		SongID:     song.ID,
		SongName:   song.Name,
		ArtistName: song.ArtistName,
	}))
	return nil
}

func (s *playbackService) Stop(ctx context.Context, sessionID, playerID, matchID string) error {
	player, _, err := s.requireVotableMatch(ctx, sessionID, playerID, matchID)
	if err != nil {
		return err
	}

	if err := s.matchRepo.Update(ctx, matchID, models.MatchUpdate{
		ClearCurrentlyPlaying: true,
	}); err != nil {
		return fmt.Errorf("failed to clear playing song: %w", err)
	}

	if s.controller != nil && player.SpotifyDeviceID != nil {
		if pauseErr := s.controller.Pause(ctx, *player.SpotifyDeviceID); pauseErr != nil {
			s.logger.Warn("failed to pause spotify playback",
				slog.String("player_id", playerID),
				slog.Any("error", pauseErr))
		}
	}

	s.hub.Broadcast(sessionID, models.NewPlaybackStopped(matchID))
	return nil
}

func (s *playbackService) requireVotableMatch(ctx context.Context, sessionID, playerID, matchID string) (*models.Player, *models.Match, error) {
	tournament, err := s.tournamentRepo.GetActiveBySession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if tournament.Status != models.TournamentStatusTournament {
		return nil, nil, ErrWrongPhase
	}

	player, err := s.playerRepo.GetByID(ctx, playerID)
	if err != nil {
		return nil, nil, err
	}
	if player.SessionID != sessionID {
		return nil, nil, ErrPlayerNotInSession
	}

	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return nil, nil, err
	}
	if match.TournamentID != tournament.ID {
		return nil, nil, repositories.ErrMatchNotFound
	}
	if match.Status != models.MatchStatusPlaying && match.Status != models.MatchStatusVoting {
		return nil, nil, ErrMatchNotVotable
	}
	return player, match, nil
}
