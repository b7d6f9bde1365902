package models

import (
	"encoding/json"
	"fmt"
)

// PushType discriminates the closed set of live-update message variants.
type PushType string

const (
	PushPlayerJoined      PushType = "player_joined"
	PushPlayerLeft        PushType = "player_left"
	PushCategoryAnnounced PushType = "category_announced"
	PushSongSubmitted     PushType = "song_submitted"
	PushMatchStarted      PushType = "match_started"
	PushMatchEnded        PushType = "match_ended"
	PushRoundComplete     PushType = "round_complete"
	PushGameWinner        PushType = "game_winner"
	PushGameState         PushType = "game_state"
	PushPlaybackStarted   PushType = "playback_started"
	PushPlaybackStopped   PushType = "playback_stopped"
)

// PushMessage is the envelope written to every live-update sink. Data holds
// the variant payload matching Type.
type PushMessage struct {
	Type PushType    `json:"type"`
	Data interface{} `json:"data"`
}

type PlayerLeftData struct {
	PlayerID string `json:"player_id"`
}

type CategoryAnnouncedData struct {
	Category string `json:"category"`
}

type MatchStartedData struct {
	MatchID         string `json:"match_id"`
	SongA           *Song  `json:"song_a"`
	SongB           *Song  `json:"song_b"`
	DurationSeconds int    `json:"duration_seconds"`
}

type MatchEndedData struct {
	MatchID  string `json:"match_id"`
	WinnerID string `json:"winner_id"`
	VotesA   int    `json:"votes_a"`
	VotesB   int    `json:"votes_b"`
}

type RoundCompleteData struct {
	RoundNumber int `json:"round_number"`
}

type GameWinnerData struct {
	WinningSongID string `json:"winning_song_id"`
}

// GameState is the full aggregate snapshot of a session. Every phase
// transition rebroadcasts it so clients can rebuild their view from the
// latest snapshot alone, regardless of missed messages.
type GameState struct {
	Session    Session     `json:"session"`
	Tournament *Tournament `json:"tournament"`
	Players    []Player    `json:"players"`
	Songs      []Song      `json:"songs"`
	Matches    []Match     `json:"matches"`
}

type PlaybackStartedData struct {
	MatchID    string `json:"match_id"`
	SongID     string `json:"song_id"`
	SongName   string `json:"song_name"`
	ArtistName string `json:"artist_name"`
}

type PlaybackStoppedData struct {
	MatchID string `json:"match_id"`
}

func NewPlayerJoined(p Player) PushMessage {
	return PushMessage{Type: PushPlayerJoined, Data: p}
}

func NewPlayerLeft(playerID string) PushMessage {
	return PushMessage{Type: PushPlayerLeft, Data: PlayerLeftData{PlayerID: playerID}}
}

func NewCategoryAnnounced(category string) PushMessage {
	return PushMessage{Type: PushCategoryAnnounced, Data: CategoryAnnouncedData{Category: category}}
}

func NewSongSubmitted(s Song) PushMessage {
	return PushMessage{Type: PushSongSubmitted, Data: s}
}

func NewMatchStarted(d MatchStartedData) PushMessage {
	return PushMessage{Type: PushMatchStarted, Data: d}
}

func NewMatchEnded(d MatchEndedData) PushMessage {
	return PushMessage{Type: PushMatchEnded, Data: d}
}

func NewRoundComplete(roundNumber int) PushMessage {
	return PushMessage{Type: PushRoundComplete, Data: RoundCompleteData{RoundNumber: roundNumber}}
}

func NewGameWinner(winningSongID string) PushMessage {
	return PushMessage{Type: PushGameWinner, Data: GameWinnerData{WinningSongID: winningSongID}}
}

func NewGameState(state GameState) PushMessage {
	return PushMessage{Type: PushGameState, Data: state}
}

func NewPlaybackStarted(d PlaybackStartedData) PushMessage {
	return PushMessage{Type: PushPlaybackStarted, Data: d}
}

func NewPlaybackStopped(matchID string) PushMessage {
	return PushMessage{Type: PushPlaybackStopped, Data: PlaybackStoppedData{MatchID: matchID}}
}

// DecodePushMessage parses an envelope and decodes Data into the payload
// type matching the discriminant, rejecting unknown kinds.
func DecodePushMessage(raw []byte) (PushMessage, error) {
	var envelope struct {
		Type PushType        `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return PushMessage{}, fmt.Errorf("failed to decode push envelope: %w", err)
	}

	msg := PushMessage{Type: envelope.Type}
	var dst interface{}
	switch envelope.Type {
	case PushPlayerJoined:
		dst = &Player{}
	case PushPlayerLeft:
		dst = &PlayerLeftData{}
	case PushCategoryAnnounced:
		dst = &CategoryAnnouncedData{}
	case PushSongSubmitted:
		dst = &Song{}
	case PushMatchStarted:
		dst = &MatchStartedData{}
	case PushMatchEnded:
		dst = &MatchEndedData{}
	case PushRoundComplete:
		dst = &RoundCompleteData{}
	case PushGameWinner:
		dst = &GameWinnerData{}
	case PushGameState:
		dst = &GameState{}
	case PushPlaybackStarted:
		dst = &PlaybackStartedData{}
	case PushPlaybackStopped:
		dst = &PlaybackStoppedData{}
	default:
		return PushMessage{}, fmt.Errorf("unknown push message type %q", envelope.Type)
	}

	if err := json.Unmarshal(envelope.Data, dst); err != nil {
		return PushMessage{}, fmt.Errorf("failed to decode %s payload: %w", envelope.Type, err)
	}
	msg.Data = dst
	return msg, nil
}
