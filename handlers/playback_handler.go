package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/songclash/songclash/services"
)

type PlaybackHandler struct {
	playbackService services.PlaybackService
}

func NewPlaybackHandler(playbackService services.PlaybackService) *PlaybackHandler {
	return &PlaybackHandler{playbackService: playbackService}
}

// Start godoc
// @Summary Start playback of a match song
// @Tags playback
// @Accept json
// @Success 204
// @Router /sessions/{sessionID}/matches/{matchID}/playback/start [post]
func (h *PlaybackHandler) Start(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	matchID := chi.URLParam(r, "matchID")
	playerID, ok := requirePlayerID(w, r)
	if !ok {
		return
	}

	var input struct {
		SongID string `json:"song_id"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.SongID == "" {
		badRequestResponse(w, r, errors.New("song_id is required"))
		return
	}

	if err := h.playbackService.Start(r.Context(), sessionID, playerID, matchID, input.SongID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stop godoc
// @Summary Stop playback for a match
// @Tags playback
// @Success 204
// @Router /sessions/{sessionID}/matches/{matchID}/playback/stop [post]
func (h *PlaybackHandler) Stop(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	matchID := chi.URLParam(r, "matchID")
	playerID, ok := requirePlayerID(w, r)
	if !ok {
		return
	}

	if err := h.playbackService.Stop(r.Context(), sessionID, playerID, matchID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
