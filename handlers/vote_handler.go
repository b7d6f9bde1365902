package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/songclash/songclash/services"
)

type VoteHandler struct {
	voteService services.VoteService
}

func NewVoteHandler(voteService services.VoteService) *VoteHandler {
	return &VoteHandler{voteService: voteService}
}

// CastVote godoc
// @Summary Cast or replace a vote on a match
// @Tags votes
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /sessions/{sessionID}/matches/{matchID}/votes [post]
func (h *VoteHandler) CastVote(w http.ResponseWriter, r *http.Request) {
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

	match, err := h.voteService.CastVote(r.Context(), sessionID, playerID, matchID, input.SongID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
