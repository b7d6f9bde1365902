package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/songclash/songclash/services"
)

type TournamentHandler struct {
	tournamentService services.TournamentService
}

func NewTournamentHandler(tournamentService services.TournamentService) *TournamentHandler {
	return &TournamentHandler{tournamentService: tournamentService}
}

// NewRound godoc
// @Summary Open the next category round
// @Tags tournaments
// @Produce json
// @Success 201 {object} map[string]interface{}
// @Router /sessions/{sessionID}/tournaments [post]
func (h *TournamentHandler) NewRound(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	playerID, ok := requirePlayerID(w, r)
	if !ok {
		return
	}

	tournament, err := h.tournamentService.NewRound(r.Context(), sessionID, playerID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SubmitCategory godoc
// @Summary Announce the round's category
// @Tags tournaments
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /sessions/{sessionID}/tournaments/category [post]
func (h *TournamentHandler) SubmitCategory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	playerID, ok := requirePlayerID(w, r)
	if !ok {
		return
	}

	var input struct {
		Category string `json:"category"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournamentService.SubmitCategory(r.Context(), sessionID, playerID, input.Category)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SubmitSong godoc
// @Summary Submit a song for the current round
// @Tags tournaments
// @Accept json
// @Produce json
// @Success 201 {object} map[string]interface{}
// @Router /sessions/{sessionID}/tournaments/songs [post]
func (h *TournamentHandler) SubmitSong(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	playerID, ok := requirePlayerID(w, r)
	if !ok {
		return
	}

	var input services.SongInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	song, err := h.tournamentService.SubmitSong(r.Context(), sessionID, playerID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"song": song}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Start godoc
// @Summary Freeze submissions and start the bracket
// @Tags tournaments
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /sessions/{sessionID}/tournaments/start [post]
func (h *TournamentHandler) Start(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	playerID, ok := requirePlayerID(w, r)
	if !ok {
		return
	}

	tournament, err := h.tournamentService.Start(r.Context(), sessionID, playerID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
