package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/songclash/songclash/middleware"
	"github.com/songclash/songclash/services"
)

type SessionHandler struct {
	sessionService services.SessionService
}

func NewSessionHandler(sessionService services.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// Create godoc
// @Summary Create a game session
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Success 201 {object} map[string]interface{}
// @Router /sessions [post]
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	session, err := h.sessionService.Create(r.Context(), userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"session": session}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Get godoc
// @Summary Fetch a session
// @Tags sessions
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /sessions/{sessionID} [get]
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.sessionService.Get(r.Context(), sessionID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"session": session}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// State godoc
// @Summary Fetch the full aggregate state of a session
// @Tags sessions
// @Produce json
// @Success 200 {object} models.GameState
// @Router /sessions/{sessionID}/state [get]
func (h *SessionHandler) State(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	state, err := h.sessionService.Snapshot(r.Context(), sessionID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, state, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Join godoc
// @Summary Join a session as a player
// @Tags sessions
// @Accept json
// @Produce json
// @Success 201 {object} map[string]interface{}
// @Router /sessions/{sessionID}/players [post]
func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var input struct {
		Name string `json:"name"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	// Anonymous joins get a plain seat; a valid token matching the session
	// owner gets the owner seat.
	identityID, _ := middleware.UserIDFromContext(r.Context())

	player, err := h.sessionService.Join(r.Context(), sessionID, input.Name, identityID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"player": player}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Kick godoc
// @Summary Remove a player from a session
// @Tags sessions
// @Security BearerAuth
// @Success 204
// @Router /sessions/{sessionID}/players/{playerID} [delete]
func (h *SessionHandler) Kick(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	playerID := chi.URLParam(r, "playerID")

	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	if err := h.sessionService.Kick(r.Context(), sessionID, playerID, userID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Archive godoc
// @Summary Archive a session
// @Tags sessions
// @Security BearerAuth
// @Success 204
// @Router /sessions/{sessionID}/archive [post]
func (h *SessionHandler) Archive(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	if err := h.sessionService.Archive(r.Context(), sessionID, userID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete godoc
// @Summary Delete a session and everything in it
// @Tags sessions
// @Security BearerAuth
// @Success 204
// @Router /sessions/{sessionID} [delete]
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	if err := h.sessionService.Delete(r.Context(), sessionID, userID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func requirePlayerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	playerID := playerIDFromRequest(r)
	if playerID == "" {
		badRequestResponse(w, r, errors.New("X-Player-ID header is required"))
		return "", false
	}
	return playerID, true
}
