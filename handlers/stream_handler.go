package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/songclash/songclash/models"
	"github.com/songclash/songclash/realtime"
	"github.com/songclash/songclash/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The stream carries no secrets beyond what the REST API serves, so any
	// origin may connect.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type StreamHandler struct {
	hub            *realtime.Hub
	sessionService services.SessionService
	logger         *slog.Logger
}

func NewStreamHandler(hub *realtime.Hub, sessionService services.SessionService, logger *slog.Logger) *StreamHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamHandler{hub: hub, sessionService: sessionService, logger: logger}
}

// Serve upgrades the connection and attaches it to the session's room. The
// full state snapshot goes out first, so the client never has to reconcile
// live messages against a view it does not have yet.
func (h *StreamHandler) Serve(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	state, err := h.sessionService.Snapshot(r.Context(), sessionID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Debug("websocket upgrade failed",
			slog.String("session_id", sessionID),
			slog.Any("error", err))
		return
	}

	playerID := playerIDFromRequest(r)
	if playerID == "" {
		playerID = r.URL.Query().Get("player_id")
	}

	client := realtime.NewClient(h.hub, conn, sessionID, playerID)

	snapshot, err := json.Marshal(models.NewGameState(*state))
	if err != nil {
		h.logger.Error("failed to marshal snapshot",
			slog.String("session_id", sessionID),
			slog.Any("error", err))
		return
	}
	client.Send(snapshot)
}
