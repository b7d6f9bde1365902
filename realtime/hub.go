package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/songclash/songclash/models"
)

// Hub fans live-update messages out to every connection of a session. Rooms
// are keyed by session id; a room disappears with its last client.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Client]bool
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms:  make(map[string]map[*Client]bool),
		logger: logger,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.sessionID]
	if !ok {
		room = make(map[*Client]bool)
		h.rooms[c.sessionID] = room
	}
	room[c] = true
	h.logger.Debug("client connected",
		slog.String("session_id", c.sessionID),
		slog.String("player_id", c.playerID),
		slog.Int("room_size", len(room)))
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.sessionID]
	if !ok {
		return
	}
	if _, connected := room[c]; !connected {
		return
	}
	delete(room, c)
	c.closeSend()
	if len(room) == 0 {
		delete(h.rooms, c.sessionID)
	}
	h.logger.Debug("client disconnected",
		slog.String("session_id", c.sessionID),
		slog.String("player_id", c.playerID),
		slog.Int("room_size", len(room)))
}

// Broadcast sends a message to every client in the session's room. The
// message is marshalled once; clients whose buffers are full are dropped
// after the full pass so one slow reader never blocks the rest.
func (h *Hub) Broadcast(sessionID string, message models.PushMessage) {
	raw, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal push message",
			slog.String("type", string(message.Type)),
			slog.Any("error", err))
		return
	}

	var stalled []*Client
	h.mu.RLock()
	for client := range h.rooms[sessionID] {
		if !client.trySend(raw) {
			stalled = append(stalled, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range stalled {
		h.logger.Warn("dropping stalled client",
			slog.String("session_id", sessionID),
			slog.String("player_id", client.playerID))
		h.unregister(client)
	}
}

// SendToPlayer delivers a message to every connection a single player holds
// in the session's room.
func (h *Hub) SendToPlayer(sessionID, playerID string, message models.PushMessage) {
	raw, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal push message",
			slog.String("type", string(message.Type)),
			slog.Any("error", err))
		return
	}

	var stalled []*Client
	h.mu.RLock()
	for client := range h.rooms[sessionID] {
		if client.playerID != playerID {
			continue
		}
		if !client.trySend(raw) {
			stalled = append(stalled, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range stalled {
		h.unregister(client)
	}
}

// RoomSize reports how many clients are connected to a session's room.
func (h *Hub) RoomSize(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}
