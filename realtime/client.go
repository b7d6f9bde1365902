package realtime

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 25 * time.Second
	maxMessageSize = 512
	sendBufferSize = 256
)

// GuestPlayerID marks a connection opened without player identity, such as a
// spectator tab watching the bracket.
const GuestPlayerID = "guest"

// Client is one websocket connection inside a session room.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
	playerID  string

	mu     sync.Mutex
	closed bool
}

// NewClient registers a connection with the hub and starts its pumps. The
// returned client delivers everything broadcast to the session from this
// point on; callers push the initial snapshot before any live traffic races
// it by sending it first.
func NewClient(hub *Hub, conn *websocket.Conn, sessionID, playerID string) *Client {
	if playerID == "" {
		playerID = GuestPlayerID
	}
	c := &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		sessionID: sessionID,
		playerID:  playerID,
	}
	hub.register(c)
	go c.writePump()
	go c.readPump()
	return c
}

// Send queues a message for this client only. It reports false when the
// client is gone or its buffer is full.
func (c *Client) Send(raw []byte) bool {
	return c.trySend(raw)
}

func (c *Client) trySend(raw []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- raw:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		close(c.send)
		c.closed = true
	}
}

// readPump discards inbound frames; clients talk to the server over HTTP.
// Its job is the pong deadline that detects dead peers.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("websocket read error",
					slog.String("session_id", c.sessionID),
					slog.Any("error", err))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case raw, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
