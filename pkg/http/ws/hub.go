package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Hub manages WebSocket connections and broadcasts session snapshots to
// every client watching a session.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]*Connection // client id -> connection
	sessions    map[string][]string    // session id -> client ids
	logger      zerolog.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		sessions:    make(map[string][]string),
		logger:      logger,
	}
}

// Register adds a connection for a client and associates it with a session.
func (h *Hub) Register(sessionID, clientID string, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, exists := h.connections[clientID]; exists {
		old.Close()
	}
	h.connections[clientID] = conn

	for _, id := range h.sessions[sessionID] {
		if id == clientID {
			return
		}
	}
	h.sessions[sessionID] = append(h.sessions[sessionID], clientID)
	h.logger.Info().Str("client_id", clientID).Str("session_id", sessionID).Msg("connection registered")
}

// Unregister removes a connection and detaches it from its sessions.
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn, exists := h.connections[clientID]; exists {
		conn.Close()
		delete(h.connections, clientID)
	}
	for sessionID, ids := range h.sessions {
		for i, id := range ids {
			if id == clientID {
				h.sessions[sessionID] = append(ids[:i], ids[i+1:]...)
				break
			}
		}
		if len(h.sessions[sessionID]) == 0 {
			delete(h.sessions, sessionID)
		}
	}
}

// BroadcastToSession sends a message to every client watching a session.
func (h *Hub) BroadcastToSession(sessionID string, msg Message) error {
	h.mu.RLock()
	ids := append([]string(nil), h.sessions[sessionID]...)
	h.mu.RUnlock()

	var firstErr error
	for _, id := range ids {
		if err := h.Send(id, msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Send delivers a message to one client.
func (h *Hub) Send(clientID string, msg Message) error {
	h.mu.RLock()
	conn, exists := h.connections[clientID]
	h.mu.RUnlock()

	if !exists {
		return ErrConnectionNotFound
	}
	return conn.Send(msg)
}

// Connection represents a WebSocket connection with a send queue.
type Connection struct {
	conn   *websocket.Conn
	sendCh chan Message
	mu     sync.Mutex
	closed bool
	logger zerolog.Logger
}

// NewConnection wraps a WebSocket connection.
func NewConnection(conn *websocket.Conn, logger zerolog.Logger) *Connection {
	return &Connection{
		conn:   conn,
		sendCh: make(chan Message, 64),
		logger: logger,
	}
}

// Send queues a message for delivery.
func (c *Connection) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}
	select {
	case c.sendCh <- msg:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close shuts down the connection.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.sendCh)
	c.conn.Close()
}

// WritePump drains the send queue onto the wire.
func (c *Connection) WritePump() {
	defer c.conn.Close()

	for msg := range c.sendCh {
		if err := c.conn.WriteJSON(msg); err != nil {
			c.logger.Warn().Err(err).Msg("write error")
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// ReadPump receives messages and calls the handler until the peer goes away.
func (c *Connection) ReadPump(handler func(Message) error) {
	defer c.conn.Close()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("read error")
			}
			break
		}
		// Any inbound message, including an application-level ping,
		// counts as liveness.
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		if err := handler(msg); err != nil {
			c.logger.Warn().Err(err).Msg("message handler error")
		}
	}
}

var (
	ErrConnectionNotFound = &Error{Code: "connection_not_found", Message: "Client connection not found"}
	ErrConnectionClosed   = &Error{Code: "connection_closed", Message: "Connection is closed"}
	ErrSendQueueFull      = &Error{Code: "send_queue_full", Message: "Send queue is full"}
)

type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
