package ws

import (
	"encoding/json"
	"errors"
	"sync"

	"chat-core/internal/models"
)

var errSessionGone = errors.New("session not attached")

// Hub tracks live websocket connections by session id and implements the
// delivery Notifier used by the message services.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Connection
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{sessions: make(map[string]*Connection)}
}

// Add registers a connection under its session id.
func (h *Hub) Add(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[conn.SessionID] = conn
}

// Remove detaches a session and returns the connection, if it was tracked.
func (h *Hub) Remove(sessionID string) *Connection {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn := h.sessions[sessionID]
	delete(h.sessions, sessionID)
	return conn
}

// Notify pushes a delivery notification to the session, if still attached.
func (h *Hub) Notify(sessionID string, n models.Notification) error {
	h.mu.RLock()
	conn := h.sessions[sessionID]
	h.mu.RUnlock()

	if conn == nil {
		return errSessionGone
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return conn.Send(payload)
}

type deletionEvent struct {
	Type      string `json:"type"`
	MessageID int64  `json:"message_id"`
}

// BroadcastDeletion notifies every attached session that a message was
// deleted for all viewers. Write failures drop the offending session only.
func (h *Hub) BroadcastDeletion(messageID int64) {
	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.sessions))
	for _, conn := range h.sessions {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	payload, _ := json.Marshal(deletionEvent{Type: "delete_for_all", MessageID: messageID})
	for _, conn := range conns {
		if err := conn.Send(payload); err != nil {
			h.Remove(conn.SessionID)
		}
	}
}

// CloseAll terminates every tracked connection; used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	conns := make([]*Connection, 0, len(h.sessions))
	for _, conn := range h.sessions {
		conns = append(conns, conn)
	}
	h.sessions = make(map[string]*Connection)
	h.mu.Unlock()

	for _, conn := range conns {
		conn.Close(1001, "server shutdown")
	}
}
