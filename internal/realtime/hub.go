// Package realtime provides WebSocket fan-out of engine snapshots: a lobby
// room for session metadata and one room per game session.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// LobbyRoom is the room every connection implicitly joins. Lobby events
// carry session metadata and puzzle summaries, never raw puzzle content.
const LobbyRoom = "lobby"

const writeTimeout = 5 * time.Second

// Event is the JSON envelope broadcast to clients.
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// Event types fanned out by the transport layer.
const (
	EventSessionUpdated   = "session_updated"
	EventSessionEnded     = "session_ended"
	EventSessionExpired   = "session_expired"
	EventChatMessage      = "chat_message"
	EventQuestionAnswered = "question_answered"
	EventKeywordsRevealed = "keywords_revealed"
)

// Hub tracks active WebSocket connections per room.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*websocket.Conn]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*websocket.Conn]struct{}),
	}
}

// Register adds a connection to a room.
func (h *Hub) Register(room string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.rooms[room]; !exists {
		h.rooms[room] = make(map[*websocket.Conn]struct{})
	}
	h.rooms[room][conn] = struct{}{}
	slog.Debug("Realtime connection joined room", "room", room)
}

// Unregister removes a connection from a room.
func (h *Hub) Unregister(room string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.rooms[room]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, room)
		}
	}
}

// UnregisterAll removes a connection from every room it joined.
func (h *Hub) UnregisterAll(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for room, conns := range h.rooms {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, room)
		}
	}
}

// RoomSize returns the number of connections in a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Broadcast sends an event to every connection in a room. Write failures
// are logged and skipped; the read loop owns closing dead connections.
func (h *Hub) Broadcast(ctx context.Context, room string, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to encode realtime event", "type", event.Type, "error", err)
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.rooms[room]))
	for conn := range h.rooms[room] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		if err := conn.Write(writeCtx, websocket.MessageText, payload); err != nil {
			slog.Debug("Realtime write failed", "room", room, "type", event.Type, "error", err)
		}
		cancel()
	}
}

// BroadcastLobby sends an event to the lobby room.
func (h *Hub) BroadcastLobby(ctx context.Context, event Event) {
	h.Broadcast(ctx, LobbyRoom, event)
}
