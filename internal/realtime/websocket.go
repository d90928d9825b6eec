package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"

	"github.com/ztpublic/turtlesoup/internal/identity"
)

// clientMessage is the envelope clients send: room subscription control.
// Game mutations go through the HTTP API; the socket is broadcast-only
// apart from subscribe/unsubscribe.
type clientMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
}

// Handler upgrades connections and manages room membership for their
// lifetime.
type Handler struct {
	hub           *Hub
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a WebSocket handler bound to a hub.
func NewHandler(hub *Hub, allowedOrigin string, isDev bool) *Handler {
	return &Handler{
		hub:           hub,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	playerID := identity.PlayerIDFromContext(r.Context())
	slog.Info("WebSocket connection request", "player_id", playerID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "player_id", playerID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "connection ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "player_id", playerID)
		}
	}()

	h.hub.Register(LobbyRoom, ws)
	defer h.hub.UnregisterAll(ws)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.readLoop(ctx, ws, playerID)
}

// readLoop processes subscribe/unsubscribe messages until the client goes
// away.
func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, playerID string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway ||
				errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return
			}
			slog.Debug("WebSocket read error", "error", err, "player_id", playerID)
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Debug("Malformed realtime message", "error", err, "player_id", playerID)
			continue
		}

		switch msg.Type {
		case "subscribe":
			if msg.SessionID != "" {
				h.hub.Register(msg.SessionID, ws)
			}
		case "unsubscribe":
			if msg.SessionID != "" {
				h.hub.Unregister(msg.SessionID, ws)
			}
		default:
			slog.Debug("Unknown realtime message type", "type", msg.Type, "player_id", playerID)
		}
	}
}

// checkOrigin validates the Origin header against the configured frontend.
func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if h.allowedOrigin == "" {
		return true
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	allowed, err := url.Parse(h.allowedOrigin)
	if err != nil {
		return false
	}
	return strings.EqualFold(parsed.Host, allowed.Host)
}
