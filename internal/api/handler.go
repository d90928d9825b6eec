// Package api provides HTTP handlers for the game API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ztpublic/turtlesoup/internal/catalog"
	"github.com/ztpublic/turtlesoup/internal/config"
	"github.com/ztpublic/turtlesoup/internal/game"
	"github.com/ztpublic/turtlesoup/internal/llm"
	"github.com/ztpublic/turtlesoup/internal/realtime"
)

// Handler serves the session and puzzle endpoints. The LLM client is nil
// when AI features are disabled; judging endpoints then answer 503.
type Handler struct {
	store *game.Store
	cat   catalog.Repository
	hub   *realtime.Hub
	ai    llm.Client
	cfg   *config.Config
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(store *game.Store, cat catalog.Repository, hub *realtime.Hub, ai llm.Client, cfg *config.Config) *Handler {
	return &Handler{
		store: store,
		cat:   cat,
		hub:   hub,
		ai:    ai,
		cfg:   cfg,
	}
}

// RegisterRoutes registers the game API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/config", h.GetConfig)
		r.Get("/puzzles", h.ListPuzzles)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.CreateSession)
			r.Get("/", h.ListSessions)

			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", h.GetSession)
				r.Patch("/", h.UpdateSession)
				r.Delete("/", h.DeleteSession)
				r.Post("/join", h.JoinSession)
				r.Post("/leave", h.LeaveSession)
				r.Post("/start", h.StartSession)
				r.Post("/end", h.EndSession)
				r.Post("/reset", h.ResetSession)
				r.Post("/messages", h.PostMessage)
				r.Post("/questions", h.PostQuestion)
				r.Post("/questions/{index}/feedback", h.QuestionFeedback)
			})
		})
	})
}

// GetConfig returns the server configuration for the frontend.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"ai_enabled":      h.ai != nil,
		"default_session": game.DefaultSessionID,
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// storeError maps engine errors onto HTTP statuses.
func storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrSessionNotFound):
		Error(w, http.StatusNotFound, "session not found")
	case errors.Is(err, game.ErrQuestionNotFound):
		Error(w, http.StatusNotFound, "question not found")
	case errors.Is(err, game.ErrSessionExists):
		Error(w, http.StatusConflict, "session already exists")
	case game.IsInvalidTransition(err):
		Error(w, http.StatusConflict, err.Error())
	default:
		slog.Error("Store operation failed", "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON parses a request body, tolerating an empty body for endpoints
// where every field is optional.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

// broadcastSession fans the session's lobby view out to lobby and room
// subscribers. Uses a detached context so a canceled request cannot strand
// observers with stale state.
func (h *Handler) broadcastSession(sessionID string, eventType string, payload any) {
	if h.hub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	event := realtime.Event{Type: eventType, SessionID: sessionID, Payload: payload}
	h.hub.Broadcast(ctx, sessionID, event)
	h.hub.BroadcastLobby(ctx, event)
}
