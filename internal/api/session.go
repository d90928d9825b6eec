package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ztpublic/turtlesoup/internal/catalog"
	"github.com/ztpublic/turtlesoup/internal/domain"
	"github.com/ztpublic/turtlesoup/internal/game"
	"github.com/ztpublic/turtlesoup/internal/identity"
	"github.com/ztpublic/turtlesoup/internal/realtime"
)

type createSessionRequest struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title,omitempty"`
}

// CreateSession registers a new lobby session hosted by the caller.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	snap, err := h.store.CreateSession(game.CreateParams{
		ID:           req.ID,
		Title:        req.Title,
		HostNickname: identity.NicknameFromContext(r.Context()),
	})
	if err != nil {
		storeError(w, err)
		return
	}

	slog.Info("Session created", "session_id", snap.ID, "title", snap.Title)
	h.broadcastSession(snap.ID, realtime.EventSessionUpdated, snap.GameSession)
	JSON(w, http.StatusCreated, snap)
}

// ListSessions returns lobby metadata for every live session.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"sessions": h.store.ListSessions(),
	})
}

// GetSession returns the full participant snapshot.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	snap, ok := h.store.GetSession(id)
	if !ok {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	JSON(w, http.StatusOK, snap)
}

type updateSessionRequest struct {
	Title        string `json:"title,omitempty"`
	HostNickname string `json:"host_nickname,omitempty"`
}

// UpdateSession edits lobby metadata. Blank fields are left untouched.
func (h *Handler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	var req updateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	snap, err := h.store.UpdateSessionMeta(id, req.Title, req.HostNickname)
	if err != nil {
		storeError(w, err)
		return
	}

	h.broadcastSession(snap.ID, realtime.EventSessionUpdated, snap.GameSession)
	JSON(w, http.StatusOK, snap)
}

// DeleteSession removes a session outright.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if !h.store.DeleteSession(id) {
		Error(w, http.StatusNotFound, "session not found")
		return
	}

	slog.Info("Session deleted", "session_id", id)
	h.broadcastSession(id, realtime.EventSessionEnded, nil)
	JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// JoinSession adds the caller to a session's player count and returns the
// joined snapshot.
func (h *Handler) JoinSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	snap, err := h.store.JoinSession(id)
	if err != nil {
		storeError(w, err)
		return
	}

	h.broadcastSession(snap.ID, realtime.EventSessionUpdated, snap.GameSession)
	JSON(w, http.StatusOK, snap)
}

// LeaveSession removes the caller from a session's player count. Leaving an
// already-evicted session succeeds with gone=true so flaky clients can
// retry without error noise.
func (h *Handler) LeaveSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	snap, ok := h.store.LeaveSession(id)
	if !ok {
		JSON(w, http.StatusOK, map[string]interface{}{"gone": true})
		return
	}

	h.broadcastSession(snap.ID, realtime.EventSessionUpdated, snap.GameSession)
	JSON(w, http.StatusOK, snap)
}

type startSessionRequest struct {
	PuzzleID string `json:"puzzle_id,omitempty"`
}

// StartSession loads puzzle content from the catalog (a named puzzle or a
// random pick) and starts the round. Keyword embeddings are computed
// best-effort; a failure there never blocks the start.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	var req startSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var (
		puzzle *catalog.Puzzle
		err    error
	)
	if req.PuzzleID != "" {
		puzzle, err = h.cat.Get(r.Context(), req.PuzzleID)
	} else {
		puzzle, err = h.cat.Random(r.Context())
	}
	if err != nil {
		if errors.Is(err, catalog.ErrPuzzleNotFound) {
			Error(w, http.StatusNotFound, "puzzle not found")
			return
		}
		slog.Error("Failed to load puzzle", "error", err, "session_id", id)
		Error(w, http.StatusInternalServerError, "failed to load puzzle")
		return
	}

	snap, err := h.store.StartSession(id, puzzleContent(puzzle))
	if err != nil {
		storeError(w, err)
		return
	}

	slog.Info("Session started", "session_id", snap.ID, "puzzle_id", puzzle.ID)
	h.computeKeywordEmbeddings(r.Context(), snap.ID)
	h.broadcastSession(snap.ID, realtime.EventSessionUpdated, snap.GameSession)
	JSON(w, http.StatusOK, snap)
}

type endSessionRequest struct {
	RevealContent *bool `json:"reveal_content,omitempty"`
	PreserveChat  *bool `json:"preserve_chat,omitempty"`
}

// EndSession ends the round, revealing the puzzle by default.
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	var req endSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	opts := game.DefaultEndOptions()
	if req.RevealContent != nil {
		opts.RevealContent = *req.RevealContent
	}
	if req.PreserveChat != nil {
		opts.PreserveChat = *req.PreserveChat
	}

	snap, err := h.store.EndSession(id, opts)
	if err != nil {
		storeError(w, err)
		return
	}

	slog.Info("Session ended", "session_id", snap.ID)
	h.broadcastSession(snap.ID, realtime.EventSessionEnded, snap.GameSession)
	JSON(w, http.StatusOK, snap)
}

type resetSessionRequest struct {
	PreserveChat          *bool `json:"preserve_chat,omitempty"`
	RevealExistingContent *bool `json:"reveal_existing_content,omitempty"`
}

// ResetSession returns the session to the not-started state. The response
// includes the outgoing puzzle with everything revealed when reveal is
// requested, so clients can show what the answer was.
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	var req resetSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	opts := game.DefaultResetOptions()
	if req.PreserveChat != nil {
		opts.PreserveChat = *req.PreserveChat
	}
	if req.RevealExistingContent != nil {
		opts.RevealExistingContent = *req.RevealExistingContent
	}

	snap, revealed, err := h.store.ResetGameState(id, opts)
	if err != nil {
		storeError(w, err)
		return
	}

	slog.Info("Session reset", "session_id", snap.ID)
	h.broadcastSession(snap.ID, realtime.EventSessionUpdated, snap.GameSession)
	JSON(w, http.StatusOK, map[string]interface{}{
		"session":         snap,
		"revealed_puzzle": revealed.Summary(),
	})
}

// ListPuzzles returns catalog summaries. Truth text stays server-side.
func (h *Handler) ListPuzzles(w http.ResponseWriter, r *http.Request) {
	puzzles, err := h.cat.List(r.Context())
	if err != nil {
		slog.Error("Failed to list puzzles", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list puzzles")
		return
	}

	out := make([]map[string]interface{}, 0, len(puzzles))
	for _, p := range puzzles {
		out = append(out, map[string]interface{}{
			"id":           p.ID,
			"title":        p.Title,
			"surface_text": p.SurfaceText,
			"fact_count":   len(p.Facts),
		})
	}
	JSON(w, http.StatusOK, map[string]interface{}{"puzzles": out})
}

// puzzleContent converts a catalog entry into session puzzle content with
// stable per-item ids.
func puzzleContent(p *catalog.Puzzle) *domain.PuzzleContent {
	content := &domain.PuzzleContent{
		SurfaceText: p.SurfaceText,
		TruthText:   p.TruthText,
	}
	for i, text := range p.Facts {
		content.Facts = append(content.Facts, domain.PuzzleItem{
			ID:   itemID(p.ID, "fact", i),
			Text: text,
		})
	}
	for i, text := range p.Keywords {
		content.Keywords = append(content.Keywords, domain.PuzzleItem{
			ID:   itemID(p.ID, "keyword", i),
			Text: text,
		})
	}
	return content
}
