package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ztpublic/turtlesoup/internal/domain"
	"github.com/ztpublic/turtlesoup/internal/identity"
	"github.com/ztpublic/turtlesoup/internal/match"
	"github.com/ztpublic/turtlesoup/internal/realtime"
)

// recentQuestionWindow bounds how much of the ledger is fed back to the
// judge as context.
const recentQuestionWindow = 10

type postMessageRequest struct {
	ID              string `json:"id,omitempty"`
	Content         string `json:"content"`
	ReplyToID       string `json:"reply_to_id,omitempty"`
	ReplyToPreview  string `json:"reply_to_preview,omitempty"`
	ReplyToNickname string `json:"reply_to_nickname,omitempty"`
}

// PostMessage appends a chat message to the session transcript. A client
// that retries with the same message id replaces its earlier copy instead
// of duplicating it.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req postMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		Error(w, http.StatusBadRequest, "message content is required")
		return
	}

	msg := domain.ChatMessage{
		ID:              req.ID,
		Type:            domain.MessageTypeUser,
		Content:         req.Content,
		Nickname:        identity.NicknameFromContext(r.Context()),
		ReplyToID:       req.ReplyToID,
		ReplyToPreview:  req.ReplyToPreview,
		ReplyToNickname: req.ReplyToNickname,
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	snap, err := h.store.AddChatMessage(sessionID, msg)
	if err != nil {
		storeError(w, err)
		return
	}

	h.broadcastSession(snap.ID, realtime.EventChatMessage, msg)
	JSON(w, http.StatusOK, map[string]interface{}{
		"message": msg,
		"session": snap.GameSession,
	})
}

type postQuestionRequest struct {
	Question  string `json:"question"`
	MessageID string `json:"message_id,omitempty"`
}

// PostQuestion runs the full judge flow: verdict from the LLM, ledger
// append, transcript entry, and a best-effort keyword reveal pass. The
// reveal mechanic never fails the request; the question and its answer are
// recorded even when extraction, embedding, or matching break.
func (h *Handler) PostQuestion(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if h.ai == nil {
		Error(w, http.StatusServiceUnavailable, "question judging is disabled")
		return
	}

	var req postQuestionRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		Error(w, http.StatusBadRequest, "question is required")
		return
	}

	content, err := h.store.PuzzleContentForJudge(sessionID)
	if err != nil {
		storeError(w, err)
		return
	}
	if content == nil {
		Error(w, http.StatusConflict, "round not started")
		return
	}

	snap, ok := h.store.GetSession(sessionID)
	if !ok {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	recent := snap.QuestionHistory
	if len(recent) > recentQuestionWindow {
		recent = recent[len(recent)-recentQuestionWindow:]
	}

	verdict, err := h.ai.JudgeQuestion(r.Context(), content.SurfaceText, content.TruthText, recent, question)
	if err != nil {
		slog.Error("Judge request failed", "error", err, "session_id", sessionID)
		Error(w, http.StatusBadGateway, "judge unavailable")
		return
	}

	snap, err = h.store.AddQuestion(sessionID, question, verdict.Answer, time.Time{})
	if err != nil {
		storeError(w, err)
		return
	}

	msg := domain.ChatMessage{
		ID:        req.MessageID,
		Type:      domain.MessageTypeUser,
		Content:   question,
		Nickname:  identity.NicknameFromContext(r.Context()),
		Answer:    verdict.Answer,
		AnswerTip: verdict.Tip,
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if snap2, err := h.store.AddChatMessage(sessionID, msg); err == nil {
		snap = snap2
	}

	h.broadcastSession(sessionID, realtime.EventQuestionAnswered, map[string]interface{}{
		"question": question,
		"answer":   verdict.Answer,
		"tip":      verdict.Tip,
		"message":  msg,
	})

	revealed := h.runRevealPass(r.Context(), sessionID, question)
	if len(revealed) > 0 {
		if updated, ok := h.store.GetSession(sessionID); ok {
			snap = updated
			h.broadcastSession(sessionID, realtime.EventKeywordsRevealed, map[string]interface{}{
				"keyword_ids": revealed,
				"session":     updated.GameSession,
			})
		}
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"answer":               verdict.Answer,
		"tip":                  verdict.Tip,
		"revealed_keyword_ids": revealed,
		"session":              snap,
	})
}

type questionFeedbackRequest struct {
	ThumbsDown *bool `json:"thumbs_down,omitempty"`
}

// QuestionFeedback flags a ledger entry with a thumbs-down on the judge's
// verdict. Omitting thumbs_down sets it.
func (h *Handler) QuestionFeedback(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid question index")
		return
	}

	var req questionFeedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	thumbsDown := true
	if req.ThumbsDown != nil {
		thumbsDown = *req.ThumbsDown
	}

	snap, err := h.store.SetQuestionFeedback(sessionID, index, thumbsDown)
	if err != nil {
		storeError(w, err)
		return
	}
	JSON(w, http.StatusOK, snap)
}

// runRevealPass matches the question's keywords against the still-hidden
// puzzle keywords and persists any hits. Best-effort by design: every
// failure is logged and swallowed, and a pool that vanished mid-flight (a
// concurrent reset or end) simply yields no candidates.
func (h *Handler) runRevealPass(ctx context.Context, sessionID, question string) []string {
	keywords, err := h.ai.ExtractKeywords(ctx, question)
	if err != nil {
		slog.Warn("Keyword extraction failed, skipping reveal pass", "error", err, "session_id", sessionID)
		return nil
	}
	if len(keywords) == 0 {
		return nil
	}

	questionVectors, err := h.ai.EmbedTexts(ctx, keywords)
	if err != nil {
		slog.Warn("Question embedding failed, skipping reveal pass", "error", err, "session_id", sessionID)
		return nil
	}

	candidates, candidateVectors, err := h.store.UnrevealedKeywords(sessionID)
	if err != nil || len(candidates) == 0 {
		return nil
	}

	matched, err := match.RevealPass(float32(h.cfg.RevealThreshold), candidates, candidateVectors, questionVectors)
	if err != nil {
		slog.Warn("Reveal pass aborted", "error", err, "session_id", sessionID)
		return nil
	}
	if len(matched) == 0 {
		return nil
	}

	_, marked, err := h.store.MarkKeywordsRevealed(sessionID, matched)
	if err != nil {
		slog.Warn("Failed to persist revealed keywords", "error", err, "session_id", sessionID)
		return nil
	}

	if len(marked) > 0 {
		slog.Info("Keywords revealed", "session_id", sessionID, "keyword_ids", marked)
	}
	return marked
}

// computeKeywordEmbeddings embeds the puzzle's keywords at round start so
// reveal passes have candidates to match against. Best-effort: the round
// plays fine without the reveal mechanic.
func (h *Handler) computeKeywordEmbeddings(ctx context.Context, sessionID string) {
	if h.ai == nil {
		return
	}

	content, err := h.store.PuzzleContentForJudge(sessionID)
	if err != nil || content == nil || len(content.Keywords) == 0 {
		return
	}

	texts := make([]string, len(content.Keywords))
	for i, kw := range content.Keywords {
		texts[i] = kw.Text
	}

	vectors, err := h.ai.EmbedTexts(ctx, texts)
	if err != nil {
		slog.Warn("Keyword embedding failed, reveal mechanic disabled for round", "error", err, "session_id", sessionID)
		return
	}
	if err := h.store.SetKeywordEmbeddings(sessionID, vectors); err != nil {
		slog.Warn("Failed to store keyword embeddings", "error", err, "session_id", sessionID)
	}
}

// itemID builds a stable id for a puzzle fact or keyword.
func itemID(puzzleID, kind string, index int) string {
	return puzzleID + ":" + kind + ":" + strconv.Itoa(index)
}
