package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ztpublic/turtlesoup/internal/catalog"
	"github.com/ztpublic/turtlesoup/internal/config"
	"github.com/ztpublic/turtlesoup/internal/domain"
	"github.com/ztpublic/turtlesoup/internal/game"
	"github.com/ztpublic/turtlesoup/internal/llm"
)

type fakeCatalog struct {
	puzzles map[string]*catalog.Puzzle
}

func (f *fakeCatalog) Get(_ context.Context, id string) (*catalog.Puzzle, error) {
	p, ok := f.puzzles[id]
	if !ok {
		return nil, catalog.ErrPuzzleNotFound
	}
	return p, nil
}

func (f *fakeCatalog) Random(ctx context.Context) (*catalog.Puzzle, error) {
	for id := range f.puzzles {
		return f.Get(ctx, id)
	}
	return nil, catalog.ErrPuzzleNotFound
}

func (f *fakeCatalog) List(_ context.Context) ([]*catalog.Puzzle, error) {
	out := make([]*catalog.Puzzle, 0, len(f.puzzles))
	for _, p := range f.puzzles {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeCatalog) Put(_ context.Context, p *catalog.Puzzle) error {
	f.puzzles[p.ID] = p
	return nil
}

func (f *fakeCatalog) Count(_ context.Context) (int64, error) { return int64(len(f.puzzles)), nil }
func (f *fakeCatalog) Ping(_ context.Context) error           { return nil }
func (f *fakeCatalog) Close() error                           { return nil }

type fakeLLM struct {
	judgment   llm.Judgment
	judgeErr   error
	keywords   []string
	embeddings map[string][]float32
}

func (f *fakeLLM) JudgeQuestion(_ context.Context, _, _ string, _ []domain.QuestionEntry, _ string) (llm.Judgment, error) {
	if f.judgeErr != nil {
		return llm.Judgment{}, f.judgeErr
	}
	return f.judgment, nil
}

func (f *fakeLLM) ExtractKeywords(_ context.Context, _ string) ([]string, error) {
	return f.keywords, nil
}

func (f *fakeLLM) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := f.embeddings[text]; ok {
			out[i] = v
		} else {
			out[i] = []float32{0, 0, 1}
		}
	}
	return out, nil
}

func (f *fakeLLM) Close() error { return nil }

func testPuzzle() *catalog.Puzzle {
	return &catalog.Puzzle{
		ID:          "p1",
		Title:       "Turtle Soup",
		SurfaceText: "A man ordered turtle soup and later took his own life.",
		TruthText:   "Years earlier he unknowingly ate his companion.",
		Facts:       []string{"He had been shipwrecked."},
		Keywords:    []string{"shipwreck", "soup"},
	}
}

func newTestRouter(t *testing.T, ai llm.Client) (*chi.Mux, *game.Store) {
	t.Helper()

	store := game.NewStore()
	cat := &fakeCatalog{puzzles: map[string]*catalog.Puzzle{"p1": testPuzzle()}}
	cfg := &config.Config{RevealThreshold: 0.85}

	h := NewHandler(store, cat, nil, ai, cfg)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r, store
}

func doJSON(t *testing.T, r http.Handler, method, path string, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var rdr *bytes.Reader
	if body == "" {
		rdr = bytes.NewReader(nil)
	} else {
		rdr = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, rdr)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var got map[string]interface{}
	raw := w.Body.Bytes()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("Failed to decode %s %s response: %v\nbody: %s", method, path, err, raw)
		}
	}
	return w, got
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w, got := doJSON(t, r, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if got["status"] != "ok" {
		t.Errorf("Expected status ok, got %v", got["status"])
	}
}

func TestCreateAndGetSession(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w, got := doJSON(t, r, http.MethodPost, "/api/sessions", `{"id": "room-1", "title": "Friday night"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if got["id"] != "room-1" || got["title"] != "Friday night" {
		t.Errorf("Unexpected session payload: %v", got)
	}

	w, got = doJSON(t, r, http.MethodGet, "/api/sessions/room-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if got["state"] != string(domain.StateNotStarted) {
		t.Errorf("Expected not_started, got %v", got["state"])
	}
}

func TestCreateSessionDuplicate(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	doJSON(t, r, http.MethodPost, "/api/sessions", `{"id": "room-1"}`)
	w, _ := doJSON(t, r, http.MethodPost, "/api/sessions", `{"id": "room-1"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("Expected 409 for duplicate id, got %d", w.Code)
	}
}

func TestStartSessionLoadsPuzzle(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w, got := doJSON(t, r, http.MethodPost, "/api/sessions/default/start", `{"puzzle_id": "p1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got["state"] != string(domain.StateStarted) {
		t.Errorf("Expected started, got %v", got["state"])
	}
	if strings.Contains(w.Body.String(), "unknowingly ate") {
		t.Error("Start response leaked truth text")
	}

	summary, ok := got["puzzle_summary"].(map[string]interface{})
	if !ok {
		t.Fatal("Expected puzzle_summary in start response")
	}
	if summary["surface_text"] == "" {
		t.Error("Expected surface text in summary")
	}
}

func TestStartSessionTwiceConflicts(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	doJSON(t, r, http.MethodPost, "/api/sessions/default/start", `{"puzzle_id": "p1"}`)
	w, got := doJSON(t, r, http.MethodPost, "/api/sessions/default/start", `{"puzzle_id": "p1"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("Expected 409 for double start, got %d", w.Code)
	}
	if msg, _ := got["error"].(string); !strings.Contains(msg, "already started") {
		t.Errorf("Expected already-started error, got %q", msg)
	}
}

func TestStartSessionUnknownPuzzle(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w, _ := doJSON(t, r, http.MethodPost, "/api/sessions/default/start", `{"puzzle_id": "nope"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", w.Code)
	}
}

func TestJoinLeaveSession(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w, got := doJSON(t, r, http.MethodPost, "/api/sessions/default/join", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if got["player_count"].(float64) != 1 {
		t.Errorf("Expected player_count 1, got %v", got["player_count"])
	}

	w, got = doJSON(t, r, http.MethodPost, "/api/sessions/default/leave", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if got["player_count"].(float64) != 0 {
		t.Errorf("Expected player_count 0, got %v", got["player_count"])
	}
}

func TestLeaveMissingSessionReportsGone(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w, got := doJSON(t, r, http.MethodPost, "/api/sessions/nope/leave", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if got["gone"] != true {
		t.Errorf("Expected gone=true, got %v", got)
	}
}

func TestUpdateSessionMeta(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w, got := doJSON(t, r, http.MethodPatch, "/api/sessions/default", `{"title": "Renamed"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if got["title"] != "Renamed" {
		t.Errorf("Expected renamed title, got %v", got["title"])
	}
}

func TestDeleteSession(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	doJSON(t, r, http.MethodPost, "/api/sessions", `{"id": "room-1"}`)
	w, _ := doJSON(t, r, http.MethodDelete, "/api/sessions/room-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	w, _ = doJSON(t, r, http.MethodGet, "/api/sessions/room-1", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404 after delete, got %d", w.Code)
	}
}

func TestEndSessionRevealsPuzzle(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	doJSON(t, r, http.MethodPost, "/api/sessions/default/start", `{"puzzle_id": "p1"}`)
	w, got := doJSON(t, r, http.MethodPost, "/api/sessions/default/end", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got["state"] != string(domain.StateEnded) {
		t.Errorf("Expected ended, got %v", got["state"])
	}

	summary := got["puzzle_summary"].(map[string]interface{})
	for _, kw := range summary["keywords"].([]interface{}) {
		item := kw.(map[string]interface{})
		if item["revealed"] != true {
			t.Errorf("Expected keyword %v revealed after end", item["id"])
		}
	}
}

func TestResetSessionReturnsRevealedPuzzle(t *testing.T) {
	r, store := newTestRouter(t, nil)

	doJSON(t, r, http.MethodPost, "/api/sessions/default/start", `{"puzzle_id": "p1"}`)
	w, got := doJSON(t, r, http.MethodPost, "/api/sessions/default/reset", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	session := got["session"].(map[string]interface{})
	if session["state"] != string(domain.StateNotStarted) {
		t.Errorf("Expected not_started after reset, got %v", session["state"])
	}

	revealed, ok := got["revealed_puzzle"].(map[string]interface{})
	if !ok {
		t.Fatal("Expected revealed_puzzle in reset response")
	}
	for _, kw := range revealed["keywords"].([]interface{}) {
		item := kw.(map[string]interface{})
		if item["revealed"] != true {
			t.Errorf("Expected keyword %v revealed in reset payload", item["id"])
		}
	}
	if strings.Contains(w.Body.String(), "unknowingly ate") {
		t.Error("Reset response leaked truth text")
	}

	snap, _ := store.GetSession(game.DefaultSessionID)
	if snap.Summary != nil {
		t.Error("Expected puzzle summary cleared after reset")
	}
}

func TestPostMessage(t *testing.T) {
	r, store := newTestRouter(t, nil)

	w, got := doJSON(t, r, http.MethodPost, "/api/sessions/default/messages", `{"content": "hello"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	msg := got["message"].(map[string]interface{})
	if msg["id"] == "" {
		t.Error("Expected a minted message id")
	}
	if msg["content"] != "hello" {
		t.Errorf("Expected hello, got %v", msg["content"])
	}

	snap, _ := store.GetSession(game.DefaultSessionID)
	if len(snap.ChatHistory) != 1 {
		t.Fatalf("Expected 1 chat message, got %d", len(snap.ChatHistory))
	}
}

func TestPostMessageEmptyContent(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w, _ := doJSON(t, r, http.MethodPost, "/api/sessions/default/messages", `{"content": "  "}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
}

func TestPostQuestionWithoutAI(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	doJSON(t, r, http.MethodPost, "/api/sessions/default/start", `{"puzzle_id": "p1"}`)
	w, _ := doJSON(t, r, http.MethodPost, "/api/sessions/default/questions", `{"question": "Was he alone?"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503 without an LLM client, got %d", w.Code)
	}
}

func TestPostQuestionBeforeStart(t *testing.T) {
	ai := &fakeLLM{judgment: llm.Judgment{Answer: domain.AnswerYes}}
	r, _ := newTestRouter(t, ai)

	w, _ := doJSON(t, r, http.MethodPost, "/api/sessions/default/questions", `{"question": "Was he alone?"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("Expected 409 before start, got %d", w.Code)
	}
}

func TestPostQuestionJudgeFlow(t *testing.T) {
	ai := &fakeLLM{
		judgment: llm.Judgment{Answer: domain.AnswerYes, Tip: "Getting warmer."},
		keywords: []string{"ship"},
		embeddings: map[string][]float32{
			"ship":      {0.99, 0.14, 0},
			"shipwreck": {1, 0, 0},
			"soup":      {0, 1, 0},
		},
	}
	r, store := newTestRouter(t, ai)

	doJSON(t, r, http.MethodPost, "/api/sessions/default/start", `{"puzzle_id": "p1"}`)
	w, got := doJSON(t, r, http.MethodPost, "/api/sessions/default/questions", `{"question": "Was there a shipwreck?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got["answer"] != string(domain.AnswerYes) {
		t.Errorf("Expected yes, got %v", got["answer"])
	}

	revealed, _ := got["revealed_keyword_ids"].([]interface{})
	if len(revealed) != 1 || revealed[0] != "p1:keyword:0" {
		t.Errorf("Expected p1:keyword:0 revealed, got %v", revealed)
	}

	snap, _ := store.GetSession(game.DefaultSessionID)
	if len(snap.QuestionHistory) != 1 {
		t.Fatalf("Expected 1 ledger entry, got %d", len(snap.QuestionHistory))
	}
	if snap.QuestionHistory[0].Answer != domain.AnswerYes {
		t.Errorf("Expected yes in ledger, got %v", snap.QuestionHistory[0].Answer)
	}
	if len(snap.ChatHistory) != 1 {
		t.Fatalf("Expected the question in chat history, got %d messages", len(snap.ChatHistory))
	}
	if snap.ChatHistory[0].Answer != domain.AnswerYes {
		t.Errorf("Expected answer attached to chat message, got %v", snap.ChatHistory[0].Answer)
	}
}

func TestPostQuestionJudgeFailure(t *testing.T) {
	ai := &fakeLLM{judgeErr: errors.New("model overloaded")}
	r, store := newTestRouter(t, ai)

	doJSON(t, r, http.MethodPost, "/api/sessions/default/start", `{"puzzle_id": "p1"}`)
	w, _ := doJSON(t, r, http.MethodPost, "/api/sessions/default/questions", `{"question": "Was he alone?"}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("Expected 502 on judge failure, got %d", w.Code)
	}

	snap, _ := store.GetSession(game.DefaultSessionID)
	if len(snap.QuestionHistory) != 0 {
		t.Errorf("Expected no ledger entry on judge failure, got %d", len(snap.QuestionHistory))
	}
}

func TestPostQuestionBelowThresholdRevealsNothing(t *testing.T) {
	ai := &fakeLLM{
		judgment: llm.Judgment{Answer: domain.AnswerNo},
		keywords: []string{"weather"},
		embeddings: map[string][]float32{
			"weather":   {0, 0, 1},
			"shipwreck": {1, 0, 0},
			"soup":      {0, 1, 0},
		},
	}
	r, _ := newTestRouter(t, ai)

	doJSON(t, r, http.MethodPost, "/api/sessions/default/start", `{"puzzle_id": "p1"}`)
	w, got := doJSON(t, r, http.MethodPost, "/api/sessions/default/questions", `{"question": "Was it raining?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if revealed, _ := got["revealed_keyword_ids"].([]interface{}); len(revealed) != 0 {
		t.Errorf("Expected no reveals below threshold, got %v", revealed)
	}
}

func TestListPuzzlesOmitsTruth(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w, got := doJSON(t, r, http.MethodGet, "/api/puzzles", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "unknowingly ate") {
		t.Error("Puzzle listing leaked truth text")
	}
	if len(got["puzzles"].([]interface{})) != 1 {
		t.Errorf("Expected 1 puzzle, got %v", got["puzzles"])
	}
}

func TestGetConfig(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w, got := doJSON(t, r, http.MethodGet, "/api/config", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if got["ai_enabled"] != false {
		t.Errorf("Expected ai_enabled=false, got %v", got["ai_enabled"])
	}
	if got["default_session"] != game.DefaultSessionID {
		t.Errorf("Expected default session id, got %v", got["default_session"])
	}
}

func TestQuestionFeedback(t *testing.T) {
	ai := &fakeLLM{judgment: llm.Judgment{Answer: domain.AnswerNo}}
	r, store := newTestRouter(t, ai)

	doJSON(t, r, http.MethodPost, "/api/sessions/default/start", `{"puzzle_id": "p1"}`)
	doJSON(t, r, http.MethodPost, "/api/sessions/default/questions", `{"question": "Was he alone?"}`)

	w, _ := doJSON(t, r, http.MethodPost, "/api/sessions/default/questions/0/feedback", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	snap, _ := store.GetSession(game.DefaultSessionID)
	if !snap.QuestionHistory[0].ThumbsDown {
		t.Error("Expected thumbs-down recorded in ledger")
	}

	w, _ = doJSON(t, r, http.MethodPost, "/api/sessions/default/questions/9/feedback", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404 for out-of-range index, got %d", w.Code)
	}
}
