// Package game implements the multi-session game-state engine: the
// authoritative in-memory registry of concurrent game sessions, their
// lifecycle state machine, bounded chat and question histories, and
// idle-session reclamation.
package game

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ztpublic/turtlesoup/internal/domain"
)

// DefaultSessionID names the distinguished session that always exists. It is
// lazily recreated if ever missing and is never evicted by the reaper, so
// callers that have not adopted multi-session addressing keep working.
const DefaultSessionID = "default"

// ErrEmbeddingMismatch means a keyword embedding write was not index-aligned
// with the session's keywords.
var ErrEmbeddingMismatch = errors.New("keyword embeddings misaligned with puzzle keywords")

// session is the internal mutable record. Mutating operations build a
// replacement under the store lock and swap it into the registry, so readers
// never observe a partially applied change.
type session struct {
	id           string
	title        string
	hostNickname string
	state        domain.SessionState
	playerCount  int
	isActive     bool
	createdAt    time.Time
	updatedAt    time.Time
	lastActiveAt time.Time

	content    *domain.PuzzleContent
	summary    *domain.PuzzleSummary
	chat       []domain.ChatMessage
	questions  []domain.QuestionEntry
	embeddings [][]float32
}

// Store is the authoritative session registry. Construct one per process and
// pass it by reference to every consumer; tests build fresh isolated
// instances instead of resetting shared state.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session

	chatLimit     int
	questionLimit int
	now           func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithHistoryLimits overrides the chat and question history bounds.
func WithHistoryLimits(chatLimit, questionLimit int) StoreOption {
	return func(s *Store) {
		s.chatLimit = chatLimit
		s.questionLimit = questionLimit
	}
}

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty registry holding only the default session.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		sessions:      make(map[string]*session),
		chatLimit:     DefaultChatLimit,
		questionLimit: DefaultQuestionLimit,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mu.Lock()
	s.ensureDefaultLocked()
	s.mu.Unlock()
	return s
}

// CreateParams are the caller-supplied fields for a new session.
type CreateParams struct {
	ID           string
	Title        string
	HostNickname string
	State        domain.SessionState
	Content      *domain.PuzzleContent
}

// resolveID maps an omitted id to the default session.
func resolveID(id string) string {
	if id == "" {
		return DefaultSessionID
	}
	return id
}

func (s *Store) ensureDefaultLocked() *session {
	if sess, ok := s.sessions[DefaultSessionID]; ok {
		return sess
	}
	now := s.now()
	sess := &session{
		id:           DefaultSessionID,
		state:        domain.StateNotStarted,
		isActive:     true,
		createdAt:    now,
		updatedAt:    now,
		lastActiveAt: now,
	}
	s.sessions[DefaultSessionID] = sess
	return sess
}

// getLocked resolves id, lazily recreating the default session.
func (s *Store) getLocked(id string) (*session, bool) {
	id = resolveID(id)
	if id == DefaultSessionID {
		return s.ensureDefaultLocked(), true
	}
	sess, ok := s.sessions[id]
	return sess, ok
}

// touch refreshes the mutation timestamps. Called as the final step of every
// mutating operation so observers never see a stale timestamp paired with
// fresh data.
func (s *Store) touch(sess *session) {
	now := s.now()
	sess.updatedAt = now
	sess.lastActiveAt = now
}

// CreateSession registers a new session. An omitted id is generated. A
// requested Started state requires puzzle content, per the lifecycle rules.
func (s *Store) CreateSession(params CreateParams) (domain.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := params.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := s.sessions[id]; exists {
		return domain.SessionSnapshot{}, ErrSessionExists
	}

	state := params.State
	if state == "" {
		state = domain.StateNotStarted
	}
	if state != domain.StateNotStarted {
		if err := checkTransition(domain.StateNotStarted, state, params.Content != nil); err != nil {
			return domain.SessionSnapshot{}, err
		}
	}

	now := s.now()
	content := params.Content.Clone()
	sess := &session{
		id:           id,
		title:        params.Title,
		hostNickname: params.HostNickname,
		state:        state,
		isActive:     true,
		createdAt:    now,
		updatedAt:    now,
		lastActiveAt: now,
		content:      content,
		summary:      content.Summary(),
	}
	s.sessions[id] = sess
	return snapshot(sess), nil
}

// GetSession returns the snapshot for id, or ok=false if absent. Absence is
// not an error; callers decide.
func (s *Store) GetSession(id string) (domain.SessionSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.getLocked(id)
	if !ok {
		return domain.SessionSnapshot{}, false
	}
	return snapshot(sess), true
}

// ListSessions returns lobby metadata for every session. Never includes
// truth text or embeddings.
func (s *Store) ListSessions() []domain.GameSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureDefaultLocked()
	out := make([]domain.GameSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, metadata(sess))
	}
	return out
}

// JoinSession increments the player count.
func (s *Store) JoinSession(id string) (domain.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.getLocked(id)
	if !ok {
		return domain.SessionSnapshot{}, ErrSessionNotFound
	}
	sess.playerCount++
	s.touch(sess)
	return snapshot(sess), nil
}

// LeaveSession decrements the player count, floored at zero. An unknown id
// is a no-op returning ok=false rather than an error, to tolerate duplicate
// leave calls from flaky clients.
func (s *Store) LeaveSession(id string) (domain.SessionSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.getLocked(id)
	if !ok {
		return domain.SessionSnapshot{}, false
	}
	if sess.playerCount > 0 {
		sess.playerCount--
	}
	s.touch(sess)
	return snapshot(sess), true
}

// UpdateSessionMeta sets the display metadata.
func (s *Store) UpdateSessionMeta(id, title, hostNickname string) (domain.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.getLocked(id)
	if !ok {
		return domain.SessionSnapshot{}, ErrSessionNotFound
	}
	if title != "" {
		sess.title = title
	}
	if hostNickname != "" {
		sess.hostNickname = hostNickname
	}
	s.touch(sess)
	return snapshot(sess), nil
}

// StartSession sets the puzzle content and transitions to Started in one
// critical section; the content write happens before the transition check so
// the "missing puzzle content" rule sees the pending content.
func (s *Store) StartSession(id string, content *domain.PuzzleContent) (domain.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.getLocked(id)
	if !ok {
		return domain.SessionSnapshot{}, ErrSessionNotFound
	}
	if err := checkTransition(sess.state, domain.StateStarted, content != nil || sess.content != nil); err != nil {
		return domain.SessionSnapshot{}, err
	}
	if content != nil {
		sess.content = content.Clone()
		sess.summary = sess.content.Summary()
		sess.embeddings = nil
	}
	sess.state = domain.StateStarted
	s.touch(sess)
	return snapshot(sess), nil
}

// SetState applies a bare lifecycle state change, subject to the transition
// rules. End and reset have dedicated operations; this exists for callers
// that drive the machine directly and must fail loudly on anything illegal.
func (s *Store) SetState(id string, state domain.SessionState) (domain.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.getLocked(id)
	if !ok {
		return domain.SessionSnapshot{}, ErrSessionNotFound
	}
	if err := checkTransition(sess.state, state, sess.content != nil); err != nil {
		return domain.SessionSnapshot{}, err
	}
	sess.state = state
	s.touch(sess)
	return snapshot(sess), nil
}

// EndOptions control the end-of-round operation.
type EndOptions struct {
	RevealContent bool
	PreserveChat  bool
}

// DefaultEndOptions reveal the content and keep the chat.
func DefaultEndOptions() EndOptions {
	return EndOptions{RevealContent: true, PreserveChat: true}
}

// EndSession ends the round: optionally reveals all facts and keywords,
// optionally prunes the chat, and sets the state to Ended. This is the only
// path into the Ended state.
func (s *Store) EndSession(id string, opts EndOptions) (domain.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.getLocked(id)
	if !ok {
		return domain.SessionSnapshot{}, ErrSessionNotFound
	}
	if opts.RevealContent && sess.content != nil {
		sess.content = revealAll(sess.content)
		sess.summary = sess.content.Summary()
	}
	if !opts.PreserveChat {
		sess.chat = nil
	}
	sess.state = domain.StateEnded
	s.touch(sess)
	return snapshot(sess), nil
}

// ResetOptions control the reset operation.
type ResetOptions struct {
	PreserveChat          bool
	RevealExistingContent bool
}

// DefaultResetOptions keep the chat and reveal the outgoing content.
func DefaultResetOptions() ResetOptions {
	return ResetOptions{PreserveChat: true, RevealExistingContent: true}
}

// ResetGameState returns the session to NotStarted: question history and
// keyword embeddings are cleared, puzzle content is cleared, and chat is
// kept or dropped per the options. When RevealExistingContent is set the
// outgoing content is returned with everything revealed so the caller can
// broadcast what the answer was. Resetting twice is idempotent.
func (s *Store) ResetGameState(id string, opts ResetOptions) (domain.SessionSnapshot, *domain.PuzzleContent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.getLocked(id)
	if !ok {
		return domain.SessionSnapshot{}, nil, ErrSessionNotFound
	}

	var revealed *domain.PuzzleContent
	if opts.RevealExistingContent && sess.content != nil {
		revealed = revealAll(sess.content)
	}
	sess.content = nil
	sess.summary = nil
	sess.questions = nil
	sess.embeddings = nil
	if !opts.PreserveChat {
		sess.chat = nil
	}
	sess.state = domain.StateNotStarted
	s.touch(sess)
	return snapshot(sess), revealed, nil
}

// AddChatMessage upserts msg into the session's bounded transcript: an entry
// with the same id is replaced in place, otherwise msg is appended, then the
// transcript is trimmed from the oldest end.
func (s *Store) AddChatMessage(id string, msg domain.ChatMessage) (domain.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.getLocked(id)
	if !ok {
		return domain.SessionSnapshot{}, ErrSessionNotFound
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	sess.chat = upsertMessage(sess.chat, msg, s.chatLimit)
	s.touch(sess)
	return snapshot(sess), nil
}

// AddQuestion appends a judged question to the session's bounded ledger.
// A zero timestamp means now.
func (s *Store) AddQuestion(id string, question string, answer domain.Answer, ts time.Time) (domain.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.getLocked(id)
	if !ok {
		return domain.SessionSnapshot{}, ErrSessionNotFound
	}
	if ts.IsZero() {
		ts = s.now()
	}
	sess.questions = appendQuestion(sess.questions, domain.QuestionEntry{
		Question:  question,
		Answer:    answer,
		Timestamp: ts,
	}, s.questionLimit)
	s.touch(sess)
	return snapshot(sess), nil
}

// SetQuestionFeedback flags a ledger entry with player feedback on the
// judge's verdict. The index addresses the current window, oldest first;
// entries already trimmed away cannot be flagged.
func (s *Store) SetQuestionFeedback(id string, index int, thumbsDown bool) (domain.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.getLocked(id)
	if !ok {
		return domain.SessionSnapshot{}, ErrSessionNotFound
	}
	if index < 0 || index >= len(sess.questions) {
		return domain.SessionSnapshot{}, ErrQuestionNotFound
	}
	sess.questions[index].ThumbsDown = thumbsDown
	s.touch(sess)
	return snapshot(sess), nil
}

// SetKeywordEmbeddings attaches the embedding vectors used by the reveal
// matcher. Vectors must be index-aligned 1:1 with the content's keywords;
// nil or empty clears them back to the not-yet-computed state.
func (s *Store) SetKeywordEmbeddings(id string, vectors [][]float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.getLocked(id)
	if !ok {
		return ErrSessionNotFound
	}
	if len(vectors) == 0 {
		sess.embeddings = nil
		s.touch(sess)
		return nil
	}
	if sess.content == nil || len(vectors) != len(sess.content.Keywords) {
		return ErrEmbeddingMismatch
	}
	copied := make([][]float32, len(vectors))
	for i, v := range vectors {
		copied[i] = append([]float32(nil), v...)
	}
	sess.embeddings = copied
	s.touch(sess)
	return nil
}

// KeywordEmbeddings returns the stored vectors, or ok=false if the session
// is absent. A nil slice means not yet computed.
func (s *Store) KeywordEmbeddings(id string) ([][]float32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.getLocked(id)
	if !ok {
		return nil, false
	}
	out := make([][]float32, len(sess.embeddings))
	for i, v := range sess.embeddings {
		out[i] = append([]float32(nil), v...)
	}
	return out, true
}

// UnrevealedKeywords returns the still-hidden keywords paired with their
// embedding vectors, for a reveal matching pass. Returns nothing when
// embeddings have not been computed or have fallen out of alignment (a
// concurrent reset clears them), so an in-flight pass simply finds no
// candidates instead of matching against stale vectors.
func (s *Store) UnrevealedKeywords(id string) ([]domain.PuzzleItem, [][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.getLocked(id)
	if !ok {
		return nil, nil, ErrSessionNotFound
	}
	if sess.content == nil || len(sess.embeddings) != len(sess.content.Keywords) {
		return nil, nil, nil
	}
	var items []domain.PuzzleItem
	var vectors [][]float32
	for i, kw := range sess.content.Keywords {
		if kw.Revealed {
			continue
		}
		items = append(items, kw)
		vectors = append(vectors, append([]float32(nil), sess.embeddings[i]...))
	}
	return items, vectors, nil
}

// MarkKeywordsRevealed persists a reveal pass: keywords whose ids appear in
// keywordIDs are marked revealed and the summary is recomputed. The current
// content is re-read under the lock, so a pass racing a reset or content
// swap marks only ids that still exist. Returns the ids actually marked.
func (s *Store) MarkKeywordsRevealed(id string, keywordIDs []string) (domain.SessionSnapshot, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.getLocked(id)
	if !ok {
		return domain.SessionSnapshot{}, nil, ErrSessionNotFound
	}
	if sess.content == nil || len(keywordIDs) == 0 {
		return snapshot(sess), nil, nil
	}

	wanted := make(map[string]bool, len(keywordIDs))
	for _, kid := range keywordIDs {
		wanted[kid] = true
	}
	content := sess.content.Clone()
	var marked []string
	for i := range content.Keywords {
		if wanted[content.Keywords[i].ID] && !content.Keywords[i].Revealed {
			content.Keywords[i].Revealed = true
			marked = append(marked, content.Keywords[i].ID)
		}
	}
	if len(marked) == 0 {
		return snapshot(sess), nil, nil
	}
	sess.content = content
	sess.summary = content.Summary()
	s.touch(sess)
	return snapshot(sess), marked, nil
}

// PuzzleContentForJudge returns the full content including the truth text.
// Only the judge orchestration may use it; it must never be forwarded to
// participant-facing paths.
func (s *Store) PuzzleContentForJudge(id string) (*domain.PuzzleContent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.getLocked(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess.content.Clone(), nil
}

// DeleteSession removes a session outright. Deleting the default session
// just resets it on next access. Reports whether anything was removed.
func (s *Store) DeleteSession(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	id = resolveID(id)
	sess, ok := s.sessions[id]
	if !ok {
		return false
	}
	sess.isActive = false
	delete(s.sessions, id)
	return true
}

// CleanupIdleSessions evicts every session, except the default one, whose
// last activity is older than ttl relative to now. Evicted sessions are
// marked inactive so a late-arriving observer holding a stale snapshot can
// recognize the record is gone. Returns the evicted ids; an empty registry
// is a no-op. Never fails.
func (s *Store) CleanupIdleSessions(now time.Time, ttl time.Duration) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []string
	for id, sess := range s.sessions {
		if id == DefaultSessionID {
			continue
		}
		if now.Sub(sess.lastActiveAt) > ttl {
			sess.isActive = false
			delete(s.sessions, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

// Len returns the number of live sessions, default included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// metadata builds the lobby view for a record.
func metadata(sess *session) domain.GameSession {
	var summary *domain.PuzzleSummary
	if sess.summary != nil {
		c := *sess.summary
		c.Facts = append([]domain.PuzzleItem(nil), sess.summary.Facts...)
		c.Keywords = append([]domain.PuzzleItem(nil), sess.summary.Keywords...)
		summary = &c
	}
	return domain.GameSession{
		ID:           sess.id,
		Title:        sess.title,
		HostNickname: sess.hostNickname,
		State:        sess.state,
		PlayerCount:  sess.playerCount,
		IsActive:     sess.isActive,
		CreatedAt:    sess.createdAt,
		UpdatedAt:    sess.updatedAt,
		Summary:      summary,
	}
}

// snapshot builds the participant-facing view: metadata plus copies of both
// histories. Truth text and embeddings are never included.
func snapshot(sess *session) domain.SessionSnapshot {
	return domain.SessionSnapshot{
		GameSession:     metadata(sess),
		ChatHistory:     append([]domain.ChatMessage(nil), sess.chat...),
		QuestionHistory: append([]domain.QuestionEntry(nil), sess.questions...),
	}
}
