// Package domain contains core domain types for the turtle soup game.
package domain

import (
	"time"
)

// SessionState is the lifecycle state of a game session.
type SessionState string

const (
	StateNotStarted SessionState = "not_started"
	StateStarted    SessionState = "started"
	StateEnded      SessionState = "ended"
)

// Valid reports whether s is one of the known lifecycle states.
func (s SessionState) Valid() bool {
	switch s {
	case StateNotStarted, StateStarted, StateEnded:
		return true
	}
	return false
}

// PuzzleItem is a single fact or keyword of a puzzle, revealed progressively
// over the course of a round.
type PuzzleItem struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Revealed bool   `json:"revealed"`
}

// PuzzleContent is the full puzzle loaded into a session, truth included.
// It never leaves the server except through the judge path.
type PuzzleContent struct {
	SurfaceText string       `json:"surface_text"`
	TruthText   string       `json:"truth_text"`
	Facts       []PuzzleItem `json:"facts"`
	Keywords    []PuzzleItem `json:"keywords"`
}

// Clone returns a deep copy of the content, or nil for nil content.
func (p *PuzzleContent) Clone() *PuzzleContent {
	if p == nil {
		return nil
	}
	return &PuzzleContent{
		SurfaceText: p.SurfaceText,
		TruthText:   p.TruthText,
		Facts:       append([]PuzzleItem(nil), p.Facts...),
		Keywords:    append([]PuzzleItem(nil), p.Keywords...),
	}
}

// Summary returns the truth-redacted projection of the content: surface text
// plus facts and keywords, never the truth. Returns nil for nil content.
func (p *PuzzleContent) Summary() *PuzzleSummary {
	if p == nil {
		return nil
	}
	return &PuzzleSummary{
		SurfaceText: p.SurfaceText,
		Facts:       append([]PuzzleItem(nil), p.Facts...),
		Keywords:    append([]PuzzleItem(nil), p.Keywords...),
	}
}

// PuzzleSummary is the only puzzle view carried in lobby-wide broadcasts.
type PuzzleSummary struct {
	SurfaceText string       `json:"surface_text"`
	Facts       []PuzzleItem `json:"facts"`
	Keywords    []PuzzleItem `json:"keywords"`
}

// GameSession is the lobby-facing session metadata. It carries the redacted
// puzzle summary, never the raw content.
type GameSession struct {
	ID           string         `json:"id"`
	Title        string         `json:"title,omitempty"`
	HostNickname string         `json:"host_nickname,omitempty"`
	State        SessionState   `json:"state"`
	PlayerCount  int            `json:"player_count"`
	IsActive     bool           `json:"is_active"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Summary      *PuzzleSummary `json:"puzzle_summary,omitempty"`
}

// SessionSnapshot is the fuller per-session view returned to joined
// participants: metadata plus both histories. Truth text is still absent.
type SessionSnapshot struct {
	GameSession
	ChatHistory     []ChatMessage   `json:"chat_history"`
	QuestionHistory []QuestionEntry `json:"question_history"`
}
