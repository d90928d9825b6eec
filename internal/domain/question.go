package domain

import (
	"time"
)

// Answer is the judge's verdict for a yes/no question.
type Answer string

const (
	AnswerYes        Answer = "yes"
	AnswerNo         Answer = "no"
	AnswerIrrelevant Answer = "irrelevant"
	AnswerBoth       Answer = "both"
	AnswerUnknown    Answer = "unknown"
)

// Valid reports whether a is one of the five judge verdicts.
func (a Answer) Valid() bool {
	switch a {
	case AnswerYes, AnswerNo, AnswerIrrelevant, AnswerBoth, AnswerUnknown:
		return true
	}
	return false
}

// QuestionEntry is one record in a session's question/answer ledger.
// The ledger is append-only: questions are never edited after the fact, only
// appended and trimmed from the oldest end.
type QuestionEntry struct {
	Question   string    `json:"question"`
	Answer     Answer    `json:"answer"`
	Timestamp  time.Time `json:"timestamp"`
	ThumbsDown bool      `json:"thumbs_down,omitempty"`
}
