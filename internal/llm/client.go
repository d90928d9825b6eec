// Package llm provides the language-model collaborator: question judging,
// keyword extraction, and text embedding. The engine itself never calls the
// model; the transport layer orchestrates these around store operations.
package llm

import (
	"context"

	"github.com/ztpublic/turtlesoup/internal/domain"
)

// Judgment is the judge's structured verdict for one player question.
type Judgment struct {
	Answer domain.Answer `json:"answer"`
	Tip    string        `json:"tip,omitempty"`
}

// Client is the collaborator interface; tests and the transport layer depend
// on this, not on a concrete provider.
type Client interface {
	// JudgeQuestion decides yes/no/irrelevant/both/unknown for a question
	// against the hidden truth, with the recent QA window as context.
	JudgeQuestion(ctx context.Context, surface, truth string, recent []domain.QuestionEntry, question string) (Judgment, error)

	// ExtractKeywords pulls the salient terms out of a player question, in
	// order of appearance, for the reveal matcher.
	ExtractKeywords(ctx context.Context, question string) ([]string, error)

	// EmbedTexts computes one embedding vector per input text, index-aligned
	// with the input. The whole call fails on any single embedding failure.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// Close releases the underlying connection.
	Close() error
}
