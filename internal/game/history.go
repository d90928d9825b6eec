package game

import (
	"github.com/ztpublic/turtlesoup/internal/domain"
)

// Default history bounds, overridable per call.
const (
	DefaultChatLimit     = 200
	DefaultQuestionLimit = 100
)

// upsertMessage inserts msg into the transcript keyed by message ID: an
// entry with the same ID is replaced in place, preserving its position,
// otherwise msg is appended. The result is then trimmed to limit.
func upsertMessage(history []domain.ChatMessage, msg domain.ChatMessage, limit int) []domain.ChatMessage {
	if limit <= 0 {
		return nil
	}

	out := append([]domain.ChatMessage(nil), history...)
	replaced := false
	for i := range out {
		if out[i].ID == msg.ID {
			out[i] = msg
			replaced = true
			break
		}
	}
	if !replaced {
		out = append(out, msg)
	}
	return trimMessages(out, limit)
}

// trimMessages keeps only the most recent limit entries, dropping from the
// oldest end. Relative order among retained entries is preserved.
func trimMessages(history []domain.ChatMessage, limit int) []domain.ChatMessage {
	if limit <= 0 {
		return nil
	}
	if len(history) <= limit {
		return history
	}
	return history[len(history)-limit:]
}

// appendQuestion appends entry to the ledger and trims from the oldest end.
// The ledger has no id-based identity: strictly append-then-trim.
func appendQuestion(ledger []domain.QuestionEntry, entry domain.QuestionEntry, limit int) []domain.QuestionEntry {
	if limit <= 0 {
		return nil
	}
	out := append(append([]domain.QuestionEntry(nil), ledger...), entry)
	if len(out) <= limit {
		return out
	}
	return out[len(out)-limit:]
}
