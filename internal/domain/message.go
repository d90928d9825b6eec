package domain

import (
	"time"
)

// MessageType distinguishes player messages from bot/system messages.
type MessageType string

const (
	MessageTypeUser MessageType = "user"
	MessageTypeBot  MessageType = "bot"
)

// ChatMessage is a single entry in a session's chat transcript. Identity is
// the caller-supplied ID: inserting a message whose ID already exists in the
// transcript overwrites the existing entry in place, so client retries never
// duplicate a message.
type ChatMessage struct {
	ID              string      `json:"id"`
	Type            MessageType `json:"type"`
	Content         string      `json:"content"`
	Nickname        string      `json:"nickname,omitempty"`
	ReplyToID       string      `json:"reply_to_id,omitempty"`
	ReplyToPreview  string      `json:"reply_to_preview,omitempty"`
	ReplyToNickname string      `json:"reply_to_nickname,omitempty"`
	Timestamp       time.Time   `json:"timestamp"`
	Answer          Answer      `json:"answer,omitempty"`
	AnswerTip       string      `json:"answer_tip,omitempty"`
}
