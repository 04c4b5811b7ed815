// Package domain defines the core data types shared across the engine.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// MessageRole identifies the author of a transcript message.
type MessageRole string

const (
	// MessageRoleUser marks a message typed by the user.
	MessageRoleUser MessageRole = "user"
	// MessageRoleAssistant marks a message produced by the AI.
	MessageRoleAssistant MessageRole = "assistant"
	// MessageRoleSystem marks an instruction injected by the application.
	MessageRoleSystem MessageRole = "system"
)

// Message is a single entry in a conversation transcript. Content is the
// only field mutated after creation: the in-flight assistant message grows
// by appending token fragments until the stream marks it complete.
type Message struct {
	ID        string      `json:"id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewUserMessage creates a user-authored message with a fresh id.
func NewUserMessage(content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      MessageRoleUser,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// NewAssistantMessage creates an assistant message carrying the id assigned
// by the server so later token fragments can find it.
func NewAssistantMessage(id, content string) Message {
	return Message{
		ID:        id,
		Role:      MessageRoleAssistant,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}
