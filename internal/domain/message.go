package domain

import "time"

// MessageRole identifies who produced a chat message.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// ChatMessage is one entry in an owner's ordered, append-only conversation.
type ChatMessage struct {
	ID        string
	UserID    string
	Role      MessageRole
	Content   string
	CreatedAt time.Time
}

// ValidateChatMessage checks a message before persistence.
func ValidateChatMessage(m *ChatMessage) error {
	if m.UserID == "" {
		return ErrMissingOwner
	}
	if m.Content == "" {
		return ErrEmptyContent
	}
	if m.Role != MessageRoleUser && m.Role != MessageRoleAssistant {
		return ErrInvalidMessageRole
	}
	return nil
}
