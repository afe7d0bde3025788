package domain

// MessageRole represents the sender of a message
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is a single chat message. Messages are immutable once
// appended to a conversation.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}
