package domain

import (
	"fmt"
	"strings"
	"time"
)

// DefaultTitle is the title of a conversation before its first user message
const DefaultTitle = "New chat"

// titleWords is how many leading words of the first question become the title
const titleWords = 6

// Conversation is an ordered, titled thread of messages belonging to
// one identity scope. Messages is append-only; entries are never
// reordered or edited in place.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt int64     `json:"createdAt"` // unix milliseconds
}

// ConversationMapping holds every conversation of one identity scope,
// keyed by conversation ID. Exactly one mapping is live at a time.
type ConversationMapping map[string]*Conversation

// NewConversationID derives a conversation ID from a creation time
func NewConversationID(t time.Time) string {
	return fmt.Sprintf("c_%d", t.UnixMilli())
}

// DeriveTitle builds a conversation title from its first user message:
// the first six words followed by an ellipsis.
func DeriveTitle(question string) string {
	words := strings.Fields(question)
	if len(words) > titleWords {
		words = words[:titleWords]
	}
	return strings.Join(words, " ") + "…"
}

// Clone returns a deep copy so callers cannot mutate stored state
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Messages = make([]Message, len(c.Messages))
	copy(cp.Messages, c.Messages)
	return &cp
}
