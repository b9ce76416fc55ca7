package chat

import (
	"time"

	"studio-chat/internal/mention"
)

// Message is one chat message as persisted and delivered. Immutable once
// created; the ID is server-assigned and unique per channel.
type Message struct {
	ID         string       `json:"id"`
	ChannelID  string       `json:"channel_id"`
	AuthorID   string       `json:"author_id"`
	AuthorName string       `json:"author_name"` // denormalized for UI speed
	Content    string       `json:"content"`
	Mentions   *mention.Set `json:"mentions,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Before defines the display order: ascending CreatedAt, ties broken by ID.
// Transport arrival order is irrelevant to the final order.
func (m Message) Before(other Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}

// TypingEvent is an ephemeral broadcast; it is never persisted.
type TypingEvent struct {
	UserID   string `json:"user_id"`
	IsTyping bool   `json:"is_typing"`
}
