package chat

import "context"

// EventType discriminates events delivered on a channel subscription.
type EventType string

const (
	// EventInsert carries a newly persisted message, including the echo of
	// the subscriber's own sends.
	EventInsert EventType = "insert"
	// EventTyping carries an ephemeral typing broadcast.
	EventTyping EventType = "typing"
	// EventReconnected signals the transport dropped and resubscribed;
	// events may have been missed and the caller must re-sync.
	EventReconnected EventType = "reconnected"
)

// Event is one normalized occurrence on a subscribed channel.
type Event struct {
	Type    EventType
	Message *Message
	Typing  *TypingEvent
}

// Subscription is a live event feed for one channel. Close is idempotent and
// causes Events to be closed.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// Transport is the publish/subscribe collaborator of the chat engine. It is
// constructed once and injected; the engine never reaches for an ambient
// client. Publishing a message does NOT imply the durable write: callers
// persist first and publish the persisted record, so the echo a subscriber
// receives always describes a committed message.
type Transport interface {
	Subscribe(ctx context.Context, channelID string) (Subscription, error)
	PublishInsert(ctx context.Context, channelID string, msg Message) error
	PublishTyping(ctx context.Context, channelID string, ev TypingEvent) error
}
