package chat

import "sort"

// Store is the in-memory ordered message log for one channel. It is owned by
// a single session and is not safe for concurrent use on its own; the
// session serializes access. Races between remote writers are handled by
// ordering and idempotence here, not by locks.
type Store struct {
	channelID string
	seen      map[string]struct{}
	messages  []Message
}

func NewStore(channelID string) *Store {
	return &Store{
		channelID: channelID,
		seen:      make(map[string]struct{}),
	}
}

func (s *Store) ChannelID() string { return s.channelID }

// Append inserts a message at its ordered position. Appending an ID already
// in the store is a no-op, which makes at-least-once delivery safe. Returns
// whether the message was actually added.
func (s *Store) Append(msg Message) bool {
	if _, ok := s.seen[msg.ID]; ok {
		return false
	}
	s.seen[msg.ID] = struct{}{}

	i := sort.Search(len(s.messages), func(i int) bool {
		return msg.Before(s.messages[i])
	})
	s.messages = append(s.messages, Message{})
	copy(s.messages[i+1:], s.messages[i:])
	s.messages[i] = msg
	return true
}

// Messages returns a copy of the log in display order.
func (s *Store) Messages() []Message {
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Store) Len() int { return len(s.messages) }

// Reset clears the log for a channel switch. No cross-channel bleed: the old
// channel's messages are discarded, not merged.
func (s *Store) Reset(channelID string) {
	s.channelID = channelID
	s.seen = make(map[string]struct{})
	s.messages = nil
}
