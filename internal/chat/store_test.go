package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func msgAt(id string, at time.Time) Message {
	return Message{ID: id, ChannelID: "chat:general", Content: "m-" + id, CreatedAt: at}
}

func TestStoreAppendIsIdempotent(t *testing.T) {
	s := NewStore("chat:general")
	m := msgAt("a", time.Unix(100, 0))

	assert.True(t, s.Append(m))
	assert.False(t, s.Append(m))
	assert.Equal(t, 1, s.Len())

	// Same ID with different payload is still a duplicate.
	dup := m
	dup.Content = "changed"
	assert.False(t, s.Append(dup))
	assert.Equal(t, []Message{m}, s.Messages())
}

func TestStoreOrdersByCreatedAt(t *testing.T) {
	base := time.Unix(1000, 0)
	a := msgAt("a", base.Add(1*time.Second))
	b := msgAt("b", base.Add(2*time.Second))
	c := msgAt("c", base.Add(3*time.Second))

	// Whatever the arrival order, display order is creation order.
	arrivals := [][]Message{
		{a, b, c},
		{c, b, a},
		{b, c, a},
	}
	for _, order := range arrivals {
		s := NewStore("chat:general")
		for _, m := range order {
			s.Append(m)
		}
		got := s.Messages()
		assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].ID, got[1].ID, got[2].ID})
	}
}

func TestStoreBreaksTiesByID(t *testing.T) {
	at := time.Unix(1000, 0)
	s := NewStore("chat:general")
	s.Append(msgAt("b", at))
	s.Append(msgAt("a", at))

	got := s.Messages()
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestStoreResetClearsEverything(t *testing.T) {
	s := NewStore("chat:general")
	s.Append(msgAt("a", time.Unix(100, 0)))

	s.Reset("chat:client-abc")
	assert.Equal(t, "chat:client-abc", s.ChannelID())
	assert.Zero(t, s.Len())

	// IDs from the old channel are appendable again after reset.
	assert.True(t, s.Append(msgAt("a", time.Unix(100, 0))))
}

func TestStoreMessagesReturnsCopy(t *testing.T) {
	s := NewStore("chat:general")
	s.Append(msgAt("a", time.Unix(100, 0)))

	got := s.Messages()
	got[0].Content = "mutated"
	assert.Equal(t, "m-a", s.Messages()[0].Content)
}
