package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"studio-chat/internal/identity"
	"studio-chat/internal/scope"
)

// fakeSubscription and fakeTransport implement the transport contract
// in-process: publishing delivers to every live subscriber of the channel.
type fakeSubscription struct {
	channelID string
	events    chan Event
	closed    bool
}

func (s *fakeSubscription) Events() <-chan Event { return s.events }

type fakeTransport struct {
	mu         sync.Mutex
	subs       []*fakeSubscription
	dropEchoes bool
	publishErr error
}

func (t *fakeTransport) Subscribe(ctx context.Context, channelID string) (Subscription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sub := &fakeSubscription{channelID: channelID, events: make(chan Event, 64)}
	t.subs = append(t.subs, sub)
	return &fakeSubHandle{t: t, sub: sub}, nil
}

type fakeSubHandle struct {
	t   *fakeTransport
	sub *fakeSubscription
}

func (h *fakeSubHandle) Events() <-chan Event { return h.sub.events }

func (h *fakeSubHandle) Close() error {
	h.t.mu.Lock()
	defer h.t.mu.Unlock()
	if !h.sub.closed {
		h.sub.closed = true
		close(h.sub.events)
	}
	return nil
}

func (t *fakeTransport) PublishInsert(ctx context.Context, channelID string, msg Message) error {
	if t.publishErr != nil {
		return t.publishErr
	}
	if t.dropEchoes {
		return nil
	}
	t.deliver(channelID, Event{Type: EventInsert, Message: &msg})
	return nil
}

func (t *fakeTransport) PublishTyping(ctx context.Context, channelID string, ev TypingEvent) error {
	t.deliver(channelID, Event{Type: EventTyping, Typing: &ev})
	return nil
}

func (t *fakeTransport) deliver(channelID string, ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, sub := range t.subs {
		if sub.channelID == channelID && !sub.closed {
			sub.events <- ev
		}
	}
}

// emitReconnect pushes a reconnect event to all live subscribers.
func (t *fakeTransport) emitReconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, sub := range t.subs {
		if !sub.closed {
			sub.events <- Event{Type: EventReconnected}
		}
	}
}

type fakeRepo struct {
	mu        sync.Mutex
	byChannel map[string][]Message
	seq       int
	insertErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byChannel: make(map[string][]Message)}
}

func (r *fakeRepo) InsertMessage(ctx context.Context, msg Message) (Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return Message{}, r.insertErr
	}
	r.seq++
	msg.ID = fmt.Sprintf("m%04d", r.seq)
	msg.CreatedAt = time.Unix(int64(1000+r.seq), 0)
	r.byChannel[msg.ChannelID] = append(r.byChannel[msg.ChannelID], msg)
	return msg, nil
}

func (r *fakeRepo) RecentMessages(ctx context.Context, channelID string, limit int) ([]Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.byChannel[channelID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// stubResolver is a studio-style resolver over no persistence.
type stubResolver struct {
	err error
}

func (r *stubResolver) Resolve(ctx context.Context, clientID string) (scope.Scope, error) {
	if r.err != nil {
		return scope.Scope{}, r.err
	}
	return scope.Scope{ChannelID: scope.ChannelID(clientID), ClientID: clientID}, nil
}

func (r *stubResolver) AvailableClients(ctx context.Context) ([]scope.Client, error) {
	return nil, nil
}

func (r *stubResolver) CanSelectClient() bool { return true }

func (r *stubResolver) Suggestions(ctx context.Context, kind scope.SuggestionKind, query string) ([]scope.SuggestionItem, error) {
	return nil, nil
}

func newTestSession(t *testing.T, transport Transport, repo MessageRepo, opts SessionOptions) *Session {
	t.Helper()
	ident := identity.Identity{
		UserID:         "u1",
		DisplayName:    "Ana",
		Role:           identity.RoleStudioMember,
		IsStudioMember: true,
	}
	s := NewSession(ident, &stubResolver{}, repo, transport, zap.NewNop(), opts)
	t.Cleanup(s.Close)
	return s
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func TestSendThenReceiveExactlyOnce(t *testing.T) {
	transport := &fakeTransport{}
	s := newTestSession(t, transport, newFakeRepo(), SessionOptions{})
	require.NoError(t, s.Start(context.Background(), ""))

	stored, err := s.SendMessage(context.Background(), "hi @Bob")
	require.NoError(t, err)
	require.NotEmpty(t, stored.ID)

	// Not rendered optimistically: the message lands via the echo only.
	waitFor(t, func() bool { return len(s.Messages()) == 1 })

	got := s.Messages()[0]
	assert.Equal(t, "hi @Bob", got.Content)
	require.NotNil(t, got.Mentions)
	assert.Equal(t, []string{"Bob"}, got.Mentions.Users)

	// Give a stray duplicate no chance to double up.
	transport.deliver(s.ChannelID(), Event{Type: EventInsert, Message: &stored})
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, s.Messages(), 1)
}

func TestFailedWriteLeavesNoLocalArtifact(t *testing.T) {
	repo := newFakeRepo()
	repo.insertErr = errors.New("permission denied")
	s := newTestSession(t, &fakeTransport{}, repo, SessionOptions{})
	require.NoError(t, s.Start(context.Background(), ""))

	_, err := s.SendMessage(context.Background(), "will not land")
	assert.Error(t, err)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, s.Messages())
}

func TestEmptySendIsRejected(t *testing.T) {
	s := newTestSession(t, &fakeTransport{}, newFakeRepo(), SessionOptions{})
	require.NoError(t, s.Start(context.Background(), ""))

	_, err := s.SendMessage(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestTypingSetSemantics(t *testing.T) {
	transport := &fakeTransport{}
	s := newTestSession(t, transport, newFakeRepo(), SessionOptions{})
	require.NoError(t, s.Start(context.Background(), ""))
	channel := s.ChannelID()

	typing := func(userID string, on bool) {
		transport.deliver(channel, Event{Type: EventTyping, Typing: &TypingEvent{UserID: userID, IsTyping: on}})
	}

	// true twice is still one membership, not a count of two.
	typing("u2", true)
	typing("u2", true)
	waitFor(t, func() bool { return len(s.Typing()) == 1 })
	assert.Equal(t, []string{"u2"}, s.Typing())

	typing("u2", false)
	waitFor(t, func() bool { return len(s.Typing()) == 0 })
}

func TestPendingSendTimesOutWithoutEcho(t *testing.T) {
	transport := &fakeTransport{dropEchoes: true}
	var (
		mu     sync.Mutex
		failed []string
	)
	s := newTestSession(t, transport, newFakeRepo(), SessionOptions{
		EchoTimeout: 30 * time.Millisecond,
		OnSendFailed: func(messageID string) {
			mu.Lock()
			failed = append(failed, messageID)
			mu.Unlock()
		},
	})
	require.NoError(t, s.Start(context.Background(), ""))

	stored, err := s.SendMessage(context.Background(), "lost in transit")
	require.NoError(t, err)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(failed) == 1 && failed[0] == stored.ID
	})
	assert.Empty(t, s.Messages())
}

func TestEchoBeforeTimeoutConfirms(t *testing.T) {
	transport := &fakeTransport{}
	var (
		mu     sync.Mutex
		failed []string
	)
	s := newTestSession(t, transport, newFakeRepo(), SessionOptions{
		EchoTimeout: 40 * time.Millisecond,
		OnSendFailed: func(messageID string) {
			mu.Lock()
			failed = append(failed, messageID)
			mu.Unlock()
		},
	})
	require.NoError(t, s.Start(context.Background(), ""))

	_, err := s.SendMessage(context.Background(), "arrives fine")
	require.NoError(t, err)
	waitFor(t, func() bool { return len(s.Messages()) == 1 })

	time.Sleep(80 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, failed)
}

func TestChannelSwitchClearsStore(t *testing.T) {
	transport := &fakeTransport{}
	repo := newFakeRepo()
	s := newTestSession(t, transport, repo, SessionOptions{})
	require.NoError(t, s.Start(context.Background(), ""))
	assert.Equal(t, "chat:general", s.ChannelID())

	_, err := s.SendMessage(context.Background(), "general only")
	require.NoError(t, err)
	waitFor(t, func() bool { return len(s.Messages()) == 1 })

	require.NoError(t, s.SetSelectedClient(context.Background(), "abc"))
	assert.Equal(t, "chat:client-abc", s.ChannelID())
	assert.Empty(t, s.Messages())

	// Events on the old channel never reach the new store.
	transport.deliver("chat:general", Event{Type: EventInsert, Message: &Message{
		ID: "stale", ChannelID: "chat:general", Content: "stale", CreatedAt: time.Unix(2000, 0),
	}})
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, s.Messages())

	_, err = s.SendMessage(context.Background(), "client channel")
	require.NoError(t, err)
	waitFor(t, func() bool { return len(s.Messages()) == 1 })
	assert.Equal(t, "client channel", s.Messages()[0].Content)
}

func TestScopeFailureKeepsPreviousChannel(t *testing.T) {
	transport := &fakeTransport{}
	ident := identity.Identity{UserID: "u1", DisplayName: "Ana", Role: identity.RoleStudioMember, IsStudioMember: true}
	resolver := &stubResolver{}
	s := NewSession(ident, resolver, newFakeRepo(), transport, zap.NewNop(), SessionOptions{})
	t.Cleanup(s.Close)
	require.NoError(t, s.Start(context.Background(), "abc"))

	resolver.err = errors.New("scope query failed")
	err := s.SetSelectedClient(context.Background(), "xyz")
	assert.Error(t, err)
	assert.Equal(t, "chat:client-abc", s.ChannelID())
	assert.True(t, s.Connected())
}

func TestReconnectResyncsFromDurableStore(t *testing.T) {
	transport := &fakeTransport{}
	repo := newFakeRepo()
	s := newTestSession(t, transport, repo, SessionOptions{})
	require.NoError(t, s.Start(context.Background(), ""))

	// A message persisted while the subscription was down: no echo seen.
	missed, err := repo.InsertMessage(context.Background(), Message{
		ChannelID: "chat:general", AuthorID: "u9", AuthorName: "Bea", Content: "missed you",
	})
	require.NoError(t, err)
	assert.Empty(t, s.Messages())

	transport.emitReconnect()
	waitFor(t, func() bool { return len(s.Messages()) == 1 })
	assert.Equal(t, missed.ID, s.Messages()[0].ID)
}

func TestInitialLoadIsBounded(t *testing.T) {
	transport := &fakeTransport{}
	repo := newFakeRepo()
	for i := 0; i < 60; i++ {
		_, err := repo.InsertMessage(context.Background(), Message{
			ChannelID: "chat:general", AuthorID: "u1", AuthorName: "Ana",
			Content: fmt.Sprintf("backlog %d", i),
		})
		require.NoError(t, err)
	}

	s := newTestSession(t, transport, repo, SessionOptions{HistorySize: 50})
	require.NoError(t, s.Start(context.Background(), ""))

	waitFor(t, func() bool { return !s.Loading() })
	msgs := s.Messages()
	require.Len(t, msgs, 50)
	// The window keeps the most recent messages, ascending.
	assert.Equal(t, "backlog 10", msgs[0].Content)
	assert.Equal(t, "backlog 59", msgs[49].Content)
	assert.True(t, msgs[0].CreatedAt.Before(msgs[49].CreatedAt))
}

func TestSendAfterCloseFails(t *testing.T) {
	s := newTestSession(t, &fakeTransport{}, newFakeRepo(), SessionOptions{})
	require.NoError(t, s.Start(context.Background(), ""))

	s.Close()
	_, err := s.SendMessage(context.Background(), "too late")
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, s.SendTyping(context.Background(), true), ErrSessionClosed)
}

func TestSendTypingBroadcastsOwnID(t *testing.T) {
	transport := &fakeTransport{}
	s := newTestSession(t, transport, newFakeRepo(), SessionOptions{})
	require.NoError(t, s.Start(context.Background(), ""))

	require.NoError(t, s.SendTyping(context.Background(), true))

	// The broadcast comes back on our own subscription and lands in the set.
	waitFor(t, func() bool { return len(s.Typing()) == 1 })
	assert.Equal(t, []string{"u1"}, s.Typing())

	require.NoError(t, s.SendTyping(context.Background(), false))
	waitFor(t, func() bool { return len(s.Typing()) == 0 })
}
