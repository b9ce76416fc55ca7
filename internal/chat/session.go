package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"studio-chat/internal/identity"
	"studio-chat/internal/mention"
	"studio-chat/internal/scope"
)

const (
	// DefaultHistorySize bounds the initial message window per channel.
	// Unbounded history is a defect: memory and fetch cost must stay flat.
	DefaultHistorySize = 50
	// DefaultEchoTimeout bounds how long a send may stay pending before it
	// is reported as failed.
	DefaultEchoTimeout = 10 * time.Second
)

var (
	// ErrEmptyMessage is returned for whitespace-only sends.
	ErrEmptyMessage = errors.New("empty message")
	// ErrSessionClosed is returned once Close has been called.
	ErrSessionClosed = errors.New("session closed")
)

// SessionOptions tunes one chat session.
type SessionOptions struct {
	HistorySize int
	EchoTimeout time.Duration
	// OnEvent is invoked (outside the session lock) after a live event
	// changed session state. Used by the websocket layer to push updates.
	OnEvent func(Event)
	// OnSendFailed is invoked when a send saw no echo within EchoTimeout.
	OnSendFailed func(messageID string)
}

// Session is the realtime mention-aware chat engine for one user on one
// channel at a time. It owns its message store and typing set exclusively;
// sends go through the durable repository and only land in the local store
// via the subscription's echo, never optimistically.
type Session struct {
	ident     identity.Identity
	resolver  scope.Resolver
	repo      MessageRepo
	transport Transport
	log       *zap.Logger
	opts      SessionOptions
	pending   *pendingTracker

	ctx    context.Context
	cancel context.CancelFunc

	// switchMu serializes channel switches end to end so a stale
	// subscription can never feed a newer channel's store.
	switchMu sync.Mutex

	mu        sync.Mutex
	scope     scope.Scope
	store     *Store
	typing    map[string]struct{}
	sub       Subscription
	loading   bool
	connected bool
	closed    bool
}

func NewSession(ident identity.Identity, resolver scope.Resolver, repo MessageRepo, transport Transport, log *zap.Logger, opts SessionOptions) *Session {
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultHistorySize
	}
	if opts.EchoTimeout <= 0 {
		opts.EchoTimeout = DefaultEchoTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ident:     ident,
		resolver:  resolver,
		repo:      repo,
		transport: transport,
		log:       log.With(zap.String("component", "session"), zap.String("user", ident.UserID)),
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
		store:     NewStore(""),
		typing:    make(map[string]struct{}),
	}
	s.pending = newPendingTracker(opts.EchoTimeout, func(messageID string) {
		s.log.Warn("send saw no echo before timeout", zap.String("message_id", messageID))
		if opts.OnSendFailed != nil {
			opts.OnSendFailed(messageID)
		}
	})
	return s
}

// Start resolves the initial scope and opens the channel. For client-role
// identities the requested client is ignored by the resolver.
func (s *Session) Start(ctx context.Context, requestedClientID string) error {
	return s.switchScope(ctx, requestedClientID)
}

// SetSelectedClient switches the session to another client's channel (or
// the general channel for ""). On resolution failure the previous scope and
// subscription stay in place.
func (s *Session) SetSelectedClient(ctx context.Context, clientID string) error {
	return s.switchScope(ctx, clientID)
}

func (s *Session) switchScope(ctx context.Context, requestedClientID string) error {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.mu.Unlock()

	sc, err := s.resolver.Resolve(ctx, requestedClientID)
	if err != nil {
		// Previous scope retained: stale-but-consistent beats wider-or-empty.
		s.log.Warn("scope resolution failed, keeping previous scope", zap.Error(err))
		return err
	}

	s.mu.Lock()
	sameChannel := s.sub != nil && sc.ChannelID == s.scope.ChannelID
	if sameChannel {
		// Same channel, refreshed entities: supersede the scope wholesale.
		s.scope = sc
		s.mu.Unlock()
		return nil
	}
	oldSub := s.sub
	s.sub = nil
	s.connected = false
	s.mu.Unlock()

	// Tear down the old subscription before the new one exists.
	if oldSub != nil {
		oldSub.Close()
	}

	sub, err := s.transport.Subscribe(s.ctx, sc.ChannelID)
	if err != nil {
		s.log.Error("subscribe failed", zap.String("channel", sc.ChannelID), zap.Error(err))
		return fmt.Errorf("subscribe %s: %w", sc.ChannelID, err)
	}

	s.mu.Lock()
	s.scope = sc
	s.store.Reset(sc.ChannelID)
	s.typing = make(map[string]struct{})
	s.sub = sub
	s.connected = true
	s.loading = true
	s.mu.Unlock()

	go s.eventLoop(sub)

	// Initial load after subscribing: anything delivered in between is
	// deduplicated by the store.
	if err := s.loadInitial(ctx, sub, sc.ChannelID); err != nil {
		s.log.Warn("initial message load failed", zap.String("channel", sc.ChannelID), zap.Error(err))
		return err
	}
	return nil
}

func (s *Session) loadInitial(ctx context.Context, sub Subscription, channelID string) error {
	msgs, err := s.repo.RecentMessages(ctx, channelID, s.opts.HistorySize)

	s.mu.Lock()
	if s.sub == sub {
		for _, m := range msgs {
			s.store.Append(m)
		}
		s.loading = false
	}
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("load messages for %s: %w", channelID, err)
	}
	return nil
}

func (s *Session) eventLoop(sub Subscription) {
	for ev := range sub.Events() {
		switch ev.Type {
		case EventInsert:
			if ev.Message != nil {
				s.applyInsert(sub, *ev.Message)
			}
		case EventTyping:
			if ev.Typing != nil {
				s.applyTyping(sub, *ev.Typing)
			}
		case EventReconnected:
			s.resync(sub)
		}
	}

	s.mu.Lock()
	if s.sub == sub {
		s.connected = false
	}
	s.mu.Unlock()
}

func (s *Session) applyInsert(sub Subscription, msg Message) {
	s.mu.Lock()
	if s.sub != sub || msg.ChannelID != s.store.ChannelID() {
		// Stale subscription or cross-channel event; never bleeds through.
		s.mu.Unlock()
		return
	}
	added := s.store.Append(msg)
	s.mu.Unlock()

	s.pending.Confirm(msg.ID)

	if added {
		s.emit(Event{Type: EventInsert, Message: &msg})
	}
}

func (s *Session) applyTyping(sub Subscription, ev TypingEvent) {
	s.mu.Lock()
	if s.sub != sub {
		s.mu.Unlock()
		return
	}
	// Membership set semantics, not a counter.
	if ev.IsTyping {
		s.typing[ev.UserID] = struct{}{}
	} else {
		delete(s.typing, ev.UserID)
	}
	s.mu.Unlock()

	s.emit(Event{Type: EventTyping, Typing: &ev})
}

// resync re-runs the initial load after a transport reconnect; missed
// events are recovered from the durable store, duplicates are dropped by
// the store's idempotent append.
func (s *Session) resync(sub Subscription) {
	s.mu.Lock()
	channelID := s.store.ChannelID()
	current := s.sub == sub
	s.mu.Unlock()
	if !current {
		return
	}

	if err := s.loadInitial(s.ctx, sub, channelID); err != nil {
		s.log.Warn("resync failed", zap.Error(err))
		return
	}
	s.emit(Event{Type: EventReconnected})
}

func (s *Session) emit(ev Event) {
	if s.opts.OnEvent != nil {
		s.opts.OnEvent(ev)
	}
}

// SendMessage parses mentions out of text, writes through the durable
// store, and publishes the committed record. The local store is NOT updated
// here: the message appears only via the subscription echo, so a failed
// write leaves no ghost message behind. Returns the stored message.
func (s *Session) SendMessage(ctx context.Context, text string) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Message{}, ErrSessionClosed
	}
	channelID := s.scope.ChannelID
	s.mu.Unlock()
	if channelID == "" {
		return Message{}, errors.New("no channel resolved")
	}

	var mentions *mention.Set
	if set := mention.Parse(text); !set.Empty() {
		mentions = &set
	}

	msg := Message{
		ChannelID:  channelID,
		AuthorID:   s.ident.UserID,
		AuthorName: s.ident.DisplayName,
		Content:    text,
		Mentions:   mentions,
	}

	stored, err := s.repo.InsertMessage(ctx, msg)
	if err != nil {
		return Message{}, fmt.Errorf("send message: %w", err)
	}

	s.pending.Track(stored.ID)

	if err := s.transport.PublishInsert(ctx, channelID, stored); err != nil {
		// The write is durable; only the broadcast failed. The pending
		// tracker will report the missing echo, and the message surfaces
		// on the next resync.
		s.log.Warn("publish failed after durable write", zap.String("message_id", stored.ID), zap.Error(err))
		return stored, fmt.Errorf("publish message: %w", err)
	}
	return stored, nil
}

// SendTyping broadcasts an ephemeral typing event. The local typing set is
// only ever updated from received broadcasts.
func (s *Session) SendTyping(ctx context.Context, isTyping bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	channelID := s.scope.ChannelID
	s.mu.Unlock()
	if channelID == "" {
		return nil
	}

	return s.transport.PublishTyping(ctx, channelID, TypingEvent{
		UserID:   s.ident.UserID,
		IsTyping: isTyping,
	})
}

// Suggestions resolves mention candidates; visibility is derived from the
// session's identity server-side.
func (s *Session) Suggestions(ctx context.Context, kind scope.SuggestionKind, query string) ([]scope.SuggestionItem, error) {
	return s.resolver.Suggestions(ctx, kind, query)
}

func (s *Session) AvailableClients(ctx context.Context) ([]scope.Client, error) {
	return s.resolver.AvailableClients(ctx)
}

func (s *Session) CanSelectClient() bool { return s.resolver.CanSelectClient() }

func (s *Session) CurrentUser() identity.Identity { return s.ident }

func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Messages()
}

func (s *Session) ChannelID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope.ChannelID
}

func (s *Session) Scope() scope.Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope
}

func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Typing returns the user IDs currently typing, sorted for determinism.
func (s *Session) Typing() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.typing))
	for id := range s.typing {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Close tears down the subscription and drops pending sends. Idempotent.
func (s *Session) Close() {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	sub := s.sub
	s.sub = nil
	s.connected = false
	s.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
	s.pending.Stop()
	s.cancel()
}
