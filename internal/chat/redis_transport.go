package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	topicPrefix      = "messages:"
	reconnectBackoff = time.Second
)

// envelope is the wire format on the pub/sub topic. One topic per channel;
// insert and typing events share it, distinguished by the event name.
type envelope struct {
	Event   EventType    `json:"event"`
	Message *Message     `json:"message,omitempty"`
	Typing  *TypingEvent `json:"typing,omitempty"`
}

// RedisTransport implements Transport over Redis pub/sub, one topic per
// channel identifier.
type RedisTransport struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewRedisTransport(rdb *redis.Client, log *zap.Logger) *RedisTransport {
	return &RedisTransport{rdb: rdb, log: log.With(zap.String("component", "transport"))}
}

func topic(channelID string) string { return topicPrefix + channelID }

func (t *RedisTransport) PublishInsert(ctx context.Context, channelID string, msg Message) error {
	return t.publish(ctx, channelID, envelope{Event: EventInsert, Message: &msg})
}

func (t *RedisTransport) PublishTyping(ctx context.Context, channelID string, ev TypingEvent) error {
	return t.publish(ctx, channelID, envelope{Event: EventTyping, Typing: &ev})
}

func (t *RedisTransport) publish(ctx context.Context, channelID string, env envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return t.rdb.Publish(ctx, topic(channelID), payload).Err()
}

// Subscribe opens a persistent subscription for one channel. Delivery is
// at-least-once from the caller's point of view: after a connection drop the
// loop resubscribes and emits EventReconnected so the caller can re-sync.
func (t *RedisTransport) Subscribe(ctx context.Context, channelID string) (Subscription, error) {
	pubsub := t.rdb.Subscribe(ctx, topic(channelID))
	// Confirm the subscription before handing it out.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
	go sub.loop(ctx, t.log.With(zap.String("channel", channelID)))
	return sub, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	events chan Event
	done   chan struct{}
	once   sync.Once
}

func (s *redisSubscription) Events() <-chan Event { return s.events }

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}

func (s *redisSubscription) loop(ctx context.Context, log *zap.Logger) {
	defer close(s.events)

	for {
		msg, err := s.pubsub.ReceiveMessage(ctx)
		if err != nil {
			select {
			case <-s.done:
				return
			case <-ctx.Done():
				return
			default:
			}

			// The client reconnects under the hood; we may have missed
			// events in between, so tell the subscriber to re-sync.
			log.Warn("subscription interrupted, resyncing", zap.Error(err))
			time.Sleep(reconnectBackoff)
			s.deliver(Event{Type: EventReconnected})
			continue
		}

		var env envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			log.Warn("dropping malformed event payload", zap.Error(err))
			continue
		}

		switch env.Event {
		case EventInsert:
			if env.Message != nil {
				s.deliver(Event{Type: EventInsert, Message: env.Message})
			}
		case EventTyping:
			if env.Typing != nil {
				s.deliver(Event{Type: EventTyping, Typing: env.Typing})
			}
		default:
			log.Warn("dropping unknown event", zap.String("event", string(env.Event)))
		}
	}
}

func (s *redisSubscription) deliver(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

var _ Transport = (*RedisTransport)(nil)
