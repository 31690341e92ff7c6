package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fluxgraph/core/observe"
	"github.com/fluxgraph/core/wferr"
)

// RedisBus is the network-attached Bus implementation, sharing the same
// *redis.Client connection the state store's RedisStore uses. It delivers
// at-least-once during steady state: a message published while no
// listener goroutine is running is lost, matching Redis Pub/Sub's own
// fire-and-forget semantics.
type RedisBus struct {
	client *redis.Client
	logger observe.Logger

	mu          sync.Mutex
	subs        map[string][]namedHandler // channel -> handlers
	patternSubs map[string][]namedHandler // pattern -> handlers
	pubsub      *redis.PubSub
	cancel      context.CancelFunc
	listening   bool
	closed      bool
}

// NewRedisBus wraps an already-connected client (see state.Connect).
// logger may be nil, in which case delivery errors are not logged.
func NewRedisBus(client *redis.Client, logger observe.Logger) *RedisBus {
	if logger == nil {
		logger = noopEventLogger{}
	}
	return &RedisBus{
		client:      client,
		logger:      logger,
		subs:        make(map[string][]namedHandler),
		patternSubs: make(map[string][]namedHandler),
	}
}

// StartListening begins the background goroutine that translates incoming
// Redis Pub/Sub messages into local Handler invocations.
func (b *RedisBus) StartListening(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	if b.listening {
		return nil
	}

	b.pubsub = b.client.Subscribe(ctx)
	for channel := range b.subs {
		if err := b.pubsub.Subscribe(ctx, channel); err != nil {
			return wferr.Wrap(wferr.KindEventBackendError, err, "eventbus: redis SUBSCRIBE failed")
		}
	}
	for pattern := range b.patternSubs {
		if err := b.pubsub.PSubscribe(ctx, pattern); err != nil {
			return wferr.Wrap(wferr.KindEventBackendError, err, "eventbus: redis PSUBSCRIBE failed")
		}
	}

	listenCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.listening = true

	go b.listen(listenCtx)
	return nil
}

func (b *RedisBus) listen(ctx context.Context) {
	ch := b.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.dispatch(ctx, msg)
		}
	}
}

func (b *RedisBus) dispatch(ctx context.Context, msg *redis.Message) {
	var payload any
	if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
		b.logger.Warn(ctx, "eventbus: failed to decode redis message payload",
			observe.Field{Key: "channel", Value: msg.Channel},
			observe.Field{Key: "error", Value: err.Error()})
		return
	}
	event := Event{Channel: msg.Channel, Payload: payload}

	b.mu.Lock()
	handlers := make([]namedHandler, 0, len(b.subs[msg.Channel])+len(b.patternSubs[msg.Pattern]))
	handlers = append(handlers, b.subs[msg.Channel]...)
	if msg.Pattern != "" {
		handlers = append(handlers, b.patternSubs[msg.Pattern]...)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		b.invoke(ctx, h.handler, event)
	}
}

func (b *RedisBus) invoke(ctx context.Context, handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn(ctx, "eventbus: recovered from handler panic",
				observe.Field{Key: "channel", Value: event.Channel},
				observe.Field{Key: "panic", Value: fmt.Sprintf("%v", r)})
		}
	}()

	if err := handler(ctx, event); err != nil {
		b.logger.Warn(ctx, "eventbus: handler returned error",
			observe.Field{Key: "channel", Value: event.Channel},
			observe.Field{Key: "error", Value: err.Error()})
	}
}

// StopListening stops the background listener goroutine without
// forgetting subscriptions; StartListening resumes delivery.
func (b *RedisBus) StopListening() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	b.listening = false
	return nil
}

// Publish implements Bus, JSON-encoding payload onto the Redis channel.
func (b *RedisBus) Publish(ctx context.Context, channel string, payload any) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrBusClosed
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("eventbus: failed to encode payload: %w", err)
	}

	if err := b.client.Publish(ctx, channel, raw).Err(); err != nil {
		return wferr.Wrap(wferr.KindEventBackendError, err, "eventbus: redis PUBLISH failed")
	}
	return nil
}

// Subscribe implements Bus.
func (b *RedisBus) Subscribe(channel string, handler Handler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return Subscription{}, ErrBusClosed
	}

	id := uuid.NewString()
	_, existed := b.subs[channel]
	b.subs[channel] = append(b.subs[channel], namedHandler{id: id, handler: handler})

	if b.listening && !existed {
		if err := b.pubsub.Subscribe(context.Background(), channel); err != nil {
			return Subscription{}, wferr.Wrap(wferr.KindEventBackendError, err, "eventbus: redis SUBSCRIBE failed")
		}
	}
	return Subscription{id: id, channel: channel}, nil
}

// PatternSubscribe implements Bus using Redis PSUBSCRIBE.
func (b *RedisBus) PatternSubscribe(pattern string, handler Handler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return Subscription{}, ErrBusClosed
	}

	id := uuid.NewString()
	_, existed := b.patternSubs[pattern]
	b.patternSubs[pattern] = append(b.patternSubs[pattern], namedHandler{id: id, handler: handler})

	if b.listening && !existed {
		if err := b.pubsub.PSubscribe(context.Background(), pattern); err != nil {
			return Subscription{}, wferr.Wrap(wferr.KindEventBackendError, err, "eventbus: redis PSUBSCRIBE failed")
		}
	}
	return Subscription{id: id, channel: pattern}, nil
}

// Unsubscribe implements Bus. Idempotent.
func (b *RedisBus) Unsubscribe(sub Subscription) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if removeHandler(b.subs, sub) {
		if b.listening && len(b.subs[sub.channel]) == 0 {
			_ = b.pubsub.Unsubscribe(context.Background(), sub.channel)
		}
		return nil
	}
	if removeHandler(b.patternSubs, sub) {
		if b.listening && len(b.patternSubs[sub.channel]) == 0 {
			_ = b.pubsub.PUnsubscribe(context.Background(), sub.channel)
		}
	}
	return nil
}

func removeHandler(m map[string][]namedHandler, sub Subscription) bool {
	handlers, ok := m[sub.channel]
	if !ok {
		return false
	}
	for i, h := range handlers {
		if h.id == sub.id {
			m[sub.channel] = append(handlers[:i], handlers[i+1:]...)
			return true
		}
	}
	return false
}

// Close implements Bus, stopping the listener and closing the Redis
// subscription (not the shared client, which the state store may still
// be using).
func (b *RedisBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if b.cancel != nil {
		b.cancel()
	}
	if b.pubsub != nil {
		return b.pubsub.Close()
	}
	return nil
}

var _ Bus = (*RedisBus)(nil)
