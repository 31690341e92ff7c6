package eventbus

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fluxgraph/core/observe"
)

// ErrBusNotListening is returned by Publish before StartListening has been
// called (or after StopListening).
var ErrBusNotListening = errors.New("eventbus: bus is not listening")

// defaultQueueBuffer bounds how many pending jobs a single channel's
// serial queue holds before Publish starts waiting (and eventually
// dropping, per HandlerDropTimeout).
const defaultQueueBuffer = 256

// InProcessBusConfig configures the in-process Bus.
type InProcessBusConfig struct {
	// MaxWorkers bounds how many handler invocations may run concurrently
	// across all channels at once. Default: 64
	MaxWorkers int

	// HandlerDropTimeout bounds how long Publish waits for room in a
	// channel's queue before giving up on that subscriber and logging a
	// warning, rather than blocking the publisher indefinitely.
	// Default: 2s
	HandlerDropTimeout time.Duration

	// Logger receives Warn logs for dropped jobs and recovered panics. A
	// no-op logger is used if nil.
	Logger observe.Logger
}

// InProcessBus is the default, in-memory Bus implementation. Each channel
// gets its own single-goroutine FIFO queue (so deliveries on one channel
// are strictly ordered), while a shared semaphore caps the number of
// handler invocations running concurrently across every channel.
type InProcessBus struct {
	cfg InProcessBusConfig

	mu          sync.Mutex
	subscribers map[string][]namedHandler
	queues      map[string]*channelQueue
	listening   bool
	closed      bool

	sem chan struct{}
}

type namedHandler struct {
	id      string
	handler Handler
}

type job struct {
	ctx     context.Context
	event   Event
	handler Handler
}

type channelQueue struct {
	jobs chan job
}

// NewInProcessBus creates a new in-process Bus. Call StartListening before
// the first Publish.
func NewInProcessBus(cfg InProcessBusConfig) *InProcessBus {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 64
	}
	if cfg.HandlerDropTimeout <= 0 {
		cfg.HandlerDropTimeout = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = noopEventLogger{}
	}

	return &InProcessBus{
		cfg:         cfg,
		subscribers: make(map[string][]namedHandler),
		queues:      make(map[string]*channelQueue),
		sem:         make(chan struct{}, cfg.MaxWorkers),
	}
}

// StartListening marks the bus ready to accept Publish calls.
func (b *InProcessBus) StartListening(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}
	b.listening = true
	return nil
}

// StopListening stops accepting new Publish calls without tearing down
// subscriptions; StartListening can be called again afterward.
func (b *InProcessBus) StopListening() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listening = false
	return nil
}

// Subscribe implements Bus.
func (b *InProcessBus) Subscribe(channel string, handler Handler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return Subscription{}, ErrBusClosed
	}

	id := uuid.NewString()
	b.subscribers[channel] = append(b.subscribers[channel], namedHandler{id: id, handler: handler})
	return Subscription{id: id, channel: channel}, nil
}

// PatternSubscribe is not supported by the in-process backend.
func (b *InProcessBus) PatternSubscribe(_ string, _ Handler) (Subscription, error) {
	return Subscription{}, ErrPatternSubscribeUnsupported
}

// Unsubscribe implements Bus. Idempotent.
func (b *InProcessBus) Unsubscribe(sub Subscription) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	handlers := b.subscribers[sub.channel]
	for i, h := range handlers {
		if h.id == sub.id {
			b.subscribers[sub.channel] = append(handlers[:i], handlers[i+1:]...)
			break
		}
	}
	return nil
}

// Publish implements Bus. It fans the event out to every subscriber of
// channel that was registered at the moment of the call.
func (b *InProcessBus) Publish(ctx context.Context, channel string, payload any) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBusClosed
	}
	if !b.listening {
		b.mu.Unlock()
		return ErrBusNotListening
	}

	handlers := make([]namedHandler, len(b.subscribers[channel]))
	copy(handlers, b.subscribers[channel])
	queue := b.queueForLocked(channel)
	b.mu.Unlock()

	event := Event{Channel: channel, Payload: payload}

	for _, h := range handlers {
		j := job{ctx: ctx, event: event, handler: h.handler}
		select {
		case queue.jobs <- j:
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.cfg.HandlerDropTimeout):
			b.cfg.Logger.Warn(ctx, "eventbus: dropping handler job, queue full past drop timeout",
				observe.Field{Key: "channel", Value: channel})
		}
	}
	return nil
}

// queueForLocked returns channel's queue, creating (and starting) it if
// this is the first Publish/Subscribe for that channel. Caller must hold
// b.mu.
func (b *InProcessBus) queueForLocked(channel string) *channelQueue {
	if q, ok := b.queues[channel]; ok {
		return q
	}

	q := &channelQueue{jobs: make(chan job, defaultQueueBuffer)}
	b.queues[channel] = q
	go b.drain(q)
	return q
}

// drain processes channel's queue strictly in order, one job at a time,
// while borrowing a slot from the shared worker semaphore so that total
// concurrent handler execution across every channel stays bounded.
func (b *InProcessBus) drain(q *channelQueue) {
	for j := range q.jobs {
		b.sem <- struct{}{}
		b.execute(j)
		<-b.sem
	}
}

func (b *InProcessBus) execute(j job) {
	defer func() {
		if r := recover(); r != nil {
			b.cfg.Logger.Warn(j.ctx, "eventbus: recovered from handler panic",
				observe.Field{Key: "channel", Value: j.event.Channel},
				observe.Field{Key: "panic", Value: fmt.Sprintf("%v", r)},
				observe.Field{Key: "stack", Value: string(debug.Stack())})
		}
	}()

	if err := j.handler(j.ctx, j.event); err != nil {
		b.cfg.Logger.Warn(j.ctx, "eventbus: handler returned error",
			observe.Field{Key: "channel", Value: j.event.Channel},
			observe.Field{Key: "error", Value: err.Error()})
	}
}

// Close releases the bus's queues. Idempotent.
func (b *InProcessBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.listening = false
	for _, q := range b.queues {
		close(q.jobs)
	}
	return nil
}

var _ Bus = (*InProcessBus)(nil)

// noopEventLogger satisfies observe.Logger without importing a concrete
// logger implementation, for callers that don't wire one in.
type noopEventLogger struct{}

func (noopEventLogger) Info(context.Context, string, ...observe.Field)  {}
func (noopEventLogger) Warn(context.Context, string, ...observe.Field)  {}
func (noopEventLogger) Error(context.Context, string, ...observe.Field) {}
func (noopEventLogger) Debug(context.Context, string, ...observe.Field) {}
func (noopEventLogger) WithNode(observe.NodeMeta) observe.Logger        { return noopEventLogger{} }
func (noopEventLogger) With(...observe.Field) observe.Logger            { return noopEventLogger{} }

var _ observe.Logger = noopEventLogger{}
