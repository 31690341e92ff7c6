package eventbus

import (
	"context"
	"errors"
)

// ErrPatternSubscribeUnsupported is returned by backends that cannot
// support glob subscriptions (the in-process backend).
var ErrPatternSubscribeUnsupported = errors.New("eventbus: pattern subscribe not supported by this backend")

// ErrBusClosed is returned by any operation attempted after Close.
var ErrBusClosed = errors.New("eventbus: bus is closed")

// Event is a single message delivered to subscribers of Channel.
type Event struct {
	Channel string
	Payload any
}

// Handler processes a single delivered Event. A Handler that panics is
// recovered by the bus and logged; it never crashes the publisher or
// other handlers.
type Handler func(ctx context.Context, event Event) error

// Subscription identifies a registered Handler so it can later be removed
// via Unsubscribe.
type Subscription struct {
	id      string
	channel string
}

// ID returns the subscription's unique identifier.
func (s Subscription) ID() string { return s.id }

// Bus is the shared publish/subscribe primitive used for run-lifecycle
// events (execution_started, node_started, circuit_opened, ...) and
// consumed by the WebSocket broadcaster.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Isolation: a panicking or erroring Handler must not prevent other
//     handlers from running and must not propagate back into Publish.
//   - Delivery: fire-and-forget to the subscribers present at the moment
//     of Publish; no ordering guarantee across channels.
type Bus interface {
	// Publish delivers payload to every current subscriber of channel.
	Publish(ctx context.Context, channel string, payload any) error

	// Subscribe registers handler for exact-match deliveries on channel.
	Subscribe(channel string, handler Handler) (Subscription, error)

	// Unsubscribe removes a previously registered subscription. Idempotent.
	Unsubscribe(sub Subscription) error

	// PatternSubscribe registers handler for glob-matched channels.
	// Returns ErrPatternSubscribeUnsupported on backends that don't
	// implement it.
	PatternSubscribe(pattern string, handler Handler) (Subscription, error)

	// StartListening begins accepting published/incoming events. Network
	// backends use this to start their background listener goroutine; the
	// in-process backend's Publish returns ErrBusNotListening until it is
	// called.
	StartListening(ctx context.Context) error

	// StopListening halts delivery of new events without releasing
	// underlying resources. Safe to call StartListening again afterward.
	StopListening() error

	// Close releases all resources held by the bus. Idempotent.
	Close() error
}
