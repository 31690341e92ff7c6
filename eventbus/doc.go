// Package eventbus provides the publish/subscribe primitive used to carry
// run-lifecycle events (execution_started, node_started, circuit_opened,
// ...) from the executor and resilience layer out to the WebSocket
// broadcaster and any other subscriber.
//
// # Core Components
//
//   - [Bus]: Publish/Subscribe/Unsubscribe/PatternSubscribe/
//     StartListening/StopListening/Close
//   - [InProcessBus]: bounded worker pool, FIFO per channel
//   - [RedisBus]: Redis Pub/Sub over a shared *redis.Client
//
// # Quick Start
//
//	bus := eventbus.NewInProcessBus(eventbus.InProcessBusConfig{})
//	_ = bus.StartListening(ctx)
//	defer bus.Close()
//
//	sub, _ := bus.Subscribe("workflow_events", func(ctx context.Context, e eventbus.Event) error {
//	    fmt.Println(e.Channel, e.Payload)
//	    return nil
//	})
//	defer bus.Unsubscribe(sub)
//
//	_ = bus.Publish(ctx, "workflow_events", map[string]any{"kind": "node_started"})
//
// # Delivery Semantics
//
// Publish is fire-and-forget to the subscribers present at the moment of
// the call. A panicking or erroring Handler is isolated: it is recovered,
// logged at Warn, and never prevents other handlers from running or
// propagates back into Publish. There is no ordering guarantee across
// channels.
//
// [InProcessBus] gives each channel its own single-goroutine queue, so
// deliveries on one channel are strictly FIFO; a shared semaphore (default
// 64 slots) caps how many handler invocations may run concurrently across
// every channel at once. If a channel's queue is full and stays full past
// HandlerDropTimeout (default 2s), the job for that one subscriber is
// dropped with a Warn log rather than blocking the publisher. Delivery is
// best-effort: a handler registered after a Publish call never sees that
// event.
//
// [RedisBus] delivers at-least-once during steady state via Redis
// Pub/Sub, the same *redis.Client connection the state store's RedisStore
// uses. PatternSubscribe maps directly to PSUBSCRIBE; [InProcessBus]
// rejects PatternSubscribe with [ErrPatternSubscribeUnsupported].
//
// # Thread Safety
//
// Both backends are safe for concurrent use.
package eventbus
