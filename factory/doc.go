// Package factory builds an [Infrastructure] from a config.Config: the
// state store, event bus, structured logger/tracer/meter, emergency
// controller, and circuit breaker registry, constructed once and wired
// together the way the rest of the system expects to receive them.
//
// # Quick Start
//
//	cfg, err := config.Load(ctx, resolver)
//	infra, err := factory.Build(ctx, cfg)
//	defer infra.Close(ctx)
//
//	exec, err := executor.New(infra, reg)
//	result, err := exec.Execute(ctx, g, inputs, node.NewSharedState(), executor.RunOptions{})
//
// # Build Order
//
// Observer first (so every later step can log through it), then the
// state store, then the event bus (connected and StartListening'd),
// then the emergency controller (RestoreState'd from the store, with a
// Subscribe handler that PersistState's every later transition), then
// the circuit breaker registry. Any failure unwinds everything
// constructed so far before returning.
//
// # Circuit Breaker Events
//
// The registry's onStateChange callback publishes circuit_opened/
// circuit_closed on the same workflow_events channel the emergency
// controller and executor use, and logs the transition, so the
// broadcaster and any other bus subscriber see breaker trips without
// polling resilience.Registry.Metrics directly.
//
// # Teardown
//
// Close runs in the reverse of build order: event bus, state store,
// any Redis client the factory dialed for the event backend that isn't
// shared with the state store, then the observer. It is best-effort and
// always attempts every step, returning the first error encountered.
package factory
