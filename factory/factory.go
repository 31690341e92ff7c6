// Package factory wires the C1-C5 components into a single Infrastructure
// from a resolved config.Config, so cmd/fluxgraphd and tests never
// construct a state store, event bus, or emergency controller by hand.
package factory

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/fluxgraph/core/config"
	"github.com/fluxgraph/core/emergency"
	"github.com/fluxgraph/core/eventbus"
	"github.com/fluxgraph/core/observe"
	"github.com/fluxgraph/core/resilience"
	"github.com/fluxgraph/core/state"
)

// Infrastructure bundles every component the executor and broadcaster
// need, constructed once and passed explicitly rather than reached via a
// package-level global.
type Infrastructure struct {
	Config     *config.Config
	Observer   observe.Observer
	State      state.Store
	Events     eventbus.Bus
	Emergency  *emergency.Controller
	Resilience *resilience.Registry

	// extraRedisClients holds clients Close must shut down itself: a
	// RedisStore closes its own client as part of state.Store.Close, but
	// RedisBus deliberately leaves a shared client open (the state store
	// may still be using it), so a client dedicated to the event backend
	// only needs tracking here when it isn't the same one state already owns.
	extraRedisClients []*redis.Client
}

// Build constructs every component cfg describes and starts the ones that
// need starting (the event bus's listener, the emergency controller's
// restored state). The returned Infrastructure must be closed with Close
// once the caller is done with it.
func Build(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	obs, err := observe.NewObserver(ctx, cfg.ObserveConfig())
	if err != nil {
		return nil, fmt.Errorf("factory: failed to build observer: %w", err)
	}

	infra := &Infrastructure{Config: cfg, Observer: obs}

	var stateRedisClient *redis.Client
	store, err := buildStateStore(ctx, cfg, obs, &stateRedisClient)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, err
	}
	infra.State = store

	bus, err := buildEventBus(ctx, cfg, obs, infra, stateRedisClient)
	if err != nil {
		_ = store.Close(ctx)
		_ = obs.Shutdown(ctx)
		return nil, err
	}
	infra.Events = bus

	if err := bus.StartListening(ctx); err != nil {
		_ = bus.Close()
		_ = store.Close(ctx)
		_ = obs.Shutdown(ctx)
		return nil, fmt.Errorf("factory: failed to start event bus listener: %w", err)
	}

	emergencyCtrl := emergency.NewController(bus)
	if err := emergencyCtrl.RestoreState(ctx, store); err != nil {
		_ = bus.Close()
		_ = store.Close(ctx)
		_ = obs.Shutdown(ctx)
		return nil, fmt.Errorf("factory: failed to restore emergency state: %w", err)
	}
	emergencyCtrl.Subscribe(func(ctx context.Context, _, _ emergency.Level, _ string) {
		_ = emergencyCtrl.PersistState(ctx, store)
	})
	infra.Emergency = emergencyCtrl

	infra.Resilience = resilience.NewRegistry(
		resilience.CircuitBreakerConfig{
			MaxFailures:  cfg.Resilience.CircuitFailureThreshold,
			ResetTimeout: cfg.Resilience.CircuitRecoveryTimeout,
		},
		resilience.BulkheadConfig{
			MaxConcurrent: cfg.Resilience.ProviderMaxConcurrent,
		},
		resilience.RateLimiterConfig{
			Rate:        cfg.Resilience.ProviderRateLimitPerSecond,
			Burst:       cfg.Resilience.ProviderRateLimitBurst,
			WaitOnLimit: true,
			MaxWait:     cfg.Resilience.ProviderRateLimitMaxWait,
		},
		func(name string, from, to resilience.State) {
			_ = bus.Publish(ctx, emergency.EventChannel, map[string]any{
				"kind": circuitEventKind(to),
				"name": name,
				"from": from.String(),
				"to":   to.String(),
			})
			obs.Logger().Info(ctx, "circuit breaker state changed",
				observe.Field{Key: "breaker", Value: name},
				observe.Field{Key: "from", Value: from.String()},
				observe.Field{Key: "to", Value: to.String()},
			)
		},
	)

	return infra, nil
}

func circuitEventKind(to resilience.State) string {
	if to == resilience.StateOpen {
		return "circuit_opened"
	}
	return "circuit_closed"
}

func buildStateStore(ctx context.Context, cfg *config.Config, obs observe.Observer, client **redis.Client) (state.Store, error) {
	switch cfg.State.Backend {
	case "memory":
		return state.NewMemoryStore(), nil
	case "network":
		conn, err := state.Connect(ctx, state.RedisConfig{URL: cfg.State.URL})
		if err != nil {
			return nil, fmt.Errorf("factory: failed to connect state backend: %w", err)
		}
		*client = conn
		return state.NewRedisStore(conn, obs.Logger()), nil
	default:
		return nil, fmt.Errorf("factory: unknown state backend %q", cfg.State.Backend)
	}
}

// buildEventBus reuses stateRedisClient when the event backend is network
// and targets the same URL as the state backend, so the two components
// share one connection the way state.RedisStore.Close already tears down.
// Otherwise it dials a dedicated client, tracked on infra so Close shuts
// it down explicitly (RedisBus.Close never closes a client it didn't open
// itself, since that client might still be the state store's).
func buildEventBus(ctx context.Context, cfg *config.Config, obs observe.Observer, infra *Infrastructure, stateRedisClient *redis.Client) (eventbus.Bus, error) {
	switch cfg.Event.Backend {
	case "memory":
		return eventbus.NewInProcessBus(eventbus.InProcessBusConfig{Logger: obs.Logger()}), nil
	case "network":
		if stateRedisClient != nil && cfg.Event.URL == cfg.State.URL {
			return eventbus.NewRedisBus(stateRedisClient, obs.Logger()), nil
		}
		client, err := state.Connect(ctx, state.RedisConfig{URL: cfg.Event.URL})
		if err != nil {
			return nil, fmt.Errorf("factory: failed to connect event backend: %w", err)
		}
		infra.extraRedisClients = append(infra.extraRedisClients, client)
		return eventbus.NewRedisBus(client, obs.Logger()), nil
	default:
		return nil, fmt.Errorf("factory: unknown event backend %q", cfg.Event.Backend)
	}
}

// Close tears down every component in LIFO order: the event bus stops
// listening first (it may still be flushing events that touch the state
// store), then the state store closes, then any raw Redis clients the
// factory opened, then the observer's telemetry providers shut down last.
// Close is best-effort; it returns the first error encountered but
// attempts every step regardless.
func (i *Infrastructure) Close(ctx context.Context) error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if i.Events != nil {
		record(i.Events.Close())
	}
	if i.State != nil {
		record(i.State.Close(ctx))
	}
	for _, client := range i.extraRedisClients {
		record(client.Close())
	}
	if i.Observer != nil {
		record(i.Observer.Shutdown(ctx))
	}
	return firstErr
}
