// Package resilience provides resilience patterns for node execution.
//
// It implements common reliability patterns that help workflow nodes handle
// failures gracefully when calling external services. Patterns can be
// composed together using the Executor to build robust execution pipelines,
// and the Registry hands out named, independently-tripping circuit breakers
// so that one failing provider does not take down unrelated nodes.
//
// # Resilience Patterns
//
// The package provides five core patterns:
//
//   - [CircuitBreaker]: Prevents cascading failures by stopping requests to
//     failing services after a threshold is reached. Transitions through
//     Closed -> Open -> HalfOpen states.
//
//   - [Retry]: Automatically retries failed operations with configurable
//     backoff strategies (exponential, linear, constant) and jitter.
//
//   - [RateLimiter]: Token bucket rate limiting to prevent overwhelming
//     downstream services. Supports burst allowance and wait-on-limit.
//
//   - [Bulkhead]: Semaphore-based concurrency limiting to prevent resource
//     exhaustion and isolate failures.
//
//   - [Timeout]: Context-based timeout to ensure operations complete within
//     a time limit.
//
// # Quick Start
//
//	// Individual pattern usage
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	    MaxFailures:  5,
//	    ResetTimeout: time.Minute,
//	})
//
//	err := cb.Execute(ctx, func(ctx context.Context) error {
//	    return callProvider(ctx)
//	})
//
//	// Composed patterns with Executor
//	executor := resilience.NewExecutor(
//	    resilience.WithCircuitBreaker(cb),
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{
//	        MaxAttempts:  3,
//	        InitialDelay: 100 * time.Millisecond,
//	    })),
//	    resilience.WithTimeout(5*time.Second),
//	)
//
//	err = executor.Execute(ctx, func(ctx context.Context) error {
//	    return callProvider(ctx)
//	})
//
// # Named Breakers, Bulkheads and Rate Limiters with Registry
//
// A workflow graph has many nodes calling a handful of distinct providers.
// [Registry] hands out one [CircuitBreaker], one [Bulkhead], and one
// [RateLimiter] per name and remembers each, so every node that targets
// the same provider shares trip state, concurrency budget, and call
// budget instead of each node getting its own isolated copy that never
// sees the others:
//
//	reg := resilience.NewRegistry(
//	    resilience.CircuitBreakerConfig{MaxFailures: 5, ResetTimeout: 30 * time.Second},
//	    resilience.BulkheadConfig{MaxConcurrent: 10},
//	    resilience.RateLimiterConfig{Rate: 50, Burst: 10, WaitOnLimit: true},
//	    func(name string, from, to resilience.State) {
//	        // publish circuit_opened/circuit_closed, record a gauge
//	    },
//	)
//	cb := reg.CircuitBreaker("provider:exchange-rest")
//	bh := reg.Bulkhead("provider:exchange-rest")
//	rl := reg.RateLimiter("provider:exchange-rest")
//
// The onStateChange callback receives the breaker's name alongside the
// transition, since CircuitBreakerConfig.OnStateChange alone has no way to
// identify which named breaker fired it once a Registry holds more than
// one. The factory package uses this to publish circuit_opened/
// circuit_closed events and record a gauge per provider.
//
// # Execution Order
//
// A node-execution pipeline composes only the patterns that apply to its
// node category (see the executor package). [Executor] nests the patterns
// it is given in a fixed order, whatever order the options are passed in;
// outermost first:
//
//  1. Rate Limiter - throttles calls
//  2. Bulkhead - caps concurrency
//  3. Circuit Breaker - prevents cascading failures
//  4. Retry - retries on failure
//  5. Timeout - limits execution time of each attempt (innermost)
//
// # Thread Safety
//
// All exported types are safe for concurrent use after construction:
//
//   - [CircuitBreaker]: Execute() and State() are mutex-protected; Reset() is safe
//   - [Retry]: Execute() is stateless and safe for concurrent use
//   - [RateLimiter]: Allow(), AllowN(), Wait(), Execute() are mutex-protected
//   - [Bulkhead]: Acquire(), Release(), Execute() use channel-based semaphore
//   - [Timeout]: Execute() is stateless and safe for concurrent use
//   - [Executor]: Execute() is safe; all wrapped patterns maintain their guarantees
//   - [Registry]: CircuitBreaker() is mutex-protected and safe for concurrent use
//
// # Error Handling
//
// Each pattern returns specific sentinel errors (use errors.Is for checking):
//
//   - [ErrCircuitOpen]: Circuit breaker is in open state, rejecting requests
//   - [ErrMaxRetriesExceeded]: not returned by [Retry], which returns the
//     last error once all attempts are exhausted
//   - [ErrRateLimitExceeded]: Rate limit exceeded and no wait configured
//   - [ErrBulkheadFull]: Bulkhead at maximum concurrency
//   - [ErrTimeout]: Operation exceeded configured timeout
//
// Example error handling:
//
//	err := executor.Execute(ctx, operation)
//	if errors.Is(err, resilience.ErrCircuitOpen) {
//	    log.Warn("circuit breaker open, rejecting call")
//	    return nil, wferr.Wrap(wferr.KindCircuitOpen, "provider unavailable", err)
//	}
//
// # Callbacks and Observability
//
// Patterns support callbacks for observability integration:
//
//   - CircuitBreakerConfig.OnStateChange: called on state transitions; the
//     factory package wires this to publish circuit_opened/circuit_closed
//     events on the bus and to record a gauge via observe.Metrics.RecordGauge
//   - RetryConfig.OnRetry: called before each retry attempt
//   - CircuitBreakerConfig.IsFailure: custom failure classification
//   - RetryConfig.RetryIf: custom retry decision logic
package resilience
