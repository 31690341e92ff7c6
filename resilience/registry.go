package resilience

import "sync"

// Registry hands out named circuit breakers, bulkheads, and rate
// limiters, creating each lazily on first request and reusing it on
// every subsequent lookup for the same name. Every instance of a given
// pattern shares the same base config; per-name overrides are not
// supported.
type Registry struct {
	config            CircuitBreakerConfig
	bulkheadConfig    BulkheadConfig
	rateLimiterConfig RateLimiterConfig
	onStateChange     func(name string, from, to State)

	mu           sync.Mutex
	breakers     map[string]*CircuitBreaker
	bulkheads    map[string]*Bulkhead
	rateLimiters map[string]*RateLimiter
}

// NewRegistry creates a Registry that constructs new circuit breakers,
// bulkheads, and rate limiters using the given configs whenever a name is
// requested for the first time. config.OnStateChange is ignored if set;
// use onStateChange instead, which additionally receives the breaker's
// name so a caller (the factory package, publishing circuit_opened/
// circuit_closed events) can tell which provider tripped. onStateChange
// may be nil.
func NewRegistry(config CircuitBreakerConfig, bulkheadConfig BulkheadConfig, rateLimiterConfig RateLimiterConfig, onStateChange func(name string, from, to State)) *Registry {
	return &Registry{
		config:            config,
		bulkheadConfig:    bulkheadConfig,
		rateLimiterConfig: rateLimiterConfig,
		onStateChange:     onStateChange,
		breakers:          make(map[string]*CircuitBreaker),
		bulkheads:         make(map[string]*Bulkhead),
		rateLimiters:      make(map[string]*RateLimiter),
	}
}

// CircuitBreaker returns the named circuit breaker, creating it if this is
// the first time name has been requested.
func (r *Registry) CircuitBreaker(name string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	cfg := r.config
	notify := r.onStateChange
	cfg.OnStateChange = func(from, to State) {
		if notify != nil {
			notify(name, from, to)
		}
	}

	cb := NewCircuitBreaker(cfg)
	r.breakers[name] = cb
	return cb
}

// Bulkhead returns the named bulkhead, creating it if this is the first
// time name has been requested.
func (r *Registry) Bulkhead(name string) *Bulkhead {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.bulkheads[name]; ok {
		return b
	}

	b := NewBulkhead(r.bulkheadConfig)
	r.bulkheads[name] = b
	return b
}

// RateLimiter returns the named rate limiter, creating it if this is the
// first time name has been requested.
func (r *Registry) RateLimiter(name string) *RateLimiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rl, ok := r.rateLimiters[name]; ok {
		return rl
	}

	rl := NewRateLimiter(r.rateLimiterConfig)
	r.rateLimiters[name] = rl
	return rl
}

// Names returns the names of all circuit breakers created so far.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	return names
}

// Metrics returns a snapshot of every circuit breaker's metrics, keyed by
// name.
func (r *Registry) Metrics() map[string]CircuitBreakerMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]CircuitBreakerMetrics, len(r.breakers))
	for name, cb := range r.breakers {
		out[name] = cb.Metrics()
	}
	return out
}
