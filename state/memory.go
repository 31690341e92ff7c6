package state

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is a guarded in-process Store. Expired entries are evicted
// lazily on read and periodically by a background sweeper, so long-running
// processes (and long-running test suites) don't accumulate stale entries
// between sweeps.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry

	sweepInterval time.Duration
	stopSweep     chan struct{}
	sweepDone     chan struct{}
	closeOnce     sync.Once
}

type memoryEntry struct {
	value     any
	expiresAt time.Time // zero means never expires
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithSweepInterval overrides the default background sweep interval.
func WithSweepInterval(d time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) { s.sweepInterval = d }
}

// NewMemoryStore creates a new in-process Store and starts its background
// sweeper. Call Close to stop the sweeper and release resources.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		entries:       make(map[string]*memoryEntry),
		sweepInterval: 30 * time.Second,
		stopSweep:     make(chan struct{}),
		sweepDone:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.sweepLoop()
	return s
}

func (s *MemoryStore) sweepLoop() {
	defer close(s.sweepDone)

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopSweep:
			return
		case now := <-ticker.C:
			s.sweep(now)
		}
	}
}

func (s *MemoryStore) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.entries {
		if entry.expired(now) {
			delete(s.entries, key)
		}
	}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) (any, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	if entry.expired(time.Now()) {
		delete(s.entries, key)
		return nil, ErrNotFound
	}
	return entry.value, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := &memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	s.entries[key] = entry
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Exists implements Store.
func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	if entry.expired(time.Now()) {
		delete(s.entries, key)
		return false, nil
	}
	return true, nil
}

// GetMany implements Store.
func (s *MemoryStore) GetMany(_ context.Context, keys []string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	out := make(map[string]any, len(keys))
	for _, key := range keys {
		entry, ok := s.entries[key]
		if !ok {
			continue
		}
		if entry.expired(now) {
			delete(s.entries, key)
			continue
		}
		out[key] = entry.value
	}
	return out, nil
}

// SetMany implements Store.
func (s *MemoryStore) SetMany(_ context.Context, items map[string]any, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	for key, value := range items {
		if err := ValidateKey(key); err != nil {
			return err
		}
		s.entries[key] = &memoryEntry{value: value, expiresAt: expiresAt}
	}
	return nil
}

// Increment implements Store. A missing key is treated as 0.
func (s *MemoryStore) Increment(_ context.Context, key string, delta int64) (int64, error) {
	if err := ValidateKey(key); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	live := ok && !entry.expired(time.Now())
	var current int64
	if live {
		n, err := asInt64(entry.value)
		if err != nil {
			return 0, err
		}
		current = n
	}

	next := current + delta
	if live {
		entry.value = next
	} else {
		s.entries[key] = &memoryEntry{value: next}
	}
	return next, nil
}

// Close implements Store, stopping the background sweeper.
func (s *MemoryStore) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		close(s.stopSweep)
	})

	select {
	case <-s.sweepDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func asInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("state: value at key is not numeric (%T)", v)
	}
}

var _ Store = (*MemoryStore)(nil)
