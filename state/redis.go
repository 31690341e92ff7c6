package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fluxgraph/core/observe"
	"github.com/fluxgraph/core/wferr"
)

// RedisConfig configures the network-attached Store backend.
type RedisConfig struct {
	// URL is a redis:// or rediss:// connection string (required).
	URL string

	// RetryAttempts is how many times to retry the initial connection.
	// Default: 3
	RetryAttempts int

	// RetryInterval is the delay between connection attempts.
	// Default: 2s
	RetryInterval time.Duration

	// ConnectTimeout bounds each individual ping attempt.
	// Default: 5s
	ConnectTimeout time.Duration
}

// ErrEmptyConnectionURL is returned when RedisConfig.URL is empty.
var ErrEmptyConnectionURL = errors.New("state: empty redis connection URL")

// ErrRedisNotReady is returned when the client failed to connect after
// exhausting RetryAttempts.
var ErrRedisNotReady = errors.New("state: redis did not become ready within the given retry budget")

// Connect parses cfg.URL and returns a ready *redis.Client, retrying the
// initial PING up to cfg.RetryAttempts times.
func Connect(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.URL == "" {
		return nil, ErrEmptyConnectionURL
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 2 * time.Second
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("state: failed to parse redis connection string: %w", err)
	}

	client := redis.NewClient(opts)

	var lastErr error
	for attempt := 1; attempt <= cfg.RetryAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		lastErr = client.Ping(pingCtx).Err()
		cancel()

		if lastErr == nil {
			return client, nil
		}

		if attempt < cfg.RetryAttempts {
			select {
			case <-ctx.Done():
				_ = client.Close()
				return nil, ctx.Err()
			case <-time.After(cfg.RetryInterval):
			}
		}
	}

	_ = client.Close()
	return nil, fmt.Errorf("%w: %v", ErrRedisNotReady, lastErr)
}

// envelope is the stable on-wire representation of a stored value. Exp
// records the absolute expiry as unix-nanoseconds, or 0 for "never
// expires"; actual enforcement is delegated to Redis's own EX option, Exp
// is carried for callers that want to reason about remaining lifetime
// without a round trip to TTL.
type envelope struct {
	V   json.RawMessage `json:"v"`
	Exp int64           `json:"exp"`
}

// RedisStore is a Store backed by a shared Redis connection, the same
// client the event bus network backend uses.
type RedisStore struct {
	client *redis.Client
	logger observe.Logger
}

// NewRedisStore wraps an already-connected client. logger may be nil, in
// which case backend errors are not logged before being returned.
func NewRedisStore(client *redis.Client, logger observe.Logger) *RedisStore {
	return &RedisStore{client: client, logger: logger}
}

func (s *RedisStore) warn(ctx context.Context, msg string, err error) {
	if s.logger == nil {
		return
	}
	s.logger.Warn(ctx, msg, observe.Field{Key: "error", Value: err.Error()})
}

func (s *RedisStore) backendErr(ctx context.Context, msg string, err error) error {
	s.warn(ctx, msg, err)
	return wferr.Wrap(wferr.KindStateBackendError, err, msg)
}

func encodeEnvelope(value any, ttl time.Duration) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("state: failed to encode value: %w", err)
	}

	var exp int64
	if ttl > 0 {
		exp = time.Now().Add(ttl).UnixNano()
	}

	return json.Marshal(envelope{V: raw, Exp: exp})
}

// decodeEnvelope decodes data produced by encodeEnvelope. Keys written by
// Increment bypass the envelope (INCRBY requires a bare integer string), so
// on envelope-decode failure this falls back to treating data as an
// already-plain JSON scalar.
func decodeEnvelope(data []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err == nil && len(env.V) > 0 {
		var value any
		if err := json.Unmarshal(env.V, &value); err != nil {
			return nil, fmt.Errorf("state: failed to decode value: %w", err)
		}
		return value, nil
	}

	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("state: failed to decode value: %w", err)
	}
	return value, nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) (any, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, s.backendErr(ctx, "state: redis GET failed", err)
	}

	value, err := decodeEnvelope(raw)
	if err != nil {
		return nil, s.backendErr(ctx, "state: redis envelope decode failed", err)
	}
	return value, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	payload, err := encodeEnvelope(value, ttl)
	if err != nil {
		return s.backendErr(ctx, "state: redis envelope encode failed", err)
	}

	if err := s.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return s.backendErr(ctx, "state: redis SET failed", err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return s.backendErr(ctx, "state: redis DEL failed", err)
	}
	return nil
}

// Exists implements Store.
func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, s.backendErr(ctx, "state: redis EXISTS failed", err)
	}
	return n > 0, nil
}

// GetMany implements Store.
func (s *RedisStore) GetMany(ctx context.Context, keys []string) (map[string]any, error) {
	if len(keys) == 0 {
		return map[string]any{}, nil
	}

	results, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, s.backendErr(ctx, "state: redis MGET failed", err)
	}

	out := make(map[string]any, len(keys))
	for i, key := range keys {
		if results[i] == nil {
			continue
		}
		raw, ok := results[i].(string)
		if !ok {
			continue
		}
		value, err := decodeEnvelope([]byte(raw))
		if err != nil {
			return nil, s.backendErr(ctx, "state: redis envelope decode failed", err)
		}
		out[key] = value
	}
	return out, nil
}

// SetMany implements Store, batching the writes in a single pipeline.
func (s *RedisStore) SetMany(ctx context.Context, items map[string]any, ttl time.Duration) error {
	if len(items) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for key, value := range items {
		if err := ValidateKey(key); err != nil {
			return err
		}
		payload, err := encodeEnvelope(value, ttl)
		if err != nil {
			return s.backendErr(ctx, "state: redis envelope encode failed", err)
		}
		pipe.Set(ctx, key, payload, ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return s.backendErr(ctx, "state: redis pipeline SET failed", err)
	}
	return nil
}

// Increment implements Store using Redis's atomic INCRBY.
func (s *RedisStore) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	if err := ValidateKey(key); err != nil {
		return 0, err
	}

	next, err := s.client.IncrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, s.backendErr(ctx, "state: redis INCRBY failed", err)
	}
	return next, nil
}

// Close implements Store.
func (s *RedisStore) Close(_ context.Context) error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("state: redis close failed: %w", err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
