// Package state provides the shared key/value store used for inter-node
// data passing and run checkpointing.
//
// # Core Components
//
//   - [Store]: Get/Set/Delete/Exists/GetMany/SetMany/Increment/Close
//   - [MemoryStore]: guarded in-process map with a background sweeper
//   - [RedisStore]: network-attached backend over a shared go-redis client
//
// # Quick Start
//
//	store := state.NewMemoryStore()
//	defer store.Close(ctx)
//
//	_ = store.Set(ctx, "run:checkpoint", data, 0)
//	v, err := store.Get(ctx, "run:checkpoint")
//	if errors.Is(err, state.ErrNotFound) {
//	    // never written, or expired
//	}
//
// For the network backend:
//
//	client, err := state.Connect(ctx, state.RedisConfig{URL: "redis://localhost:6379/0"})
//	store := state.NewRedisStore(client, logger)
//
// # Value Encoding
//
// [RedisStore] encodes values in a stable JSON envelope, {"v": <json
// value>, "exp": <unix-nano|0>}, so a stored JSON null is distinguishable
// from a missing key purely by whether GET returned redis.Nil. Increment
// writes bypass the envelope, because Redis INCRBY requires the stored
// value to already be a plain integer string; Get falls back to decoding a
// bare scalar when the envelope shape doesn't match.
//
// # Failure Semantics
//
// [RedisStore] wraps every backend error in a wferr.Error tagged
// KindStateBackendError after logging it at Warn via the injected
// observe.Logger; the error is still returned to the caller; telemetry
// around it is best-effort but the error path is not. Get on a missing key
// always returns (nil, ErrNotFound), never an error.
//
// # Thread Safety
//
// Both backends are safe for concurrent use. MemoryStore.Increment and
// RedisStore.Increment are atomic relative to concurrent increments on the
// same key (a mutex-guarded read-modify-write for the former, Redis's
// native INCRBY for the latter).
package state
