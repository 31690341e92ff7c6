package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SetAndGet(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close(context.Background())

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "k1", "hello", 0))

	v, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
}

func TestMemoryStore_GetMissReturnsErrNotFound(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close(context.Background())

	_, err := store.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStore_GetDistinguishesStoredNilFromMiss(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close(context.Background())

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "nil-key", nil, 0))

	v, err := store.Get(ctx, "nil-key")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestMemoryStore_TTLExpires(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close(context.Background())

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "short", "v", 10*time.Millisecond))

	time.Sleep(30 * time.Millisecond)

	_, err := store.Get(ctx, "short")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStore_ZeroTTLNeverExpires(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close(context.Background())

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "forever", "v", 0))

	time.Sleep(20 * time.Millisecond)

	v, err := store.Get(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close(context.Background())

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "k", "v", 0))
	require.NoError(t, store.Delete(ctx, "k"))

	_, err := store.Get(ctx, "k")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStore_DeleteIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close(context.Background())

	assert.NoError(t, store.Delete(context.Background(), "never-existed"))
}

func TestMemoryStore_Exists(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close(context.Background())

	ctx := context.Background()
	ok, err := store.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "k", "v", 0))
	ok, err = store.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryStore_GetMany(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close(context.Background())

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "a", 1, 0))
	require.NoError(t, store.Set(ctx, "b", 2, 0))

	vals, err := store.GetMany(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, vals, 2)
	assert.Equal(t, 1, vals["a"])
	assert.Equal(t, 2, vals["b"])
}

func TestMemoryStore_SetMany(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close(context.Background())

	ctx := context.Background()
	require.NoError(t, store.SetMany(ctx, map[string]any{"x": 1, "y": 2}, 0))

	v, err := store.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestMemoryStore_IncrementFromMissingKey(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close(context.Background())

	n, err := store.Increment(context.Background(), "counter", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestMemoryStore_IncrementAccumulates(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close(context.Background())

	ctx := context.Background()
	_, err := store.Increment(ctx, "counter", 5)
	require.NoError(t, err)
	n, err := store.Increment(ctx, "counter", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)
}

func TestMemoryStore_IncrementIsAtomic(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close(context.Background())

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.Increment(ctx, "shared", 1)
		}()
	}
	wg.Wait()

	v, err := store.Get(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, int64(100), v)
}

func TestMemoryStore_InvalidKeyRejected(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close(context.Background())

	ctx := context.Background()
	assert.ErrorIs(t, store.Set(ctx, "", "v", 0), ErrInvalidKey)
	_, err := store.Get(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestMemoryStore_BackgroundSweeperEvictsExpired(t *testing.T) {
	store := NewMemoryStore(WithSweepInterval(10 * time.Millisecond))
	defer store.Close(context.Background())

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "k", "v", 5*time.Millisecond))

	time.Sleep(40 * time.Millisecond)

	store.mu.Lock()
	_, stillPresent := store.entries["k"]
	store.mu.Unlock()
	assert.False(t, stillPresent, "sweeper should have evicted the expired entry")
}

func TestMemoryStore_CloseStopsSweeper(t *testing.T) {
	store := NewMemoryStore()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	assert.NoError(t, store.Close(ctx))
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close(context.Background())

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := "key"
			_ = store.Set(ctx, key, n, 0)
			_, _ = store.Get(ctx, key)
		}(i)
	}
	wg.Wait()
}
