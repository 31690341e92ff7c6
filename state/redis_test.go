package state

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeEnvelope_RoundTrip(t *testing.T) {
	payload, err := encodeEnvelope(map[string]any{"price": 42.5}, 0)
	require.NoError(t, err)

	value, err := decodeEnvelope(payload)
	require.NoError(t, err)

	m, ok := value.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 42.5, m["price"])
}

func TestEncodeDecodeEnvelope_NilValueRoundTrips(t *testing.T) {
	payload, err := encodeEnvelope(nil, 0)
	require.NoError(t, err)

	value, err := decodeEnvelope(payload)
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestEncodeDecodeEnvelope_ZeroTTLRecordsNoExpiry(t *testing.T) {
	payload, err := encodeEnvelope("v", 0)
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(payload, &env))
	assert.Equal(t, int64(0), env.Exp)
}

func TestDecodeEnvelope_FallsBackForBareIncrementValue(t *testing.T) {
	// Increment writes bypass the envelope (Redis INCRBY requires a bare
	// integer string), so decodeEnvelope must still understand it.
	value, err := decodeEnvelope([]byte("5"))
	require.NoError(t, err)
	assert.Equal(t, float64(5), value)
}

func TestConnect_RejectsEmptyURL(t *testing.T) {
	_, err := Connect(context.Background(), RedisConfig{})
	assert.ErrorIs(t, err, ErrEmptyConnectionURL)
}

func TestConnect_RejectsUnparsableURL(t *testing.T) {
	_, err := Connect(context.Background(), RedisConfig{URL: "not-a-redis-url"})
	assert.Error(t, err)
}
