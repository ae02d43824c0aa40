package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/fulmen/internal/interfaces"
)

func newTestCache(t *testing.T, sweep time.Duration) *Service {
	t.Helper()
	s := NewService(sweep, arbor.NewLogger())
	t.Cleanup(s.Close)
	return s
}

func TestSetGetRoundTrip(t *testing.T) {
	s := newTestCache(t, 0)

	original := map[string]interface{}{
		"sector": "residential",
		"values": []interface{}{1.5, 2.5},
	}
	require.NoError(t, s.Set("sector-data", original, time.Minute))

	got, ok := s.Get("sector-data")
	require.True(t, ok)

	m, ok := got.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "residential", m["sector"])
	assert.Equal(t, []interface{}{1.5, 2.5}, m["values"])
}

func TestGetReturnsUnaliasedCopy(t *testing.T) {
	s := newTestCache(t, 0)

	require.NoError(t, s.Set("k", map[string]interface{}{"count": 1.0}, 0))

	first, ok := s.Get("k")
	require.True(t, ok)
	first.(map[string]interface{})["count"] = 999.0

	second, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, 1.0, second.(map[string]interface{})["count"],
		"mutating a returned value must not affect stored state")
}

func TestSetDoesNotAliasCaller(t *testing.T) {
	s := newTestCache(t, 0)

	value := map[string]interface{}{"count": 1.0}
	require.NoError(t, s.Set("k", value, 0))
	value["count"] = 999.0

	got, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, 1.0, got.(map[string]interface{})["count"])
}

func TestExpiryPurgesOnGet(t *testing.T) {
	s := newTestCache(t, 0)

	require.NoError(t, s.Set("short", "value", 20*time.Millisecond))

	_, ok := s.Get("short")
	assert.True(t, ok)

	time.Sleep(40 * time.Millisecond)

	_, ok = s.Get("short")
	assert.False(t, ok, "expired entry must read as absent")
	assert.Empty(t, s.Keys())
}

func TestZeroTTLNeverExpires(t *testing.T) {
	s := newTestCache(t, 10*time.Millisecond)

	require.NoError(t, s.Set("forever", "value", 0))
	time.Sleep(50 * time.Millisecond)

	_, ok := s.Get("forever")
	assert.True(t, ok)
}

func TestBackgroundSweepReclaimsExpired(t *testing.T) {
	s := newTestCache(t, 10*time.Millisecond)

	require.NoError(t, s.Set("a", 1, 15*time.Millisecond))
	require.NoError(t, s.Set("b", 2, 0))

	assert.Eventually(t, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		_, present := s.entries["a"]
		return !present
	}, time.Second, 10*time.Millisecond, "sweeper should remove the expired entry")

	_, ok := s.Get("b")
	assert.True(t, ok)
}

func TestEmptyKeyRejected(t *testing.T) {
	s := newTestCache(t, 0)

	err := s.Set("", "value", time.Minute)
	assert.ErrorIs(t, err, interfaces.ErrInvalidKey)
}

func TestUnserializableValueRejected(t *testing.T) {
	s := newTestCache(t, 0)

	err := s.Set("bad", func() {}, time.Minute)
	assert.ErrorIs(t, err, interfaces.ErrNotSerializable)

	_, ok := s.Get("bad")
	assert.False(t, ok, "rejected value must never be stored")
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := newTestCache(t, 0)

	require.NoError(t, s.Set("k", "v", 0))
	s.Delete("k")
	s.Delete("k")

	_, ok := s.Get("k")
	assert.False(t, ok)
}

func TestFlushAndKeys(t *testing.T) {
	s := newTestCache(t, 0)

	require.NoError(t, s.Set("a", 1, 0))
	require.NoError(t, s.Set("b", 2, 0))
	assert.ElementsMatch(t, []string{"a", "b"}, s.Keys())

	s.Flush()
	assert.Empty(t, s.Keys())
}
