package cache

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

type result struct {
	RunID string
}

func newResultCache(t *testing.T, ttl time.Duration) *ResultCacheImpl[*result] {
	t.Helper()
	ristrettoCache, err := NewRistrettoCache(100)
	require.NoError(t, err)
	t.Cleanup(ristrettoCache.Close)
	return NewResultCacheImpl[*result](ristrettoCache, ttl)
}

func TestResultCacheImpl(t *testing.T) {
	t.Run("should return a stored value", func(t *testing.T) {
		rc := newResultCache(t, time.Minute)
		require.NoError(t, rc.Put("key", &result{RunID: "a"}))

		value, err := rc.Get("key")
		require.NoError(t, err)
		assert.Equal(t, "a", value.RunID)
	})

	t.Run("should replace the value stored under the same key", func(t *testing.T) {
		rc := newResultCache(t, time.Minute)
		require.NoError(t, rc.Put("key", &result{RunID: "a"}))
		require.NoError(t, rc.Put("key", &result{RunID: "b"}))

		value, err := rc.Get("key")
		require.NoError(t, err)
		assert.Equal(t, "b", value.RunID)
	})

	t.Run("Returns error if the key is missing", func(t *testing.T) {
		rc := newResultCache(t, time.Minute)
		_, err := rc.Get("missing")
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("Returns error if the value has expired", func(t *testing.T) {
		rc := newResultCache(t, 10*time.Millisecond)
		require.NoError(t, rc.Put("key", &result{RunID: "a"}))
		time.Sleep(30 * time.Millisecond)
		_, err := rc.Get("key")
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})
}
