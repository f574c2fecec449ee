package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCacheEvictsLRUOnItemBound(t *testing.T) {
	c := NewCache(2, 0)
	var evicted []string
	c.OnEvict(func(key string, value any, reason EvictReason) {
		evicted = append(evicted, key)
		require.Equal(t, EvictSize, reason)
	})
	c.Set("a", 1, 1, 0)
	c.Set("b", 2, 1, 0)
	c.Set("c", 3, 1, 0) // evicts "a", the LRU entry
	require.Equal(t, []string{"a"}, evicted)
	_, ok := c.Get("a")
	require.False(t, ok)
	_, ok = c.Get("b")
	require.True(t, ok)
}

func TestCacheEvictsOnByteBound(t *testing.T) {
	c := NewCache(0, 10)
	c.Set("a", "x", 6, 0)
	c.Set("b", "y", 6, 0)
	require.LessOrEqual(t, c.Bytes(), int64(10))
}

func TestCachePeekDoesNotPromote(t *testing.T) {
	c := NewCache(2, 0)
	c.Set("a", 1, 1, 0)
	c.Set("b", 2, 1, 0)
	_, ok := c.Peek("a")
	require.True(t, ok)
	c.Set("c", 3, 1, 0) // "a" is still LRU since Peek didn't promote it
	_, ok = c.Get("a")
	require.False(t, ok)
}

func TestCacheTTLExpiry(t *testing.T) {
	c := NewCache(0, 0)
	c.Set("a", 1, 1, time.Millisecond)
	timeNow = func() time.Time { return time.Now().Add(time.Hour) }
	defer func() { timeNow = time.Now }()

	_, ok := c.Get("a")
	require.False(t, ok)
}

func TestCachePruneRemovesExpired(t *testing.T) {
	c := NewCache(0, 0)
	c.Set("a", 1, 1, time.Millisecond)
	c.Set("b", 2, 1, 0)
	timeNow = func() time.Time { return time.Now().Add(time.Hour) }
	defer func() { timeNow = time.Now }()

	n := c.Prune()
	require.Equal(t, 1, n)
	require.Equal(t, 1, c.Len())
}

func TestCacheResizeEvictsImmediately(t *testing.T) {
	c := NewCache(5, 0)
	c.Set("a", 1, 1, 0)
	c.Set("b", 2, 1, 0)
	c.Set("c", 3, 1, 0)
	c.Resize(1, 0)
	require.Equal(t, 1, c.Len())
}

func TestCacheClearReportsReason(t *testing.T) {
	c := NewCache(5, 0)
	c.Set("a", 1, 1, 0)
	var reasons []EvictReason
	c.OnEvict(func(key string, value any, reason EvictReason) { reasons = append(reasons, reason) })
	c.Clear()
	require.Equal(t, []EvictReason{EvictClear}, reasons)
	require.Equal(t, 0, c.Len())
}
