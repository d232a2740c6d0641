package urlcache_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readmark/extsync/core/urlcache"
)

// fakeClock is a settable time source for TTL tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCache_SetGet(t *testing.T) {
	t.Parallel()

	t.Run("returns stored judgement", func(t *testing.T) {
		t.Parallel()

		cache := urlcache.New()
		cache.Set("https://example.com/a", true)

		entry, ok := cache.Get("https://example.com/a")
		require.True(t, ok)
		assert.True(t, entry.Saved)
		assert.Equal(t, "https://example.com/a", entry.URL)
	})

	t.Run("miss for unknown url", func(t *testing.T) {
		t.Parallel()

		cache := urlcache.New()
		_, ok := cache.Get("https://example.com/missing")
		assert.False(t, ok)
	})

	t.Run("overwrite replaces prior judgement regardless of state", func(t *testing.T) {
		t.Parallel()

		cache := urlcache.New()
		cache.Set("https://example.com/a", false)
		cache.Set("https://example.com/a", true)
		cache.Set("https://example.com/a", true) // duplicate delivery

		entry, ok := cache.Get("https://example.com/a")
		require.True(t, ok)
		assert.True(t, entry.Saved)
	})
}

func TestCache_TTL(t *testing.T) {
	t.Parallel()

	t.Run("entry lives until ttl elapses", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		cache := urlcache.New(
			urlcache.WithTTL(5*time.Minute),
			urlcache.WithClock(clock.Now),
		)

		cache.Set("https://example.com/a", true)

		clock.Advance(5 * time.Minute)
		assert.True(t, cache.Has("https://example.com/a"), "entry at exactly ttl is still live")

		clock.Advance(time.Second)
		_, ok := cache.Get("https://example.com/a")
		assert.False(t, ok, "entry past ttl is treated as absent")
	})

	t.Run("set refreshes the timestamp", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		cache := urlcache.New(
			urlcache.WithTTL(5*time.Minute),
			urlcache.WithClock(clock.Now),
		)

		cache.Set("https://example.com/a", true)
		clock.Advance(4 * time.Minute)
		cache.Set("https://example.com/a", true)
		clock.Advance(4 * time.Minute)

		assert.True(t, cache.Has("https://example.com/a"))
	})

	t.Run("timestamps are non-decreasing across overwrites", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		cache := urlcache.New(urlcache.WithClock(clock.Now))

		cache.Set("https://example.com/a", false)
		first, ok := cache.Get("https://example.com/a")
		require.True(t, ok)

		clock.Advance(time.Minute)
		cache.Set("https://example.com/a", true)
		second, ok := cache.Get("https://example.com/a")
		require.True(t, ok)

		assert.False(t, second.Timestamp.Before(first.Timestamp))
	})
}

func TestCache_Invalidate(t *testing.T) {
	t.Parallel()

	cache := urlcache.New()
	cache.Set("https://example.com/a", true)

	cache.Invalidate("https://example.com/a")
	assert.False(t, cache.Has("https://example.com/a"))

	// Invalidating an absent entry is a no-op.
	cache.Invalidate("https://example.com/a")
}

func TestCache_Capacity(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	cache := urlcache.New(
		urlcache.WithCapacity(3),
		urlcache.WithClock(clock.Now),
	)

	for i := 0; i < 3; i++ {
		cache.Set(fmt.Sprintf("https://example.com/%d", i), true)
		clock.Advance(time.Second)
	}
	require.Equal(t, 3, cache.Len())

	cache.Set("https://example.com/new", true)

	assert.Equal(t, 3, cache.Len(), "capacity is enforced")
	assert.False(t, cache.Has("https://example.com/0"), "oldest entry was evicted")
	assert.True(t, cache.Has("https://example.com/new"))
}

func TestCache_Purge(t *testing.T) {
	t.Parallel()

	cache := urlcache.New()
	cache.Set("https://example.com/a", true)
	cache.Set("https://example.com/b", false)

	cache.Purge()
	assert.Zero(t, cache.Len())
}
