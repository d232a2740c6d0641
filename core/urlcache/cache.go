// Package urlcache caches saved/not-saved judgements per normalized URL in
// the background process's memory. The cache is a pure optimization: it is
// never persisted, legitimately starts empty after every process restart, and
// expires entries lazily at read time so cache maintenance never wakes a
// suspended process.
package urlcache

import (
	"sync"
	"time"
)

const (
	// DefaultTTL bounds how long a cached judgement is trusted. There is no
	// proactive revalidation: status changed out-of-band may be reported
	// stale for up to this window.
	DefaultTTL = 5 * time.Minute

	// DefaultCapacity bounds the number of cached URLs.
	DefaultCapacity = 1000
)

// Entry is a cached judgement about one normalized URL.
type Entry struct {
	URL       string
	Saved     bool
	Timestamp time.Time
}

// Cache is a bounded, TTL-based map of normalized URL to saved status. Safe
// for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]Entry

	ttl      time.Duration
	capacity int
	now      func() time.Time
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithTTL sets the entry time-to-live.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCapacity sets the maximum number of entries. When full, the oldest
// entry is evicted to admit a new one.
func WithCapacity(capacity int) CacheOption {
	return func(c *Cache) {
		if capacity > 0 {
			c.capacity = capacity
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates an empty cache.
func New(opts ...CacheOption) *Cache {
	c := &Cache{
		entries:  make(map[string]Entry),
		ttl:      DefaultTTL,
		capacity: DefaultCapacity,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get returns the live entry for the URL. An expired entry is treated as
// absent and removed on the spot.
func (c *Cache) Get(url string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[url]
	if !ok {
		return Entry{}, false
	}
	if c.expiredLocked(entry) {
		delete(c.entries, url)
		return Entry{}, false
	}
	return entry, true
}

// Has reports whether a live entry exists for the URL.
func (c *Cache) Has(url string) bool {
	_, ok := c.Get(url)
	return ok
}

// Set records a judgement for the URL, overwriting any prior entry and
// stamping the current time. Setting the same value repeatedly is idempotent
// in effect; only the timestamp advances.
func (c *Cache) Set(url string, saved bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[url]; !exists && len(c.entries) >= c.capacity {
		c.evictOneLocked()
	}

	c.entries[url] = Entry{
		URL:       url,
		Saved:     saved,
		Timestamp: c.now(),
	}
}

// Invalidate removes the entry for the URL, if any.
func (c *Cache) Invalidate(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, url)
}

// Len returns the number of live entries, sweeping expired ones as a side
// effect.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	for url, entry := range c.entries {
		if c.expiredLocked(entry) {
			delete(c.entries, url)
		}
	}
	return len(c.entries)
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry)
}

func (c *Cache) expiredLocked(entry Entry) bool {
	return c.now().Sub(entry.Timestamp) > c.ttl
}

// evictOneLocked frees one slot, preferring expired entries and falling back
// to the oldest live one.
func (c *Cache) evictOneLocked() {
	var (
		oldestURL string
		oldestAt  time.Time
		found     bool
	)
	for url, entry := range c.entries {
		if c.expiredLocked(entry) {
			delete(c.entries, url)
			return
		}
		if !found || entry.Timestamp.Before(oldestAt) {
			oldestURL, oldestAt, found = url, entry.Timestamp, true
		}
	}
	if found {
		delete(c.entries, oldestURL)
	}
}
