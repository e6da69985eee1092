// Package cache maps long, time-limited upstream media URLs to short deterministic keys.
//
// Keys are the first 12 hex characters of the SHA-256 of the URL, so the same URL always
// registers under the same key. Entries expire a fixed TTL after their last [Cache.Put];
// reads refresh recency for eviction but never extend the TTL. When the cache is over
// capacity, expired entries are purged first and then the least recently used entry is evicted.
//
// A key never changes value while its entry is live. If a different URL fingerprints to a
// live key (a 48-bit collision), the existing mapping is kept and the collision is counted.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

const (
	// KeyLength is the number of hex characters in a cache key.
	KeyLength = 12

	DefaultCapacity = 256
	DefaultTTL      = time.Hour
)

// Options configures a [Cache].
type Options struct {
	Capacity int
	TTL      time.Duration
	Now      func() time.Time // Clock override for tests
}

// Stats holds cache counters.
type Stats struct {
	Hits       int64 // Successful Get calls
	Misses     int64 // Get calls for unknown or expired keys
	Puts       int64 // Put calls
	Refreshes  int64 // Puts that refreshed an existing entry
	Evictions  int64 // Entries removed for capacity
	Expired    int64 // Entries removed after their TTL
	Collisions int64 // Puts whose key was held by a live entry for a different URL
	Size       int   // Current number of entries
}

type entry struct {
	key        string
	url        string
	insertedAt time.Time
	expiresAt  time.Time
}

// Cache is a bounded, TTL-expiring store from short key to upstream URL.
//
// It is safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time
	key      func(string) string

	order   *list.List // front is most recently used
	entries map[string]*list.Element
	stats   Stats
}

// New creates a [Cache]. Zero values in opts fall back to [DefaultCapacity] and [DefaultTTL].
func New(opts Options) *Cache {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Cache{
		capacity: opts.Capacity,
		ttl:      opts.TTL,
		now:      opts.Now,
		key:      Key,
		order:    list.New(),
		entries:  make(map[string]*list.Element, opts.Capacity),
	}
}

// Key returns the deterministic cache key for url.
func Key(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])[:KeyLength]
}

// Put registers url and returns its key.
//
// Registering a URL that is already present refreshes its TTL and returns the same key.
// A live entry for a different URL under the same key is left untouched.
func (c *Cache) Put(url string) string {
	key := c.key(url)
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.Puts++

	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry)
		switch {
		case e.url == url:
			c.stats.Refreshes++
		case now.Before(e.expiresAt):
			c.stats.Collisions++
			return key
		default:
			e.url = url
			e.insertedAt = now
		}
		e.expiresAt = now.Add(c.ttl)
		c.order.MoveToFront(el)
		return key
	}

	c.entries[key] = c.order.PushFront(&entry{
		key:        key,
		url:        url,
		insertedAt: now,
		expiresAt:  now.Add(c.ttl),
	})

	if c.order.Len() > c.capacity {
		c.purgeExpiredLocked(now)
	}
	for c.order.Len() > c.capacity {
		c.removeLocked(c.order.Back())
		c.stats.Evictions++
	}

	return key
}

// Get returns the URL registered under key.
//
// ok is false when the key is unknown or its entry has expired; expired entries are dropped.
func (c *Cache) Get(key string) (url string, ok bool) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	el, found := c.entries[key]
	if !found {
		c.stats.Misses++
		return "", false
	}

	e := el.Value.(*entry)
	if !now.Before(e.expiresAt) {
		c.removeLocked(el)
		c.stats.Expired++
		c.stats.Misses++
		return "", false
	}

	c.order.MoveToFront(el)
	c.stats.Hits++
	return e.url, true
}

// PurgeExpired drops every expired entry and returns how many were removed.
func (c *Cache) PurgeExpired() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.purgeExpiredLocked(now)
}

// Len returns the number of entries, including expired ones not yet purged.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Size = c.order.Len()
	return stats
}

// Capacity returns the configured maximum number of entries.
func (c *Cache) Capacity() int { return c.capacity }

// TTL returns the configured entry lifetime.
func (c *Cache) TTL() time.Duration { return c.ttl }

func (c *Cache) purgeExpiredLocked(now time.Time) int {
	removed := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if !now.Before(el.Value.(*entry).expiresAt) {
			c.removeLocked(el)
			removed++
		}
		el = prev
	}
	c.stats.Expired += int64(removed)
	return removed
}

func (c *Cache) removeLocked(el *list.Element) {
	c.order.Remove(el)
	delete(c.entries, el.Value.(*entry).key)
}
