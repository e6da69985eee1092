package cache

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

const signedURL = "https://rr3---sn-a5mekn6d.googlevideo.com/videoplayback?expire=1700000000&sig=xyz&itag=18"

var hexKey = regexp.MustCompile(`^[0-9a-f]{12}$`)

func TestKey(t *testing.T) {
	t.Run("fixed length hex", func(t *testing.T) {
		if key := Key(signedURL); !hexKey.MatchString(key) {
			t.Errorf("Key() = %q, want 12 hex chars", key)
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		if Key(signedURL) != Key(signedURL) {
			t.Error("Key() should be deterministic")
		}
	})

	t.Run("distinct urls produce distinct keys", func(t *testing.T) {
		seen := make(map[string]string, 10000)
		for i := range 10000 {
			u := fmt.Sprintf("https://cdn.example/video.mp4?sig=%d", i)
			key := Key(u)
			if prev, ok := seen[key]; ok {
				t.Fatalf("collision between %q and %q", prev, u)
			}
			seen[key] = u
		}
	})
}

func TestCache(t *testing.T) {
	t.Run("put is idempotent", func(t *testing.T) {
		c := New(Options{})

		first := c.Put(signedURL)
		second := c.Put(signedURL)

		if first != second {
			t.Errorf("Put() returned %q then %q", first, second)
		}
		if c.Len() != 1 {
			t.Errorf("expected a single entry, got %d", c.Len())
		}
		if stats := c.Stats(); stats.Refreshes != 1 {
			t.Errorf("expected 1 refresh, got %d", stats.Refreshes)
		}
	})

	t.Run("round trip", func(t *testing.T) {
		c := New(Options{})

		long := signedURL + "&pad=" + strings.Repeat("a", 2100)
		for _, u := range []string{signedURL, long} {
			got, ok := c.Get(c.Put(u))
			if !ok || got != u {
				t.Errorf("Get(Put(u)) = %q, %v", got, ok)
			}
		}
	})

	t.Run("unknown key is a miss", func(t *testing.T) {
		c := New(Options{})

		if _, ok := c.Get("doesnotexist"); ok {
			t.Error("expected a miss")
		}
		if stats := c.Stats(); stats.Misses != 1 {
			t.Errorf("expected 1 miss, got %d", stats.Misses)
		}
	})

	t.Run("entries expire after ttl", func(t *testing.T) {
		clock := newFakeClock()
		c := New(Options{TTL: time.Hour, Now: clock.Now})

		key := c.Put(signedURL)

		clock.Advance(time.Hour - time.Second)
		if _, ok := c.Get(key); !ok {
			t.Fatal("expected hit before ttl")
		}

		clock.Advance(2 * time.Second)
		if _, ok := c.Get(key); ok {
			t.Error("expected miss after ttl")
		}
		if c.Len() != 0 {
			t.Errorf("expired entry should be dropped, len = %d", c.Len())
		}
	})

	t.Run("get does not extend ttl", func(t *testing.T) {
		clock := newFakeClock()
		c := New(Options{TTL: time.Minute, Now: clock.Now})

		key := c.Put(signedURL)
		for range 5 {
			clock.Advance(11 * time.Second)
			c.Get(key)
		}

		clock.Advance(10 * time.Second)
		if _, ok := c.Get(key); ok {
			t.Error("reads must not extend the ttl")
		}
	})

	t.Run("put refreshes ttl", func(t *testing.T) {
		clock := newFakeClock()
		c := New(Options{TTL: time.Minute, Now: clock.Now})

		key := c.Put(signedURL)
		clock.Advance(50 * time.Second)
		c.Put(signedURL)
		clock.Advance(50 * time.Second)

		if _, ok := c.Get(key); !ok {
			t.Error("re-registering should refresh the ttl")
		}
	})

	t.Run("evicts least recently used", func(t *testing.T) {
		c := New(Options{Capacity: 256})

		keys := make([]string, 256)
		for i := range keys {
			keys[i] = c.Put(fmt.Sprintf("https://cdn.example/%d.mp4", i))
		}

		overflow := c.Put("https://cdn.example/256.mp4")

		if c.Len() != 256 {
			t.Errorf("expected 256 entries, got %d", c.Len())
		}
		if _, ok := c.Get(keys[0]); ok {
			t.Error("least recently used entry should be evicted")
		}
		if _, ok := c.Get(overflow); !ok {
			t.Error("newest entry should be present")
		}
		if stats := c.Stats(); stats.Evictions != 1 {
			t.Errorf("expected 1 eviction, got %d", stats.Evictions)
		}
	})

	t.Run("get refreshes recency", func(t *testing.T) {
		c := New(Options{Capacity: 2})

		a := c.Put("https://cdn.example/a.mp4")
		b := c.Put("https://cdn.example/b.mp4")
		c.Get(a)
		c.Put("https://cdn.example/c.mp4")

		if _, ok := c.Get(a); !ok {
			t.Error("recently read entry should survive")
		}
		if _, ok := c.Get(b); ok {
			t.Error("untouched entry should be evicted")
		}
	})

	t.Run("expired entries are purged before evicting live ones", func(t *testing.T) {
		clock := newFakeClock()
		c := New(Options{Capacity: 2, TTL: time.Minute, Now: clock.Now})

		c.Put("https://cdn.example/old.mp4")
		clock.Advance(30 * time.Second)
		live := c.Put("https://cdn.example/live.mp4")
		clock.Advance(31 * time.Second)
		c.Put("https://cdn.example/new.mp4")

		if _, ok := c.Get(live); !ok {
			t.Error("live entry should not be evicted while an expired one exists")
		}
		stats := c.Stats()
		if stats.Evictions != 0 || stats.Expired != 1 {
			t.Errorf("expected 0 evictions and 1 expiry, got %+v", stats)
		}
	})

	t.Run("PurgeExpired", func(t *testing.T) {
		clock := newFakeClock()
		c := New(Options{TTL: time.Minute, Now: clock.Now})

		c.Put("https://cdn.example/a.mp4")
		c.Put("https://cdn.example/b.mp4")
		clock.Advance(2 * time.Minute)
		c.Put("https://cdn.example/c.mp4")

		if n := c.PurgeExpired(); n != 2 {
			t.Errorf("PurgeExpired() = %d, want 2", n)
		}
		if c.Len() != 1 {
			t.Errorf("expected 1 entry, got %d", c.Len())
		}
	})

	t.Run("colliding put keeps the live mapping", func(t *testing.T) {
		clock := newFakeClock()
		c := New(Options{TTL: time.Hour, Now: clock.Now})
		c.key = func(string) string { return "000000000000" }

		key := c.Put(signedURL)
		clock.Advance(time.Minute)
		if got := c.Put("https://cdn.example/other.mp4"); got != key {
			t.Errorf("Put() = %q, want %q", got, key)
		}

		if got, ok := c.Get(key); !ok || got != signedURL {
			t.Errorf("Get(%q) = %q, %v, want the original url", key, got, ok)
		}
		if stats := c.Stats(); stats.Collisions != 1 || stats.Size != 1 {
			t.Errorf("stats = %+v", stats)
		}

		clock.Advance(time.Hour - time.Minute)
		if _, ok := c.Get(key); ok {
			t.Error("collision extended the original entry's ttl")
		}
	})

	t.Run("colliding put takes an expired slot", func(t *testing.T) {
		clock := newFakeClock()
		c := New(Options{TTL: time.Hour, Now: clock.Now})
		c.key = func(string) string { return "000000000000" }

		key := c.Put(signedURL)
		clock.Advance(2 * time.Hour)
		c.Put("https://cdn.example/other.mp4")

		if got, ok := c.Get(key); !ok || got != "https://cdn.example/other.mp4" {
			t.Errorf("Get(%q) = %q, %v", key, got, ok)
		}
		if stats := c.Stats(); stats.Collisions != 0 {
			t.Errorf("expired slot counted as collision: %+v", stats)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		c := New(Options{})
		if c.Capacity() != DefaultCapacity || c.TTL() != DefaultTTL {
			t.Errorf("unexpected defaults %d %v", c.Capacity(), c.TTL())
		}
	})

	t.Run("isolated instances", func(t *testing.T) {
		a, b := New(Options{}), New(Options{})
		key := a.Put(signedURL)
		if _, ok := b.Get(key); ok {
			t.Error("instances must not share state")
		}
	})
}

func TestCacheConcurrency(t *testing.T) {
	c := New(Options{Capacity: 64})

	var wg sync.WaitGroup
	keys := make(chan string, 400)
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				u := fmt.Sprintf("https://cdn.example/%d.mp4", i%20)
				key := c.Put(u)
				keys <- key
				if got, ok := c.Get(key); ok && got != u {
					t.Errorf("worker %d: Get(%s) = %s, want %s", w, key, got, u)
				}
			}
		}()
	}
	wg.Wait()
	close(keys)

	distinct := make(map[string]struct{})
	for k := range keys {
		distinct[k] = struct{}{}
	}
	if len(distinct) != 20 {
		t.Errorf("concurrent puts of 20 urls produced %d keys", len(distinct))
	}
	if c.Len() != 20 {
		t.Errorf("expected 20 entries, got %d", c.Len())
	}
}
