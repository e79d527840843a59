// Package cache memoizes offload results keyed by buffer shape and processing
// parameters. Entries expire after a TTL and the table is bounded, evicting
// the oldest-inserted entry first.
package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Default limits match the equalizer UI's expectations.
const (
	DefaultTTL     = 5 * time.Minute
	DefaultMaxSize = 30
)

// Options configures a Cache
type Options struct {
	TTL     time.Duration
	MaxSize int
}

// Cache is a bounded, time-expiring key/value memo.
// Expiry is enforced only on read; there is no janitor goroutine.
type Cache[V any] struct {
	mu      sync.Mutex
	store   *gocache.Cache
	order   []string // insertion order, oldest first
	ttl     time.Duration
	maxSize int
}

// New creates a cache. Zero options fall back to the defaults.
func New[V any](opts Options) *Cache[V] {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}
	return &Cache[V]{
		// cleanup interval 0 disables go-cache's janitor
		store:   gocache.New(opts.TTL, 0),
		order:   make([]string, 0, opts.MaxSize),
		ttl:     opts.TTL,
		maxSize: opts.MaxSize,
	}
}

// Get returns the value for key if present and not expired.
// An expired entry is removed as a side effect.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	raw, found := c.store.Get(key)
	if !found {
		// go-cache hides expired items without deleting them
		if c.removeOrderLocked(key) {
			c.store.Delete(key)
		}
		return zero, false
	}
	v, ok := raw.(V)
	if !ok {
		return zero, false
	}
	return v, true
}

// Set stores value under key. At capacity the oldest-inserted entry is
// evicted first. Overwriting a key moves it to the newest position.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.removeOrderLocked(key) {
		c.store.Delete(key)
	} else if len(c.order) >= c.maxSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		c.store.Delete(oldest)
	}

	c.store.Set(key, value, gocache.DefaultExpiration)
	c.order = append(c.order, key)
}

// Clear drops all entries immediately
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Flush()
	c.order = c.order[:0]
}

// Len returns the number of stored entries, including expired ones not yet purged
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// TTL returns the configured time-to-live
func (c *Cache[V]) TTL() time.Duration {
	return c.ttl
}

func (c *Cache[V]) removeOrderLocked(key string) bool {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return true
		}
	}
	return false
}

// Key builds a composite cache key from buffer length, sample rate and any
// extra processing parameters.
func Key(length, sampleRate int, params ...any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d:%d", length, sampleRate)
	for _, p := range params {
		fmt.Fprintf(&b, ":%v", p)
	}
	return b.String()
}
