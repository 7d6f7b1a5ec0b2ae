// Package cache memoizes computed insights per user for a limited time.
package cache

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	DefaultTTL  = 10 * time.Minute
	DefaultSize = 1000
)

// Key identifies one cached result.
type Key struct {
	UserID   string
	Kind     string
	Days     int
	Provider string
}

func (k Key) String() string {
	return fmt.Sprintf("%s::%s::%d::%s", k.UserID, k.Kind, k.Days, k.Provider)
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a size-bounded LRU whose entries also expire after a TTL.
type Cache[V any] struct {
	// mu makes the expiry check and removal in Get atomic with Put.
	mu      sync.Mutex
	entries *lru.Cache[Key, entry[V]]
	now     func() time.Time
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New creates a cache holding at most size entries.
func New[V any](size int, opts ...Option) (*Cache[V], error) {
	if size <= 0 {
		size = DefaultSize
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	entries, err := lru.New[Key, entry[V]](size)
	if err != nil {
		return nil, fmt.Errorf("cache.New: %w", err)
	}
	return &Cache[V]{entries: entries, now: o.now}, nil
}

// Get returns the value for key if it has not expired. Expired entries are
// removed.
func (c *Cache[V]) Get(key Key) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e, ok := c.entries.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	if !now.Before(e.expiresAt) {
		c.entries.Remove(key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Put stores value under key until ttl from now, replacing any previous entry.
func (c *Cache[V]) Put(key Key, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.Add(key, entry[V]{value: value, expiresAt: c.now().Add(ttl)})
}
