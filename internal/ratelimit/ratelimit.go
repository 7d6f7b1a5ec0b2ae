// Package ratelimit implements a per-user fixed-window request counter.
package ratelimit

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	DefaultMaxRequests = 10
	DefaultWindow      = time.Hour
)

type entry struct {
	count   int
	resetAt time.Time
}

// Limiter admits at most maxRequests per user in each window. Entries expire
// at their window reset time and are swept by a background janitor.
type Limiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	entries     *gocache.Cache
	now         func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func New(maxRequests int, window time.Duration, opts ...Option) *Limiter {
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}
	l := &Limiter{
		maxRequests: maxRequests,
		window:      window,
		entries:     gocache.New(window, window),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow records a request for userID and reports whether it is within the
// limit. Rejected requests still count against the current window.
func (l *Limiter) Allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e := entry{resetAt: now.Add(l.window)}
	if v, ok := l.entries.Get(userID); ok {
		e = v.(entry)
	}
	if now.After(e.resetAt) {
		e = entry{resetAt: now.Add(l.window)}
	}
	e.count++

	ttl := e.resetAt.Sub(now)
	if ttl <= 0 {
		ttl = time.Nanosecond
	}
	l.entries.Set(userID, e, ttl)
	return e.count <= l.maxRequests
}
