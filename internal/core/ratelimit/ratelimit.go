// Package ratelimit bounds submission rates per (player, leaderboard) key.
//
// The limiter keeps one fixed-window counter per key. Counters whose window
// has fully elapsed are reclaimed opportunistically during Allow calls, so
// state never grows unbounded across quiet keys.
package ratelimit

import (
	"sync"
	"time"
)

// Default limiter configuration constants.
const (
	defaultLimit  = 100
	defaultWindow = time.Hour
)

type counter struct {
	start time.Time
	count int
}

// Limiter is a fixed-window rate limiter keyed by string.
type Limiter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	now       func() time.Time
	counters  map[string]*counter
	lastSweep time.Time
}

// Option applies a configuration option to the Limiter.
type Option func(*Limiter)

// WithLimit sets the maximum number of allowed calls per window.
func WithLimit(limit int) Option {
	return func(l *Limiter) {
		if limit > 0 {
			l.limit = limit
		}
	}
}

// WithWindow sets the window length.
func WithWindow(window time.Duration) Option {
	return func(l *Limiter) {
		if window > 0 {
			l.window = window
		}
	}
}

// WithClock overrides the wall clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// New constructs a limiter with configuration options.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		limit:    defaultLimit,
		window:   defaultWindow,
		now:      time.Now,
		counters: make(map[string]*counter),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastSweep = l.now()
	return l
}

// Allow records one call against key. It returns ok=true when the call is
// within the limit; otherwise ok=false with a retry-after hint pointing at
// the end of the current window.
func (l *Limiter) Allow(key string) (retryAfter time.Duration, ok bool) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.window {
		l.evictStale(now)
		l.lastSweep = now
	}

	c, exists := l.counters[key]
	if !exists || now.Sub(c.start) >= l.window {
		l.counters[key] = &counter{start: now, count: 1}
		return 0, true
	}
	if c.count >= l.limit {
		return c.start.Add(l.window).Sub(now), false
	}
	c.count++
	return 0, true
}

// evictStale drops counters whose window has fully elapsed.
// Must be called with l.mu held.
func (l *Limiter) evictStale(now time.Time) {
	for key, c := range l.counters {
		if now.Sub(c.start) >= l.window {
			delete(l.counters, key)
		}
	}
}

// Len returns the number of live counters.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.counters)
}
