// Package ratelimit implements a per-route, per-client fixed-window request
// counter. Each key's window starts at its first request and is replaced,
// not incremented, once it is older than the window width.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// DefaultWindow is the window width used when none is configured.
const DefaultWindow = time.Minute

// Result is the outcome of a Check. RetryAfter is in whole seconds and only
// set when the request is denied.
type Result struct {
	Allowed    bool
	RetryAfter int
}

type record struct {
	windowStart time.Time
	count       int
}

// Limiter holds one counter store per logical route. It is safe for
// concurrent use; increments for a key are serialized.
type Limiter struct {
	window time.Duration
	now    func() time.Time

	mu          sync.Mutex
	routes      map[string]map[string]*record
	lastCleanup time.Time
}

type Option func(*Limiter)

// WithWindow overrides the window width.
func WithWindow(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.window = d
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

func New(opts ...Option) *Limiter {
	l := &Limiter{
		window: DefaultWindow,
		now:    time.Now,
		routes: make(map[string]map[string]*record),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastCleanup = l.now()
	return l
}

// Check counts one request for clientID on route and reports whether it is
// within maxRequests for the current window.
func (l *Limiter) Check(clientID, route string, maxRequests int) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.cleanupLocked(now)

	store, ok := l.routes[route]
	if !ok {
		store = make(map[string]*record)
		l.routes[route] = store
	}

	rec, ok := store[clientID]
	if !ok || now.Sub(rec.windowStart) >= l.window {
		rec = &record{windowStart: now}
		store[clientID] = rec
	}
	rec.count++

	if rec.count > maxRequests {
		remaining := rec.windowStart.Add(l.window).Sub(now)
		return Result{Allowed: false, RetryAfter: retryAfterSeconds(remaining)}
	}
	return Result{Allowed: true}
}

// Len returns the number of live records across all routes.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, store := range l.routes {
		n += len(store)
	}
	return n
}

// cleanupLocked drops stale records across all routes. It runs at most once
// per window width.
func (l *Limiter) cleanupLocked(now time.Time) {
	if now.Sub(l.lastCleanup) < l.window {
		return
	}
	l.lastCleanup = now

	for route, store := range l.routes {
		for key, rec := range store {
			if now.Sub(rec.windowStart) >= l.window {
				delete(store, key)
			}
		}
		if len(store) == 0 {
			delete(l.routes, route)
		}
	}
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
