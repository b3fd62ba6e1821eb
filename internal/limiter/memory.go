package limiter

import (
	"context"
	"sync"
	"time"
)

type record struct {
	count       int
	windowReset time.Time
}

// Memory is a process-local fixed-window limiter.
type Memory struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu sync.Mutex
	m  map[string]*record
}

// NewMemory constructs an in-memory limiter admitting max attempts per window.
func NewMemory(max int, window time.Duration) *Memory {
	return &Memory{max: max, window: window, now: time.Now, m: make(map[string]*record)}
}

// WithClock overrides the limiter clock; for tests.
func (l *Memory) WithClock(now func() time.Time) *Memory {
	l.now = now
	return l
}

// Attempt admits the attempt unless the key already spent its budget for the
// current window. An expired record is reclaimed in place.
func (l *Memory) Attempt(_ context.Context, key string) (Decision, error) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.m[key]
	if !ok || now.After(rec.windowReset) {
		l.m[key] = &record{count: 1, windowReset: now.Add(l.window)}
		return Decision{Allowed: true}, nil
	}
	if rec.count < l.max {
		rec.count++
		return Decision{Allowed: true}, nil
	}
	return Decision{RetryAfter: rec.windowReset.Sub(now)}, nil
}

// Sweep drops every record whose window has elapsed, bounding memory under
// a churn of one-shot keys. Intended to run on a ticker.
func (l *Memory) Sweep() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, rec := range l.m {
		if now.After(rec.windowReset) {
			delete(l.m, k)
		}
	}
}
