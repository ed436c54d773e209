// Package ratelimit provides sliding window limiters for public endpoints.
// The in-memory limiter serves single instances and tests; the redis limiter
// shares counters across instances.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter decides whether one more request for key fits its window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// MemoryLimiter keeps a timestamp log per key.
type MemoryLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   map[string][]time.Time
	now    func() time.Time
}

// NewMemoryLimiter allows limit requests per window per key.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow records a hit for key if it fits the window.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	kept := prune(l.hits[key], now.Add(-l.window))
	if len(kept) >= l.limit {
		l.hits[key] = kept
		return false, nil
	}
	l.hits[key] = append(kept, now)
	return true, nil
}

// Cleanup drops keys whose whole log has aged out.
func (l *MemoryLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	for key, hits := range l.hits {
		if kept := prune(hits, cutoff); len(kept) == 0 {
			delete(l.hits, key)
		} else {
			l.hits[key] = kept
		}
	}
}

// Run calls Cleanup every interval until ctx is done.
func (l *MemoryLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Cleanup()
		}
	}
}

func (l *MemoryLimiter) keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}

func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return hits
	}
	return append(hits[:0:0], hits[i:]...)
}
