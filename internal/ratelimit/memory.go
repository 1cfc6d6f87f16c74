package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter keeps the counters of the current second only. Moving to a new
// second drops every counter at once.
type MemoryLimiter struct {
	mu     sync.Mutex
	second int64
	counts map[string]int64
}

// NewMemoryLimiter returns an empty MemoryLimiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{counts: make(map[string]int64)}
}

// Allow counts key in the second of now.
func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, now time.Time) (Result, error) {
	if limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	sec, reset := window(now)

	l.mu.Lock()
	defer l.mu.Unlock()
	if sec != l.second {
		l.second = sec
		clear(l.counts)
	}
	count := l.counts[key] + 1
	if count <= int64(limit) {
		l.counts[key] = count
	}
	return decide(count, limit, reset), nil
}

// Len returns how many keys are counted in the current second.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.counts)
}
