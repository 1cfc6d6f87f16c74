package ratelimit

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// breakerCooldown is how long Redis is skipped after a failure.
const breakerCooldown = 30 * time.Second

// breaker remembers a Redis failure so the memory backend serves until the
// cooldown ends.
type breaker struct {
	mu        sync.Mutex
	openUntil time.Time
}

// open reports whether Redis must be skipped at now.
func (b *breaker) open(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return now.Before(b.openUntil)
}

// trip starts a cooldown unless one is already running.
func (b *breaker) trip(err error, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if now.Before(b.openUntil) {
		return
	}
	b.openUntil = now.Add(breakerCooldown)
	log.WithError(err).WithField("cooldown", breakerCooldown).Warn("rate limit: redis unavailable, using memory")
}
