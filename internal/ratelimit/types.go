package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of one check against a per-second budget.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// Limiter counts requests per key in one-second windows.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, now time.Time) (Result, error)
}

// Scope is the caller identity a key was built from.
type Scope int

const (
	ScopeNone Scope = iota
	ScopeIP
	ScopeUser
)

// window returns the unix second now falls in and the instant it closes.
func window(now time.Time) (int64, time.Time) {
	sec := now.Unix()
	return sec, time.Unix(sec+1, 0).UTC()
}

// decide turns a window count into a Result. count includes the current request.
func decide(count int64, limit int, reset time.Time) Result {
	if count > int64(limit) {
		return Result{Allowed: false, Reset: reset}
	}
	return Result{Allowed: true, Remaining: limit - int(count), Reset: reset}
}
