// Package ratelimit enforces a minimum spacing between calls, used to keep
// hover sampling from flooding the prediction backend.
package ratelimit

import (
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// Limiter admits at most one call per MinInterval. Calls that arrive early
// are rejected, not queued. It is safe for concurrent use.
type Limiter struct {
	clock       clockwork.Clock
	limiter     *rate.Limiter
	minInterval time.Duration
}

// New creates a limiter. A non-positive minInterval admits every call.
// A nil clock uses real time.
func New(minInterval time.Duration, clock clockwork.Clock) *Limiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &Limiter{
		clock:       clock,
		limiter:     rate.NewLimiter(limit, 1),
		minInterval: minInterval,
	}
}

// Allow reports whether a call may proceed now and, if so, consumes the slot.
func (l *Limiter) Allow() bool {
	return l.limiter.AllowN(l.clock.Now(), 1)
}

// MinInterval returns the configured spacing.
func (l *Limiter) MinInterval() time.Duration { return l.minInterval }
