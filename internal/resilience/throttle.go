package resilience

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Throttle enforces a fixed minimum interval between successive calls.
// The first call never waits.
type Throttle struct {
	interval time.Duration
	limiter  *rate.Limiter
}

// NewThrottle creates a throttle; a non-positive interval disables waiting
func NewThrottle(interval time.Duration) *Throttle {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Throttle{interval: interval, limiter: rate.NewLimiter(limit, 1)}
}

// Interval returns the configured spacing between calls
func (t *Throttle) Interval() time.Duration { return t.interval }

// Wait blocks until the next call is allowed. It fails straight away when
// ctx would expire first.
func (t *Throttle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}
