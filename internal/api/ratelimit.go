package api

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter paces outbound requests. One limiter is shared by every fetch
// issued through a Client, including parallel fan-out workers.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter allows perSecond requests with the given burst. A
// non-positive rate disables limiting.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &RateLimiter{limiter: rate.NewLimiter(limit, burst)}
}

// Acquire blocks until a request may be issued or ctx is done.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
