package oai

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter enforces the minimum spacing between outbound requests that
// arxiv.org mandates: one connection, one request every few seconds. The
// harvesting flow is strictly sequential, so there is exactly one caller.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter returns a limiter permitting one request per delay. The
// first call passes immediately.
func NewRateLimiter(delay time.Duration) *RateLimiter {
	return &RateLimiter{limiter: rate.NewLimiter(rate.Every(delay), 1)}
}

// Wait blocks until delay has elapsed since the previously permitted
// request, or until ctx is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}
