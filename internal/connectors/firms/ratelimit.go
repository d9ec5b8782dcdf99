package firms

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Default client-side limit, kept well below the FIRMS map-key quota of
// 5000 transactions per 10 minutes.
const (
	defaultRequestsPerSecond = 2.0
	defaultBurstSize         = 5
)

// rateLimiter paces requests against the FIRMS API using a token bucket,
// with an additional backoff window after a 429 answer.
type rateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{
		limiter: rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), defaultBurstSize),
	}
}

// Wait blocks until a request can be made without exceeding the limit,
// respecting any backoff set by recordRateLimitError.
func (r *rateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if time.Now().Before(retryAt) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(retryAt)):
		}
	}

	return r.limiter.Wait(ctx)
}

// recordRateLimitError sets a backoff window after a 429 answer.
func (r *rateLimiter) recordRateLimitError(retryAfterSeconds int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if retryAfterSeconds <= 0 {
		retryAfterSeconds = 60
	}
	r.retryAt = time.Now().Add(time.Duration(retryAfterSeconds) * time.Second)
}
