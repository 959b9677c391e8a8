package ratelimit

import (
	"context"
	"sync"
	"time"

	"garc/pkg/retry"
)

// Limiter paces outgoing requests
type Limiter interface {
	// Wait blocks until the rate limit allows another request or ctx is done
	Wait(ctx context.Context) error
}

// TokenBucket implements a token bucket rate limiter
type TokenBucket struct {
	capacity     int           // Maximum number of tokens
	tokens       int           // Current number of tokens
	refillPeriod time.Duration // Period after which bucket is refilled
	lastRefill   time.Time     // Last time the bucket was refilled
	clock        retry.Clock
	mu           sync.Mutex
}

// NewTokenBucket creates a new token bucket rate limiter
func NewTokenBucket(capacity int, refillPeriod time.Duration, clock retry.Clock) *TokenBucket {
	if clock == nil {
		clock = retry.SystemClock()
	}
	return &TokenBucket{
		capacity:     capacity,
		tokens:       capacity,
		refillPeriod: refillPeriod,
		lastRefill:   clock.Now(),
		clock:        clock,
	}
}

// PerMinute returns a limiter allowing n requests per minute, or nil when n <= 0
func PerMinute(n int, clock retry.Clock) Limiter {
	if n <= 0 {
		return nil
	}
	return NewTokenBucket(n, time.Minute, clock)
}

// take consumes a token if one is available
func (tb *TokenBucket) take() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}

	return false
}

// Wait blocks until a token is available
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for !tb.take() {
		tb.mu.Lock()
		timeUntilRefill := tb.refillPeriod - tb.clock.Now().Sub(tb.lastRefill)
		tb.mu.Unlock()

		if timeUntilRefill <= 0 {
			// Small sleep to prevent busy waiting
			timeUntilRefill = 100 * time.Millisecond
		}
		if err := tb.clock.Sleep(ctx, timeUntilRefill); err != nil {
			return err
		}
	}
	return nil
}

// refill adds tokens based on elapsed time
func (tb *TokenBucket) refill() {
	now := tb.clock.Now()
	elapsed := now.Sub(tb.lastRefill)

	if elapsed >= tb.refillPeriod {
		tb.tokens = tb.capacity
		tb.lastRefill = now
	}
}
