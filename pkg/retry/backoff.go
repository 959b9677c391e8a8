package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	errs "garc/pkg/errors"
)

// BackoffStrategy defines the interface for different backoff strategies
type BackoffStrategy interface {
	// NextDelay returns the delay before the given attempt (1-based)
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff implements exponential backoff with jitter
type ExponentialBackoff struct {
	// BaseDelay is the initial delay duration
	BaseDelay time.Duration
	// MaxDelay is the maximum delay duration
	MaxDelay time.Duration
	// Multiplier is the factor by which delay increases
	Multiplier float64
	// JitterFactor adds randomness (0.0 to 1.0)
	JitterFactor float64
}

// DefaultExponentialBackoff returns a backoff with sensible defaults
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// NextDelay calculates the next delay with exponential backoff and jitter
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt-1))
	if delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}

	if eb.JitterFactor > 0 {
		jitter := delay * eb.JitterFactor
		delay += (rand.Float64() * 2 * jitter) - jitter
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// ConstantBackoff implements constant delay backoff
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns a constant delay
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Policy maps transient conditions to a backoff strategy and a retry ceiling
type Policy struct {
	NotFound    BackoffStrategy
	ServerError BackoffStrategy
	RateLimit   BackoffStrategy
	Network     BackoffStrategy

	// MaxHTTPErrors bounds retries of 404 and 5xx responses for one request
	MaxHTTPErrors int
	// MaxConnectionErrors bounds consecutive connection failures for one request
	MaxConnectionErrors int
}

// NewPolicy builds a fixed-interval policy, as the API's transient failures
// clear on their own rather than under load shedding
func NewPolicy(notFound, serverError, rateLimit time.Duration, maxHTTPErrors, maxConnectionErrors int) *Policy {
	return &Policy{
		NotFound:            &ConstantBackoff{Delay: notFound},
		ServerError:         &ConstantBackoff{Delay: serverError},
		RateLimit:           &ConstantBackoff{Delay: rateLimit},
		Network:             DefaultExponentialBackoff(),
		MaxHTTPErrors:       maxHTTPErrors,
		MaxConnectionErrors: maxConnectionErrors,
	}
}

// BackoffFor returns the strategy for an error type
func (p *Policy) BackoffFor(errorType errs.ErrorType) BackoffStrategy {
	switch errorType {
	case errs.ErrorTypeNotFound:
		return p.NotFound
	case errs.ErrorTypeServerError:
		return p.ServerError
	case errs.ErrorTypeRateLimit:
		return p.RateLimit
	default:
		return p.Network
	}
}
