package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	errs "garc/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{6, 1 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, backoff.NextDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestExponentialBackoffJitterStaysInBounds(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	for i := 0; i < 20; i++ {
		delay := backoff.NextDelay(2)
		assert.GreaterOrEqual(t, delay, 140*time.Millisecond)
		assert.LessOrEqual(t, delay, 260*time.Millisecond)
	}
}

func TestConstantBackoff(t *testing.T) {
	backoff := &ConstantBackoff{Delay: time.Second}
	assert.Equal(t, time.Duration(0), backoff.NextDelay(0))
	assert.Equal(t, time.Second, backoff.NextDelay(1))
	assert.Equal(t, time.Second, backoff.NextDelay(50))
}

func TestPolicyBackoffFor(t *testing.T) {
	policy := NewPolicy(time.Second, 2*time.Second, time.Minute, 4, 3)

	assert.Equal(t, time.Second, policy.BackoffFor(errs.ErrorTypeNotFound).NextDelay(1))
	assert.Equal(t, 2*time.Second, policy.BackoffFor(errs.ErrorTypeServerError).NextDelay(3))
	assert.Equal(t, time.Minute, policy.BackoffFor(errs.ErrorTypeRateLimit).NextDelay(1))
	assert.IsType(t, &ExponentialBackoff{}, policy.BackoffFor(errs.ErrorTypeNetwork))
	assert.Equal(t, 4, policy.MaxHTTPErrors)
	assert.Equal(t, 3, policy.MaxConnectionErrors)
}

func TestRetryWithSuccess(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	attempts := 0

	err := Do(func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}, &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: 10 * time.Second},
		RetryIf:     func(err error) bool { return true },
		Clock:       clock,
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 20*time.Second, clock.Elapsed())
}

func TestRetryWithMaxAttemptsExceeded(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	attempts := 0
	persistent := errors.New("persistent error")

	err := Do(func() error {
		attempts++
		return persistent
	}, &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: time.Second},
		RetryIf:     func(err error) bool { return true },
		Clock:       clock,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, persistent)
	assert.Equal(t, 3, attempts)
	// no sleep after the final attempt
	assert.Len(t, clock.Slept(), 2)
}

func TestRetryWithNonRetryableError(t *testing.T) {
	attempts := 0
	authError := errs.New(errs.ErrorTypeMissingCredentials, 0, "no account")

	err := Do(func() error {
		attempts++
		return authError
	}, &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
		Clock:       NewFakeClock(time.Now()),
	})

	assert.Same(t, authError, err)
	assert.Equal(t, 1, attempts)
}

func TestNetworkOnly(t *testing.T) {
	assert.True(t, NetworkOnly(errs.New(errs.ErrorTypeNetwork, 0, "reset")))
	assert.False(t, NetworkOnly(errs.New(errs.ErrorTypeAuthProtocol, 0, "no token")))
	assert.False(t, NetworkOnly(errors.New("plain")))
}

func TestRetryWithContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	err := Do(func() error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("error")
	}, &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Second},
		RetryIf:     func(err error) bool { return true },
		Context:     ctx,
		Clock:       NewFakeClock(time.Now()),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, attempts)
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	result, err := DoWithResult(func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("temporary error")
		}
		return "success", nil
	}, &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     func(err error) bool { return true },
		Clock:       NewFakeClock(time.Now()),
	})

	require.NoError(t, err)
	assert.Equal(t, "success", result)
	assert.Equal(t, 2, attempts)
}

func TestWaitHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Wait(ctx, time.Hour), context.Canceled)
	assert.NoError(t, Wait(context.Background(), 0))
}

func TestFakeClockAdvances(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewFakeClock(start)

	require.NoError(t, clock.Sleep(context.Background(), time.Minute))
	require.NoError(t, clock.Sleep(context.Background(), 30*time.Second))

	assert.Equal(t, start.Add(90*time.Second), clock.Now())
	assert.Equal(t, []time.Duration{time.Minute, 30 * time.Second}, clock.Slept())
}
