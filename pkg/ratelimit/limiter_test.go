package ratelimit

import (
	"context"
	"testing"
	"time"

	"garc/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucket(t *testing.T) {
	clock := retry.NewFakeClock(time.Unix(0, 0))
	tb := NewTokenBucket(5, time.Second, clock)

	for i := 0; i < 5; i++ {
		assert.True(t, tb.take(), "token %d", i+1)
	}
	assert.False(t, tb.take(), "bucket should be empty")

	require.NoError(t, clock.Sleep(context.Background(), time.Second+100*time.Millisecond))
	assert.True(t, tb.take(), "bucket should refill after the period")
}

func TestTokenBucketWaitAdvancesClock(t *testing.T) {
	clock := retry.NewFakeClock(time.Unix(0, 0))
	tb := NewTokenBucket(2, time.Minute, clock)

	for i := 0; i < 3; i++ {
		require.NoError(t, tb.Wait(context.Background()))
	}

	assert.Equal(t, []time.Duration{time.Minute}, clock.Slept())
}

func TestTokenBucketWaitCancelled(t *testing.T) {
	clock := retry.NewFakeClock(time.Unix(0, 0))
	tb := NewTokenBucket(1, time.Minute, clock)
	require.True(t, tb.take())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, tb.Wait(ctx), context.Canceled)
}

func TestPerMinute(t *testing.T) {
	assert.Nil(t, PerMinute(0, nil))
	assert.Nil(t, PerMinute(-3, nil))

	limiter := PerMinute(10, retry.NewFakeClock(time.Unix(0, 0)))
	require.NotNil(t, limiter)
	require.NoError(t, limiter.Wait(context.Background()))
}
