package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokenBucket_Disabled(t *testing.T) {
	limiter := NewTokenBucket(0, 5)
	_, ok := limiter.(Unlimited)
	require.True(t, ok)

	for i := 0; i < 100; i++ {
		assert.True(t, limiter.Allow())
	}
	assert.NoError(t, limiter.Wait(context.Background()))
}

func TestTokenBucket_Burst(t *testing.T) {
	limiter := NewTokenBucket(1, 2)

	assert.True(t, limiter.Allow())
	assert.True(t, limiter.Allow())
	assert.False(t, limiter.Allow())
}

func TestTokenBucket_WaitHonoursContext(t *testing.T) {
	limiter := NewTokenBucket(0.001, 1)
	require.True(t, limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.Error(t, limiter.Wait(ctx))
}

func TestUnlimited_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Unlimited{}.Wait(ctx), context.Canceled)
}
