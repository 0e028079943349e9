package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenLimiter_ConsumesBudget(t *testing.T) {
	tl := NewTokenLimiter(600)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, tl.Wait(ctx, 200))
	assert.InDelta(t, 400, tl.GetRemaining(), 20)
}

func TestTokenLimiter_ClampsOversizedRequest(t *testing.T) {
	tl := NewTokenLimiter(100)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// A request above the full budget waits for a full bucket rather than
	// erroring, so a fresh limiter serves it immediately.
	require.NoError(t, tl.Wait(ctx, 5000))
	assert.Less(t, tl.GetRemaining(), 10)
}

func TestTokenLimiter_ZeroTokensIsFree(t *testing.T) {
	tl := NewTokenLimiter(1)
	require.NoError(t, tl.Wait(context.Background(), 0))
}

func TestTokenLimiter_RespectsContextCancellation(t *testing.T) {
	tl := NewTokenLimiter(60)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, tl.Wait(ctx, 60))
	// Bucket is empty now; the next wait cannot be served before the deadline.
	err := tl.Wait(ctx, 60)
	assert.Error(t, err)
}
