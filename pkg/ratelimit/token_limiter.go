package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// TokenLimiter enforces a per-minute token budget on top of x/time/rate. It
// is used for AI provider quotas that are expressed in tokens rather than
// requests.
type TokenLimiter struct {
	limiter *rate.Limiter
	max     int
}

// NewTokenLimiter creates a limiter that replenishes maxPerMinute tokens over
// the course of a minute, with a full-minute burst.
func NewTokenLimiter(maxPerMinute int) *TokenLimiter {
	return &TokenLimiter{
		limiter: rate.NewLimiter(rate.Limit(float64(maxPerMinute)/60.0), maxPerMinute),
		max:     maxPerMinute,
	}
}

// Wait blocks until the given number of tokens is available or the context is
// done. Requests larger than the full budget are clamped so they wait for a
// full bucket instead of failing outright.
func (t *TokenLimiter) Wait(ctx context.Context, tokens int) error {
	if tokens <= 0 {
		return nil
	}
	if tokens > t.max {
		tokens = t.max
	}
	return t.limiter.WaitN(ctx, tokens)
}

// GetRemaining returns the number of tokens currently available.
func (t *TokenLimiter) GetRemaining() int {
	return int(t.limiter.Tokens())
}
