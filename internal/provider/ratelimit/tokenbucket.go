package ratelimit

import (
	"context"
	"sync"
	"time"

	"stockalert/internal/market"
	"stockalert/internal/provider"
)

// TokenBucket allows bursts of up to capacity calls and refills at rate
// tokens per second. It starts full.
type TokenBucket struct {
	rate     float64
	capacity float64

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

func NewTokenBucket(tokensPerSecond float64, burst int) *TokenBucket {
	if tokensPerSecond <= 0 {
		tokensPerSecond = 1e-7
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucket{
		rate:     tokensPerSecond,
		capacity: float64(burst),
		tokens:   float64(burst),
		last:     time.Now(),
	}
}

// PerMinute builds a bucket from a requests-per-minute budget.
func PerMinute(rpm, burst int) *TokenBucket {
	return NewTokenBucket(float64(rpm)/60.0, burst)
}

// take consumes a token if one is available. Otherwise it reports how long
// until the next one accrues.
func (tb *TokenBucket) take(now time.Time) time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if dt := now.Sub(tb.last).Seconds(); dt > 0 {
		tb.tokens = min(tb.capacity, tb.tokens+dt*tb.rate)
		tb.last = now
	}
	if tb.tokens >= 1 {
		tb.tokens--
		return 0
	}
	return max(time.Duration((1-tb.tokens)/tb.rate*float64(time.Second)), time.Millisecond)
}

// Wait blocks until a token is taken or ctx is done.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		d := tb.take(time.Now())
		if d == 0 {
			return nil
		}
		if err := sleep(ctx, d); err != nil {
			return err
		}
	}
}

// TokenBucketStrategy gates a strategy with a token bucket.
type TokenBucketStrategy struct {
	S  provider.Strategy
	TB *TokenBucket
}

func (t *TokenBucketStrategy) Name() string { return t.S.Name() }

func (t *TokenBucketStrategy) Fetch(ctx context.Context, req provider.Request) (market.Quote, error) {
	if t.TB != nil {
		if err := t.TB.Wait(ctx); err != nil {
			return market.Quote{}, err
		}
	}
	return t.S.Fetch(ctx, req)
}
