package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"stockalert/internal/market"
	"stockalert/internal/provider"
)

// MinInterval wraps a strategy and enforces a minimum time between calls.
// Concurrent calls will wait until the interval has elapsed since the last call,
// or return early if the context is canceled.
type MinInterval struct {
	S        provider.Strategy
	Interval time.Duration
	mu       sync.Mutex
	last     time.Time
}

func (m *MinInterval) Name() string { return m.S.Name() }

func (m *MinInterval) Fetch(ctx context.Context, req provider.Request) (market.Quote, error) {
	if m.Interval > 0 {
		m.mu.Lock()
		wait := time.Until(m.last.Add(m.Interval))
		m.mu.Unlock()
		if err := sleep(ctx, wait); err != nil {
			return market.Quote{}, err
		}
	}
	q, err := m.S.Fetch(ctx, req)
	if m.Interval > 0 {
		m.mu.Lock()
		m.last = time.Now()
		m.mu.Unlock()
	}
	return q, err
}

// Jitter sleeps a uniformly random duration in [Min, Max] before each
// outbound call so request timing does not look machine-generated.
type Jitter struct {
	Min, Max time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewJitter returns a Jitter. A nil rng uses a random seed.
func NewJitter(lo, hi time.Duration, rng *rand.Rand) *Jitter {
	if hi < lo {
		hi = lo
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Jitter{Min: lo, Max: hi, rng: rng}
}

// Next draws the next delay.
func (j *Jitter) Next() time.Duration {
	if j == nil || j.Max <= 0 {
		return 0
	}
	span := j.Max - j.Min
	if span <= 0 {
		return j.Min
	}
	j.mu.Lock()
	d := j.Min + time.Duration(j.rng.Int64N(int64(span)+1))
	j.mu.Unlock()
	return d
}

// Wait sleeps for Next() or until ctx is done.
func (j *Jitter) Wait(ctx context.Context) error {
	return sleep(ctx, j.Next())
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
