// Package resolver turns a user query into a Quote by walking an ordered
// chain of provider strategies behind a shared cache.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"stockalert/internal/httpx"
	"stockalert/internal/market"
	"stockalert/internal/provider"
	"stockalert/internal/provider/cache"
	"stockalert/internal/provider/ratelimit"
)

type Config struct {
	CacheTTL         time.Duration
	NegativeCacheTTL time.Duration
	CacheMaxItems    int
	// ProviderTimeout bounds each strategy call.
	ProviderTimeout time.Duration
	// MinDelay and MaxDelay bound the random wait before each strategy call.
	MinDelay time.Duration
	MaxDelay time.Duration
	// ChainTimeout bounds one shared chain run. Zero derives it from the
	// chain length, ProviderTimeout and MaxDelay.
	ChainTimeout time.Duration
	Ranges       market.Ranges
}

func DefaultConfig() Config {
	return Config{
		CacheTTL:         300 * time.Second,
		NegativeCacheTTL: 60 * time.Second,
		CacheMaxItems:    10000,
		ProviderTimeout:  10 * time.Second,
		MinDelay:         time.Second,
		MaxDelay:         3 * time.Second,
		Ranges:           market.DefaultRanges(),
	}
}

type Option func(*Resolver)

func WithLogger(l zerolog.Logger) Option { return func(r *Resolver) { r.log = l } }

// WithHeaderPool replaces the default browser profile pool.
func WithHeaderPool(p *httpx.HeaderPool) Option { return func(r *Resolver) { r.headers = p } }

// WithJitter replaces the delay source built from MinDelay/MaxDelay.
func WithJitter(j *ratelimit.Jitter) Option { return func(r *Resolver) { r.jitter = j } }

// WithClock sets the cache clock.
func WithClock(now func() time.Time) Option { return func(r *Resolver) { r.cache.Now = now } }

// Resolver owns the provider chains, the result cache and the request
// shaping state. Instances share nothing with each other.
type Resolver struct {
	cfg     Config
	chains  map[market.AssetClass][]provider.Strategy
	cache   *cache.Cache
	sf      singleflight.Group
	headers *httpx.HeaderPool
	jitter  *ratelimit.Jitter
	log     zerolog.Logger
}

func New(cfg Config, chains map[market.AssetClass][]provider.Strategy, opts ...Option) *Resolver {
	r := &Resolver{
		cfg:    cfg,
		chains: chains,
		cache: &cache.Cache{
			TTL:         cfg.CacheTTL,
			NegativeTTL: cfg.NegativeCacheTTL,
			MaxItems:    cfg.CacheMaxItems,
		},
		log: zerolog.Nop(),
	}
	for _, o := range opts {
		o(r)
	}
	if r.headers == nil {
		r.headers = httpx.NewHeaderPool(nil, nil)
	}
	if r.jitter == nil {
		r.jitter = ratelimit.NewJitter(cfg.MinDelay, cfg.MaxDelay, nil)
	}
	return r
}

// Resolve returns a quote for query, market.ErrNotFound when every strategy
// misses, or market.ErrInvalidQuery for a blank or malformed query.
//
// Concurrent calls for the same uncached key share one chain run. The run is
// detached from every caller's cancellation and bounded by ChainTimeout; each
// caller stops waiting when its own ctx ends.
func (r *Resolver) Resolve(ctx context.Context, class market.AssetClass, query string) (market.Quote, error) {
	q, err := validate(class, query)
	if err != nil {
		return market.Quote{}, err
	}
	if err := ctx.Err(); err != nil {
		return market.Quote{}, err
	}
	key := cacheKey(class, q)
	if e, ok := r.cache.Get(key); ok {
		if e.Found {
			return e.Quote, nil
		}
		return market.Quote{}, notFound(q)
	}

	ch := r.sf.DoChan(key, func() (any, error) {
		if e, ok := r.cache.Get(key); ok {
			if e.Found {
				return e.Quote, nil
			}
			return nil, notFound(q)
		}
		cctx := context.WithoutCancel(ctx)
		if d := r.chainTimeout(class); d > 0 {
			var cancel context.CancelFunc
			cctx, cancel = context.WithTimeout(cctx, d)
			defer cancel()
		}
		quote, err := r.runChain(cctx, class, q)
		if err != nil {
			if cctx.Err() != nil {
				return nil, cctx.Err()
			}
			r.cache.PutMiss(key)
			return nil, err
		}
		r.cache.Put(key, quote)
		return quote, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			r.log.Debug().Str("query", q).Msg("joined in-flight resolution")
		}
		if res.Err != nil {
			return market.Quote{}, res.Err
		}
		return res.Val.(market.Quote), nil
	case <-ctx.Done():
		return market.Quote{}, ctx.Err()
	}
}

func (r *Resolver) chainTimeout(class market.AssetClass) time.Duration {
	if r.cfg.ChainTimeout > 0 {
		return r.cfg.ChainTimeout
	}
	if r.cfg.ProviderTimeout <= 0 {
		return 0
	}
	return time.Duration(len(r.chains[class])) * (r.cfg.ProviderTimeout + r.cfg.MaxDelay)
}

func (r *Resolver) runChain(ctx context.Context, class market.AssetClass, q string) (market.Quote, error) {
	for _, s := range r.chains[class] {
		if err := ctx.Err(); err != nil {
			return market.Quote{}, err
		}
		log := r.log.With().Str("strategy", s.Name()).Str("query", q).Logger()
		quote, err := r.attempt(ctx, s, class, q)
		if err != nil {
			log.Debug().Err(err).Msg("strategy miss")
			continue
		}
		if !r.cfg.Ranges.Plausible(class, q, quote) {
			log.Debug().Str("price", quote.Price.String()).Str("currency", quote.Currency).Msg("quote outside plausible range")
			continue
		}
		return quote, nil
	}
	return market.Quote{}, notFound(q)
}

// attempt performs one shaped, time-boxed strategy call.
func (r *Resolver) attempt(ctx context.Context, s provider.Strategy, class market.AssetClass, q string) (quote market.Quote, err error) {
	if err := r.jitter.Wait(ctx); err != nil {
		return market.Quote{}, err
	}
	cctx := ctx
	if r.cfg.ProviderTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, r.cfg.ProviderTimeout)
		defer cancel()
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("strategy %s panicked: %v", s.Name(), rec)
		}
	}()
	quote, err = s.Fetch(cctx, provider.Request{Query: q, Class: class, Header: r.headers.Pick()})
	if err != nil {
		return market.Quote{}, err
	}
	if quote.Source == "" {
		quote.Source = s.Name()
	}
	if quote.ResolvedAt.IsZero() {
		quote.ResolvedAt = time.Now().UTC()
	}
	return quote, nil
}

// Strategies lists the chain for class in call order.
func (r *Resolver) Strategies(class market.AssetClass) []string {
	chain := r.chains[class]
	out := make([]string, 0, len(chain))
	for _, s := range chain {
		out = append(out, s.Name())
	}
	return out
}

// ProbeResult is one strategy's answer during a Probe.
type ProbeResult struct {
	Strategy  string        `json:"strategy"`
	Quote     *market.Quote `json:"quote,omitempty"`
	Plausible bool          `json:"plausible"`
	Error     string        `json:"error,omitempty"`
	ElapsedMS int64         `json:"elapsed_ms"`
}

// Probe calls every strategy for query, bypassing the cache, and reports
// each outcome. It still applies delays, header rotation and timeouts.
func (r *Resolver) Probe(ctx context.Context, class market.AssetClass, query string) ([]ProbeResult, error) {
	q, err := validate(class, query)
	if err != nil {
		return nil, err
	}
	chain := r.chains[class]
	out := make([]ProbeResult, 0, len(chain))
	for _, s := range chain {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		start := time.Now()
		quote, err := r.attempt(ctx, s, class, q)
		res := ProbeResult{Strategy: s.Name(), ElapsedMS: time.Since(start).Milliseconds()}
		if err != nil {
			res.Error = err.Error()
		} else {
			res.Quote = &quote
			res.Plausible = r.cfg.Ranges.Plausible(class, q, quote)
		}
		out = append(out, res)
	}
	return out, nil
}

// CacheLen reports the number of cached resolutions.
func (r *Resolver) CacheLen() int { return r.cache.Len() }

func validate(class market.AssetClass, query string) (string, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return "", fmt.Errorf("%w: empty query", market.ErrInvalidQuery)
	}
	if class == market.Currency {
		if _, err := market.ParsePair(q); err != nil {
			return "", err
		}
	}
	return q, nil
}

func cacheKey(class market.AssetClass, q string) string {
	return string(class) + ":" + market.NormalizeQuery(q)
}

func notFound(q string) error {
	return fmt.Errorf("%w: %s", market.ErrNotFound, q)
}

// IsNotFound reports whether err is a total resolution failure.
func IsNotFound(err error) bool { return errors.Is(err, market.ErrNotFound) }
