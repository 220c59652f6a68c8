package provider

import (
	"context"
	"errors"
	"net/http"

	"stockalert/internal/market"
)

// ErrNoQuote is returned by a strategy whose payload held no usable price.
var ErrNoQuote = errors.New("no quote in payload")

// Request is a single lookup routed to a strategy.
type Request struct {
	// Query is the trimmed user query, e.g. "AAPL" or "USD/KRW".
	Query string
	Class market.AssetClass
	// Header is the per-call header profile chosen by the resolver.
	Header http.Header
}

// Strategy fetches a quote for one query from one source. Any error is a
// miss; the resolver moves on to the next strategy in its chain.
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, req Request) (market.Quote, error)
}

// Func adapts a function into a Strategy.
type Func struct {
	Label string
	F     func(ctx context.Context, req Request) (market.Quote, error)
}

func (f Func) Name() string { return f.Label }

func (f Func) Fetch(ctx context.Context, req Request) (market.Quote, error) {
	return f.F(ctx, req)
}
