package polygonadapter

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/shopspring/decimal"

	"stockalert/internal/market"
	"stockalert/internal/provider"
)

// AggsClient is the slice of the Polygon REST client this adapter uses.
//
//go:generate mockgen -package=polygonadapter_test -destination=mock_aggs_client_test.go -source=adapter.go AggsClient
type AggsClient interface {
	GetPreviousCloseAgg(ctx context.Context, params *models.GetPreviousCloseAggParams, options ...models.RequestOption) (*models.GetPreviousCloseAggResponse, error)
}

type Config struct {
	Name     string // default: Polygon
	Currency string // default: USD
}

// Adapter resolves US equities from the previous-session aggregate. It is a
// structured fallback behind live sources, so the close is labelled as such
// in Source.
type Adapter struct {
	cfg    Config
	client AggsClient
}

// NewFromKey builds an adapter over the real REST client.
func NewFromKey(cfg Config, apiKey string) *Adapter {
	return New(cfg, polygon.New(apiKey))
}

func New(cfg Config, client AggsClient) *Adapter {
	if cfg.Name == "" {
		cfg.Name = "Polygon"
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	return &Adapter{cfg: cfg, client: client}
}

func (a *Adapter) Name() string { return a.cfg.Name }

func (a *Adapter) Fetch(ctx context.Context, req provider.Request) (market.Quote, error) {
	ticker := strings.ToUpper(strings.TrimSpace(req.Query))
	adjusted := true
	res, err := a.client.GetPreviousCloseAgg(ctx, &models.GetPreviousCloseAggParams{
		Ticker:   ticker,
		Adjusted: &adjusted,
	})
	if err != nil {
		return market.Quote{}, err
	}
	if res == nil || len(res.Results) == 0 {
		return market.Quote{}, fmt.Errorf("%s: %w", ticker, provider.ErrNoQuote)
	}
	agg := res.Results[0]
	if agg.Close <= 0 || math.IsNaN(agg.Close) || math.IsInf(agg.Close, 0) {
		return market.Quote{}, fmt.Errorf("%s: bad close: %w", ticker, provider.ErrNoQuote)
	}

	q := market.Quote{
		Symbol:     ticker,
		Price:      decimal.NewFromFloat(agg.Close),
		Currency:   a.cfg.Currency,
		Source:     a.cfg.Name + ":prev_close",
		ResolvedAt: time.Time(agg.Timestamp).UTC(),
	}
	if agg.Open > 0 {
		open := decimal.NewFromFloat(agg.Open)
		q.ChangePercent = q.Price.Sub(open).Div(open).Mul(decimal.NewFromInt(100)).Round(2)
		q.ChangeKnown = true
	}
	if q.ResolvedAt.IsZero() || q.ResolvedAt.Unix() <= 0 {
		q.ResolvedAt = time.Now().UTC()
	}
	return q, nil
}
