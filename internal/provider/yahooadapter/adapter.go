package yahooadapter

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stockalert/internal/market"
	"stockalert/internal/provider"
	"stockalert/internal/provider/yahoo"
)

type Config struct {
	Name string // display name, default: YahooChart
}

// Adapter exposes the chart API as a provider.Strategy for equities and,
// through Yahoo's "BASEQUOTE=X" tickers, fiat currency pairs.
type Adapter struct {
	cfg    Config
	client *yahoo.ChartAPIClient
	now    func() time.Time
}

func New(cfg Config, client *yahoo.ChartAPIClient) *Adapter {
	if cfg.Name == "" {
		cfg.Name = "YahooChart"
	}
	return &Adapter{cfg: cfg, client: client, now: time.Now}
}

func (a *Adapter) Name() string { return a.cfg.Name }

func (a *Adapter) Fetch(ctx context.Context, req provider.Request) (market.Quote, error) {
	symbol, ticker, err := tickerFor(req)
	if err != nil {
		return market.Quote{}, err
	}
	meta, err := a.client.GetChartMeta(ctx, ticker, yahoo.WithHeader(req.Header))
	if err != nil {
		return market.Quote{}, err
	}
	if meta.RegularMarketPrice == nil || !finite(*meta.RegularMarketPrice) || *meta.RegularMarketPrice <= 0 {
		return market.Quote{}, fmt.Errorf("%s: %w", ticker, provider.ErrNoQuote)
	}

	q := market.Quote{
		Symbol:     symbol,
		Price:      decimal.NewFromFloat(*meta.RegularMarketPrice),
		Currency:   meta.Currency,
		Source:     a.cfg.Name,
		ResolvedAt: a.now().UTC(),
	}
	switch {
	case meta.RegularMarketChangePercent != nil && finite(*meta.RegularMarketChangePercent):
		q.ChangePercent = decimal.NewFromFloat(*meta.RegularMarketChangePercent).Round(2)
		q.ChangeKnown = true
	case prevClose(meta) > 0:
		prev := decimal.NewFromFloat(prevClose(meta))
		q.ChangePercent = q.Price.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).Round(2)
		q.ChangeKnown = true
	}
	return q, nil
}

func prevClose(m *yahoo.Meta) float64 {
	if m.PreviousClose != nil && finite(*m.PreviousClose) {
		return *m.PreviousClose
	}
	if m.ChartPreviousClose != nil && finite(*m.ChartPreviousClose) {
		return *m.ChartPreviousClose
	}
	return 0
}

func tickerFor(req provider.Request) (symbol, ticker string, err error) {
	if req.Class == market.Currency {
		p, err := market.ParsePair(req.Query)
		if err != nil {
			return "", "", err
		}
		return p.String(), p.Base + p.Quote + "=X", nil
	}
	s := strings.ToUpper(strings.TrimSpace(req.Query))
	return s, s, nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
