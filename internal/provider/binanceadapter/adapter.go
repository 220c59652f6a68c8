package binanceadapter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"stockalert/internal/market"
	"stockalert/internal/provider"
)

// TickerService is the 24h ticker call, narrowed for mocking.
type TickerService interface {
	Symbol(symbol string) TickerService
	Do(ctx context.Context) ([]*binance.PriceChangeStats, error)
}

// Client abstracts the Binance client for testing.
//
//go:generate mockgen -package=binanceadapter_test -destination=mock_client_test.go -source=adapter.go Client,TickerService
type Client interface {
	NewListPriceChangeStatsService() TickerService
}

type realClient struct {
	client *binance.Client
}

func (r *realClient) NewListPriceChangeStatsService() TickerService {
	return &realTickerService{service: r.client.NewListPriceChangeStatsService()}
}

type realTickerService struct {
	service *binance.ListPriceChangeStatsService
}

func (s *realTickerService) Symbol(symbol string) TickerService {
	s.service = s.service.Symbol(symbol)
	return s
}

func (s *realTickerService) Do(ctx context.Context) ([]*binance.PriceChangeStats, error) {
	return s.service.Do(ctx)
}

// quoteAssets lists the quote currencies traded as spot pairs. Fiat pairs
// never reach the exchange.
var quoteAssets = map[string]bool{
	"USDT": true, "USDC": true, "FDUSD": true, "BUSD": true, "BTC": true, "ETH": true,
}

type Config struct {
	Name string // default: Binance
	// BaseURL overrides the public REST endpoint when set.
	BaseURL string
}

// Adapter answers crypto currency pairs from the public 24h ticker.
type Adapter struct {
	name   string
	client Client
	now    func() time.Time
}

// NewPublic builds an adapter over an unauthenticated Binance client.
func NewPublic(cfg Config) *Adapter {
	c := binance.NewClient("", "")
	if cfg.BaseURL != "" {
		c.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return New(cfg, &realClient{client: c})
}

func New(cfg Config, client Client) *Adapter {
	if cfg.Name == "" {
		cfg.Name = "Binance"
	}
	return &Adapter{name: cfg.Name, client: client, now: time.Now}
}

func (a *Adapter) Name() string { return a.name }

func (a *Adapter) Fetch(ctx context.Context, req provider.Request) (market.Quote, error) {
	pair, err := market.ParsePair(req.Query)
	if err != nil {
		return market.Quote{}, err
	}
	if !quoteAssets[pair.Quote] {
		return market.Quote{}, fmt.Errorf("%s: not a spot pair: %w", pair, provider.ErrNoQuote)
	}
	symbol := pair.Base + pair.Quote

	stats, err := a.client.NewListPriceChangeStatsService().Symbol(symbol).Do(ctx)
	if err != nil {
		return market.Quote{}, fmt.Errorf("ticker %s: %w", symbol, err)
	}
	var st *binance.PriceChangeStats
	for _, s := range stats {
		if s != nil && strings.EqualFold(s.Symbol, symbol) {
			st = s
			break
		}
	}
	if st == nil {
		return market.Quote{}, fmt.Errorf("%s: %w", symbol, provider.ErrNoQuote)
	}

	price, err := decimal.NewFromString(st.LastPrice)
	if err != nil || !price.IsPositive() {
		return market.Quote{}, fmt.Errorf("%s: bad last price %q: %w", symbol, st.LastPrice, provider.ErrNoQuote)
	}
	q := market.Quote{
		Symbol:     pair.String(),
		Price:      price,
		Currency:   pair.Quote,
		Source:     a.name,
		ResolvedAt: a.now().UTC(),
	}
	if st.CloseTime > 0 {
		q.ResolvedAt = time.UnixMilli(st.CloseTime).UTC()
	}
	if pct, err := decimal.NewFromString(st.PriceChangePercent); err == nil {
		q.ChangePercent = pct.Round(2)
		q.ChangeKnown = true
	}
	return q, nil
}
