package exchangerate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"stockalert/internal/httpx"
	"stockalert/internal/market"
	"stockalert/internal/provider"
)

type Config struct {
	Name string
	// URL is the latest-rates endpoint; the base currency code is appended.
	// With an API key the v6 layout "{URL}{key}/latest/{BASE}" is used.
	URL    string
	APIKey string
	// TableTTL caches the full rate table per base currency. Zero disables it.
	TableTTL time.Duration
}

// Provider reads fiat conversion tables and answers pair lookups.
type Provider struct {
	cfg    Config
	client *httpx.Client
	now    func() time.Time

	mu     sync.RWMutex
	tables map[string]table
}

type table struct {
	rates   map[string]json.Number
	updated time.Time
	expires time.Time
}

func New(cfg Config, hc *httpx.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "ExchangeRateAPI"
	}
	if cfg.URL == "" {
		cfg.URL = "https://api.exchangerate-api.com/v4/latest/"
	}
	return &Provider{cfg: cfg, client: hc, now: time.Now}
}

func (p *Provider) Name() string { return p.cfg.Name }

func (p *Provider) Fetch(ctx context.Context, req provider.Request) (market.Quote, error) {
	pair, err := market.ParsePair(req.Query)
	if err != nil {
		return market.Quote{}, err
	}
	tb, err := p.table(ctx, pair.Base, req.Header)
	if err != nil {
		return market.Quote{}, err
	}
	n, ok := tb.rates[pair.Quote]
	if !ok {
		return market.Quote{}, fmt.Errorf("%s: %w", pair, provider.ErrNoQuote)
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(n.String()))
	if err != nil || !rate.IsPositive() {
		return market.Quote{}, fmt.Errorf("%s: bad rate %q: %w", pair, n.String(), provider.ErrNoQuote)
	}
	ts := tb.updated
	if ts.IsZero() {
		ts = p.now().UTC()
	}
	return market.Quote{
		Symbol:     pair.String(),
		Price:      rate,
		Currency:   pair.Quote,
		Source:     p.cfg.Name,
		ResolvedAt: ts,
	}, nil
}

func (p *Provider) table(ctx context.Context, base string, header http.Header) (table, error) {
	now := p.now()
	if p.cfg.TableTTL > 0 {
		p.mu.RLock()
		tb, ok := p.tables[base]
		p.mu.RUnlock()
		if ok && now.Before(tb.expires) {
			return tb, nil
		}
	}

	url := p.cfg.URL + base
	if p.cfg.APIKey != "" {
		url = p.cfg.URL + p.cfg.APIKey + "/latest/" + base
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return table{}, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return table{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		return table{}, fmt.Errorf("GET %s -> %d: %s", p.cfg.URL, resp.StatusCode, string(b))
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var api apiResponse
	if err := dec.Decode(&api); err != nil {
		return table{}, fmt.Errorf("decode: %w", err)
	}
	if api.Result != "" && api.Result != "success" {
		return table{}, fmt.Errorf("provider error: %s", api.ErrorType)
	}
	rates := api.ConversionRates
	if len(rates) == 0 {
		rates = api.Rates
	}
	if len(rates) == 0 {
		return table{}, fmt.Errorf("%s: empty rate table: %w", base, provider.ErrNoQuote)
	}
	tb := table{rates: rates, updated: parseEpoch(api.TimeLastUpdateUnix, api.TimeLastUpdated)}
	if p.cfg.TableTTL > 0 {
		tb.expires = now.Add(p.cfg.TableTTL)
		p.mu.Lock()
		if p.tables == nil {
			p.tables = make(map[string]table)
		}
		p.tables[base] = tb
		p.mu.Unlock()
	}
	return tb, nil
}

// apiResponse covers both the keyless v4 and the keyed v6 layouts.
type apiResponse struct {
	Result             string                 `json:"result"`
	ErrorType          string                 `json:"error-type"`
	Base               string                 `json:"base"`
	BaseCode           string                 `json:"base_code"`
	Rates              map[string]json.Number `json:"rates"`
	ConversionRates    map[string]json.Number `json:"conversion_rates"`
	TimeLastUpdated    int64                  `json:"time_last_updated"`
	TimeLastUpdateUnix int64                  `json:"time_last_update_unix"`
}

func parseEpoch(vs ...int64) time.Time {
	for _, v := range vs {
		if v > 0 {
			return time.Unix(v, 0).UTC()
		}
	}
	return time.Time{}
}
