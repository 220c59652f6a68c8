// Package scrape resolves quotes from HTML pages that were never meant to be
// machine-read. Each configured target URL is tried in order and the page is
// run through an extract.Extractor.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"stockalert/internal/market"
	"stockalert/internal/provider"
	"stockalert/internal/provider/extract"
)

// Getter fetches a raw payload. *httpx.Client satisfies it.
type Getter interface {
	Get(ctx context.Context, url string, header http.Header) ([]byte, error)
}

// Target is one URL template and the currency its prices are quoted in.
// Templates may use {query}, {symbol}, {base} and {quote}.
type Target struct {
	URL      string
	Currency string
}

type Config struct {
	Name            string
	Class           market.AssetClass
	Targets         []Target
	PriceSelectors  []string
	ChangeSelectors []string
	Keywords        []string
	// MinBodyBytes rejects stub and consent pages. Zero means 1000.
	MinBodyBytes int
	Ranges       market.Ranges
}

type Strategy struct {
	cfg    Config
	client Getter
	now    func() time.Time
}

func New(cfg Config, client Getter) *Strategy {
	if cfg.Name == "" {
		cfg.Name = "Scrape"
	}
	if cfg.Class == "" {
		cfg.Class = market.Stock
	}
	if cfg.MinBodyBytes <= 0 {
		cfg.MinBodyBytes = 1000
	}
	return &Strategy{cfg: cfg, client: client, now: time.Now}
}

func (s *Strategy) Name() string { return s.cfg.Name }

func (s *Strategy) Fetch(ctx context.Context, req provider.Request) (market.Quote, error) {
	vars, symbol, err := s.vars(req.Query)
	if err != nil {
		return market.Quote{}, err
	}
	var errs []error
	for _, tg := range s.cfg.Targets {
		if err := ctx.Err(); err != nil {
			return market.Quote{}, err
		}
		u := expand(tg.URL, vars)
		body, err := s.client.Get(ctx, u, req.Header)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(body) < s.cfg.MinBodyBytes {
			errs = append(errs, fmt.Errorf("%s: body too short (%d bytes)", u, len(body)))
			continue
		}
		currency := tg.Currency
		if s.cfg.Class == market.Currency {
			currency = vars["{quote}"]
		}
		doc := extract.NewDocument(body)
		price, _, ok := s.extractor(req.Query, currency).Price(doc)
		if !ok {
			errs = append(errs, fmt.Errorf("%s: %w", u, provider.ErrNoQuote))
			continue
		}
		q := market.Quote{
			Symbol:     symbol,
			Price:      price,
			Currency:   currency,
			Source:     s.cfg.Name,
			ResolvedAt: s.now().UTC(),
		}
		q.ChangePercent, q.ChangeKnown = extract.ChangePercent(doc, s.cfg.ChangeSelectors, s.cfg.Ranges.ChangePercent)
		return q, nil
	}
	if len(errs) == 0 {
		return market.Quote{}, provider.ErrNoQuote
	}
	return market.Quote{}, errors.Join(errs...)
}

func (s *Strategy) extractor(query, currency string) extract.Extractor {
	r := s.cfg.Ranges
	primary, permissive := r.ForEquity(currency), r.HighValueEquity
	if s.cfg.Class == market.Currency {
		p, _ := market.ParsePair(query)
		primary = r.ForPair(p)
		permissive = primary
	}
	return extract.Extractor{Steps: []extract.Step{
		{H: extract.Selector{Selectors: s.cfg.PriceSelectors}, Range: primary},
		{H: extract.Context{Keywords: s.cfg.Keywords}, Range: primary},
		{H: extract.Permissive{}, Range: permissive},
	}}
}

func (s *Strategy) vars(query string) (map[string]string, string, error) {
	q := strings.TrimSpace(query)
	vars := map[string]string{
		"{query}":  url.QueryEscape(q),
		"{symbol}": url.PathEscape(strings.ToUpper(q)),
	}
	if s.cfg.Class != market.Currency {
		return vars, strings.ToUpper(q), nil
	}
	p, err := market.ParsePair(q)
	if err != nil {
		return nil, "", err
	}
	vars["{base}"] = p.Base
	vars["{quote}"] = p.Quote
	return vars, p.String(), nil
}

func expand(tmpl string, vars map[string]string) string {
	out := tmpl
	for k, v := range vars {
		out = strings.ReplaceAll(out, k, v)
	}
	return out
}
