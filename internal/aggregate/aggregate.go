// Package aggregate compares quotes for one symbol across sources.
package aggregate

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stockalert/internal/market"
)

// SourceKey identifies a normalized quote bucket.
type SourceKey struct {
	Symbol   string
	Provider string
	Detail   string
	Currency string
}

// Latest is the newest quote per SourceKey.
type Latest struct {
	Symbol     string          `json:"symbol"`
	Provider   string          `json:"provider"`
	Detail     string          `json:"detail,omitempty"`
	Currency   string          `json:"currency"`
	Price      decimal.Decimal `json:"price"`
	ResolvedAt time.Time       `json:"resolved_at"`
}

// aliasMap folds provider spellings onto one display name.
var aliasMap = map[string]string{
	"yahoo":           "Yahoo",
	"yahoochart":      "Yahoo",
	"polygon":         "Polygon",
	"binance":         "Binance",
	"exchangerate":    "ExchangeRateAPI",
	"exchangerateapi": "ExchangeRateAPI",
	"naver":           "Naver",
	"naverstock":      "Naver",
	"naverfx":         "Naver",
}

// NormalizeSource splits a quote Source of the form "Provider[:detail]".
// The provider is alias-folded case-insensitively; the detail is lower-cased.
func NormalizeSource(src string) (provider, detail string) {
	s := strings.TrimSpace(src)
	if s == "" {
		return "", ""
	}
	name, rest, _ := strings.Cut(s, ":")
	name = strings.TrimSpace(name)
	if norm, ok := aliasMap[strings.ToLower(name)]; ok {
		provider = norm
	} else {
		provider = name
	}
	return provider, strings.ToLower(strings.TrimSpace(rest))
}

// LatestBySource collapses quotes by (Symbol, Provider, Detail?, Currency)
// keeping the newest. With includeDetail false the detail is dropped from the
// key. For equal timestamps, later input wins. Zero timestamps are replaced
// with time.Now().UTC().
func LatestBySource(quotes []market.Quote, includeDetail bool) []Latest {
	now := time.Now().UTC()
	latest := make(map[SourceKey]Latest, len(quotes))

	for _, q := range quotes {
		provider, detail := NormalizeSource(q.Source)
		if !includeDetail {
			detail = ""
		}
		ts := q.ResolvedAt
		if ts.IsZero() {
			ts = now
		}
		key := SourceKey{Symbol: q.Symbol, Provider: provider, Detail: detail, Currency: q.Currency}
		if cur, ok := latest[key]; ok && ts.Before(cur.ResolvedAt) {
			continue
		}
		latest[key] = Latest{
			Symbol:     q.Symbol,
			Provider:   provider,
			Detail:     detail,
			Currency:   q.Currency,
			Price:      q.Price,
			ResolvedAt: ts,
		}
	}

	out := make([]Latest, 0, len(latest))
	for _, v := range latest {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		if out[i].Detail != out[j].Detail {
			return out[i].Detail < out[j].Detail
		}
		return out[i].Currency < out[j].Currency
	})
	return out
}

// Summary describes how far sources disagree for one symbol and currency.
type Summary struct {
	Symbol        string          `json:"symbol"`
	Currency      string          `json:"currency"`
	Sources       int             `json:"sources"`
	Min           decimal.Decimal `json:"min"`
	Max           decimal.Decimal `json:"max"`
	Median        decimal.Decimal `json:"median"`
	SpreadPercent decimal.Decimal `json:"spread_percent"`
}

// Summarize groups rows by symbol and currency. SpreadPercent is
// (max-min)/median*100 rounded to 2 places.
func Summarize(rows []Latest) []Summary {
	type key struct{ symbol, currency string }
	groups := make(map[key][]decimal.Decimal)
	var order []key
	for _, r := range rows {
		k := key{r.Symbol, r.Currency}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r.Price)
	}

	out := make([]Summary, 0, len(order))
	for _, k := range order {
		prices := groups[k]
		sort.Slice(prices, func(i, j int) bool { return prices[i].LessThan(prices[j]) })
		n := len(prices)
		median := prices[n/2]
		if n%2 == 0 {
			median = prices[n/2-1].Add(prices[n/2]).Div(decimal.NewFromInt(2))
		}
		s := Summary{
			Symbol:   k.symbol,
			Currency: k.currency,
			Sources:  n,
			Min:      prices[0],
			Max:      prices[n-1],
			Median:   median,
		}
		if median.IsPositive() {
			s.SpreadPercent = s.Max.Sub(s.Min).Div(median).Mul(decimal.NewFromInt(100)).Round(2)
		}
		out = append(out, s)
	}
	return out
}
