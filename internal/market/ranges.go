package market

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Range is an inclusive plausibility window for a parsed number.
type Range struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// NewRange builds a Range from float bounds.
func NewRange(lo, hi float64) Range {
	return Range{Min: decimal.NewFromFloat(lo), Max: decimal.NewFromFloat(hi)}
}

// Contains reports whether lo <= v <= hi. A zero Range contains nothing.
func (r Range) Contains(v decimal.Decimal) bool {
	if r.Min.IsZero() && r.Max.IsZero() {
		return false
	}
	return v.GreaterThanOrEqual(r.Min) && v.LessThanOrEqual(r.Max)
}

// Ranges groups the plausibility windows applied to every parsed quote.
type Ranges struct {
	// Equity bounds world equity prices.
	Equity Range
	// HighValueEquity narrows the permissive numeric scan, which otherwise
	// picks up volumes, dates and index levels.
	HighValueEquity Range
	// LocalEquity bounds equities quoted in LocalCurrency.
	LocalEquity   Range
	LocalCurrency string
	ChangePercent Range
	// CurrencyPairs is keyed by "BASE/QUOTE"; CurrencyDefault covers the rest.
	CurrencyPairs   map[string]Range
	CurrencyDefault Range
}

// DefaultRanges returns the stock windows.
func DefaultRanges() Ranges {
	return Ranges{
		Equity:          NewRange(1, 10000),
		HighValueEquity: NewRange(50, 1000),
		LocalEquity:     NewRange(100, 1000000),
		LocalCurrency:   "KRW",
		ChangePercent:   NewRange(-50, 50),
		CurrencyPairs: map[string]Range{
			"USD/KRW":  NewRange(1100, 1400),
			"EUR/KRW":  NewRange(1400, 1700),
			"JPY/KRW":  NewRange(8, 12),
			"CNY/KRW":  NewRange(160, 200),
			"GBP/KRW":  NewRange(1500, 1800),
			"BTC/USDT": NewRange(1000, 1000000),
			"ETH/USDT": NewRange(10, 100000),
		},
		CurrencyDefault: NewRange(0.0001, 10000000),
	}
}

// ForPair returns the window for a currency pair.
func (r Ranges) ForPair(p Pair) Range {
	if rg, ok := r.CurrencyPairs[p.String()]; ok {
		return rg
	}
	return r.CurrencyDefault
}

// ForEquity returns the window for an equity quoted in currency.
func (r Ranges) ForEquity(currency string) Range {
	if r.LocalCurrency != "" && strings.EqualFold(currency, r.LocalCurrency) {
		return r.LocalEquity
	}
	return r.Equity
}

// Plausible applies the sanity filter to a resolved quote.
func (r Ranges) Plausible(class AssetClass, query string, q Quote) bool {
	var rg Range
	switch class {
	case Currency:
		p, err := ParsePair(query)
		if err != nil {
			return false
		}
		rg = r.ForPair(p)
	default:
		rg = r.ForEquity(q.Currency)
	}
	if !rg.Contains(q.Price) {
		return false
	}
	if q.ChangeKnown && !r.ChangePercent.Contains(q.ChangePercent) {
		return false
	}
	return true
}
