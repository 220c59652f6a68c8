package scrape

import "stockalert/internal/market"

// Default page layouts for the Korean finance portal. URL lists come from
// config; selectors and keywords are tied to the page markup.
var (
	StockSelectors = []string{
		".no_today .blind",
		".today .blind",
		".no_today",
		".rate_info .num",
		".spt_con strong",
		`span[class*="price"]`,
		`strong[class*="price"]`,
	}
	StockChangeSelectors = []string{
		".no_exday .blind",
		".rate_info .rate",
		`span[class*="rate"]`,
		`span[class*="change"]`,
	}
	StockKeywords = []string{"현재가", "주가", "종가", "price"}

	CurrencySelectors = []string{
		".spt_con strong",
		".rate_info .num",
		".exchange_rate .num",
		`span[class*="rate"]`,
	}
	CurrencyKeywords = []string{"매매기준율", "환율", "rate"}
)

// DefaultStockTargets are tried in order: the search result card first, then
// the world-stock pages for NASDAQ, NYSE and unsuffixed listings.
func DefaultStockTargets() []Target {
	return []Target{
		{URL: "https://search.naver.com/search.naver?query={query}+%EC%A3%BC%EA%B0%80", Currency: "KRW"},
		{URL: "https://m.stock.naver.com/worldstock/stock/{symbol}.O/total", Currency: "USD"},
		{URL: "https://m.stock.naver.com/worldstock/stock/{symbol}.N/total", Currency: "USD"},
		{URL: "https://m.stock.naver.com/worldstock/stock/{symbol}/total", Currency: "USD"},
	}
}

func DefaultCurrencyTargets() []Target {
	return []Target{
		{URL: "https://search.naver.com/search.naver?query={base}+{quote}+%ED%99%98%EC%9C%A8"},
	}
}

// NewStock builds the equity scraping strategy.
func NewStock(targets []Target, ranges market.Ranges, minBody int, client Getter) *Strategy {
	return New(Config{
		Name:            "NaverStock",
		Class:           market.Stock,
		Targets:         targets,
		PriceSelectors:  StockSelectors,
		ChangeSelectors: StockChangeSelectors,
		Keywords:        StockKeywords,
		MinBodyBytes:    minBody,
		Ranges:          ranges,
	}, client)
}

// NewCurrency builds the currency-pair scraping strategy.
func NewCurrency(targets []Target, ranges market.Ranges, minBody int, client Getter) *Strategy {
	return New(Config{
		Name:           "NaverFX",
		Class:          market.Currency,
		Targets:        targets,
		PriceSelectors: CurrencySelectors,
		Keywords:       CurrencyKeywords,
		MinBodyBytes:   minBody,
		Ranges:         ranges,
	}, client)
}
