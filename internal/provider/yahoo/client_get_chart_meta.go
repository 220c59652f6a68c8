package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"time"
)

// ErrSymbolNotFound is returned when the API does not know the symbol.
var ErrSymbolNotFound = errors.New("symbol not found")

// Meta is the quote summary block of a chart response.
type Meta struct {
	Symbol                     string
	Currency                   string
	ExchangeName               string
	RegularMarketPrice         *float64
	RegularMarketChangePercent *float64
	ChartPreviousClose         *float64
	PreviousClose              *float64
	RegularMarketTime          *time.Time
}

// GetChartMeta retrieves the meta block for symbol.
func (c *ChartAPIClient) GetChartMeta(ctx context.Context, symbol string, opts ...ChartAPIClientOption) (*Meta, error) {
	var override = &ChartAPIClient{
		baseURL:    c.baseURL,
		httpClient: c.httpClient,
		header:     c.header.Clone(),
		query:      c.query,
	}
	for _, opt := range opts {
		opt(override)
	}

	query := maps.Clone(override.query)
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", override.baseURL, url.PathEscape(symbol), query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = override.header

	res, err := override.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		break

	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)

	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("unauthorized")

	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("rate limited")

	default:
		return nil, fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding chart response: %w", err)
	}

	// {
	//   "chart": {
	//     "result": [{"meta": {"currency": "USD", "symbol": "AAPL", "regularMarketPrice": 189.3, ...}}],
	//     "error": null
	//   }
	// }
	chart, ok := body["chart"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("decoding chart: unexpected shape")
	}
	if apiErr, ok := chart["error"].(map[string]any); ok {
		code, _ := apiErr["code"].(string)
		if code == "Not Found" {
			return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
		}
		return nil, fmt.Errorf("api error: %v", apiErr["description"])
	}
	results, ok := chart["result"].([]any)
	if !ok || len(results) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}
	result, ok := results[0].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("decoding result: unexpected type %T", results[0])
	}
	data, ok := result["meta"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("decoding meta: missing")
	}

	meta := &Meta{}
	if v, err := parseNullableValue[string](data, "symbol"); err != nil {
		return nil, fmt.Errorf("decoding symbol: %w", err)
	} else if v != nil {
		meta.Symbol = *v
	}
	if v, err := parseNullableValue[string](data, "currency"); err != nil {
		return nil, fmt.Errorf("decoding currency: %w", err)
	} else if v != nil {
		meta.Currency = *v
	}
	if v, err := parseNullableValue[string](data, "exchangeName"); err != nil {
		return nil, fmt.Errorf("decoding exchangeName: %w", err)
	} else if v != nil {
		meta.ExchangeName = *v
	}
	if meta.RegularMarketPrice, err = parseNullableValue[float64](data, "regularMarketPrice"); err != nil {
		return nil, fmt.Errorf("decoding regularMarketPrice: %w", err)
	}
	if meta.RegularMarketChangePercent, err = parseNullableValue[float64](data, "regularMarketChangePercent"); err != nil {
		return nil, fmt.Errorf("decoding regularMarketChangePercent: %w", err)
	}
	if meta.ChartPreviousClose, err = parseNullableValue[float64](data, "chartPreviousClose"); err != nil {
		return nil, fmt.Errorf("decoding chartPreviousClose: %w", err)
	}
	if meta.PreviousClose, err = parseNullableValue[float64](data, "previousClose"); err != nil {
		return nil, fmt.Errorf("decoding previousClose: %w", err)
	}
	ts, err := parseNullableValue[float64](data, "regularMarketTime")
	if err != nil {
		return nil, fmt.Errorf("decoding regularMarketTime: %w", err)
	}
	if ts != nil {
		t := time.Unix(int64(*ts), 0).UTC()
		meta.RegularMarketTime = &t
	}
	return meta, nil
}

// parseNullableValue is a helper function to parse a nullable value.
func parseNullableValue[T any](data map[string]any, key string) (*T, error) {
	v, ok := data[key]
	if !ok || v == nil {
		return nil, nil
	}
	if v, ok := v.(T); ok {
		return &v, nil
	}
	return nil, fmt.Errorf("unexpected type: %T", v)
}
