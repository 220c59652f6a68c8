// Package market holds the value types shared by quote providers, the
// resolver and the alert scheduler.
package market

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when no provider could produce a plausible quote.
	ErrNotFound = errors.New("quote not found")
	// ErrInvalidQuery is returned for blank queries or malformed currency pairs.
	ErrInvalidQuery = errors.New("invalid query")
)

// AssetClass selects the provider chain and plausibility range for a query.
type AssetClass string

const (
	Stock    AssetClass = "stock"
	Currency AssetClass = "currency"
)

// ParseAssetClass maps user input onto an AssetClass. Empty input means Stock.
func ParseAssetClass(s string) (AssetClass, error) {
	switch AssetClass(s) {
	case "", Stock:
		return Stock, nil
	case Currency, "fx":
		return Currency, nil
	}
	return "", fmt.Errorf("%w: asset class %q", ErrInvalidQuery, s)
}

// Quote is an immutable price observation.
type Quote struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	// ChangeKnown is false when the source did not expose a change percentage.
	ChangeKnown bool      `json:"change_known"`
	Currency    string    `json:"currency"`
	Source      string    `json:"source"`
	ResolvedAt  time.Time `json:"resolved_at"`
}
