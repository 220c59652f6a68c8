// Package alert defines the alert entity, its evaluation rules and the
// repository contract the scheduler works against.
package alert

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"stockalert/internal/market"
)

var (
	ErrNotFound = errors.New("alert not found")
	// ErrNotActive is returned by a conditional status update when the row
	// left the active state after it was listed.
	ErrNotActive = errors.New("alert is not active")
)

type Kind string

const (
	KindStock    Kind = "stock"
	KindCurrency Kind = "currency"
	KindNews     Kind = "news"
)

// Kinds lists every kind in scheduler evaluation order.
var Kinds = []Kind{KindStock, KindCurrency, KindNews}

// AssetClass maps a priced kind to the resolver class.
func (k Kind) AssetClass() (market.AssetClass, bool) {
	switch k {
	case KindStock:
		return market.Stock, true
	case KindCurrency:
		return market.Currency, true
	}
	return "", false
}

type Condition string

const (
	Above Condition = "above"
	Below Condition = "below"
	Equal Condition = "equal"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusTriggered Status = "triggered"
	StatusDisabled  Status = "disabled"
)

type Alert struct {
	ID      string `json:"id" validate:"required"`
	OwnerID string `json:"owner_id" validate:"required"`
	Kind    Kind   `json:"kind" validate:"required,oneof=stock currency news"`
	// Symbol is a ticker for stock alerts and a pair such as USD/KRW for
	// currency alerts.
	Symbol    string          `json:"symbol,omitempty" validate:"required_unless=Kind news"`
	Keywords  []string        `json:"keywords,omitempty" validate:"required_if=Kind news,dive,required"`
	Condition Condition       `json:"condition,omitempty" validate:"omitempty,oneof=above below equal"`
	Target    decimal.Decimal `json:"target"`
	Status    Status          `json:"status" validate:"required,oneof=active triggered disabled"`

	CreatedAt       time.Time  `json:"created_at"`
	LastEvaluatedAt *time.Time `json:"last_evaluated_at,omitempty"`
	TriggeredAt     *time.Time `json:"triggered_at,omitempty"`
}

// Validate checks field presence per kind.
func (a Alert) Validate() error {
	if err := validator.New().Struct(a); err != nil {
		return err
	}
	if a.Kind != KindNews {
		if a.Condition == "" {
			return fmt.Errorf("alert %s: condition is required for %s alerts", a.ID, a.Kind)
		}
		if a.Target.IsNegative() {
			return fmt.Errorf("alert %s: negative target %s", a.ID, a.Target)
		}
	}
	if a.Kind == KindCurrency {
		if _, err := market.ParsePair(a.Symbol); err != nil {
			return fmt.Errorf("alert %s: %w", a.ID, err)
		}
	}
	return nil
}

// EvaluatedSince is the lower bound for "new" news items.
func (a Alert) EvaluatedSince() time.Time {
	if a.LastEvaluatedAt != nil {
		return *a.LastEvaluatedAt
	}
	return a.CreatedAt
}

// NewPriceAlert builds an active stock or currency alert.
func NewPriceAlert(owner string, kind Kind, symbol string, cond Condition, target decimal.Decimal, now time.Time) (Alert, error) {
	symbol = strings.TrimSpace(symbol)
	if kind == KindCurrency {
		if p, err := market.ParsePair(symbol); err == nil {
			symbol = p.String()
		}
	} else {
		symbol = strings.ToUpper(symbol)
	}
	a := Alert{
		ID:        uuid.NewString(),
		OwnerID:   owner,
		Kind:      kind,
		Symbol:    symbol,
		Condition: cond,
		Target:    target,
		Status:    StatusActive,
		CreatedAt: now.UTC(),
	}
	return a, a.Validate()
}

// NewNewsAlert builds an active keyword alert.
func NewNewsAlert(owner string, keywords []string, now time.Time) (Alert, error) {
	kw := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			kw = append(kw, k)
		}
	}
	a := Alert{
		ID:        uuid.NewString(),
		OwnerID:   owner,
		Kind:      KindNews,
		Keywords:  kw,
		Status:    StatusActive,
		CreatedAt: now.UTC(),
	}
	return a, a.Validate()
}

// StatusUpdate is the only mutation the scheduler applies. Nil timestamps
// are left unchanged.
type StatusUpdate struct {
	Status          Status
	LastEvaluatedAt *time.Time
	TriggeredAt     *time.Time
}

// Repository is the alert store as seen by the scheduler. Both methods must
// be safe for concurrent calls on different ids.
type Repository interface {
	ListActive(ctx context.Context, kind Kind) ([]Alert, error)
	// UpdateStatus applies u to an alert that is still active. It returns
	// ErrNotFound for an unknown id and ErrNotActive otherwise.
	UpdateStatus(ctx context.Context, id string, u StatusUpdate) error
}
