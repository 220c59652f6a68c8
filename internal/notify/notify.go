// Package notify delivers trigger notifications to every endpoint an owner
// registered and records one log entry per dispatch.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stockalert/internal/alert"
	"stockalert/internal/market"
	"stockalert/internal/news"
)

type Outcome string

const (
	Delivered          Outcome = "delivered"
	PartiallyDelivered Outcome = "partially_delivered"
	Failed             Outcome = "failed"
	Simulated          Outcome = "simulated"
)

// Endpoint is one registered delivery address: a webhook URL, an email
// address or a device token, depending on Channel.
type Endpoint struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Channel   string    `json:"channel"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

type LogEntry struct {
	ID        string    `json:"id"`
	AlertID   string    `json:"alert_id"`
	OwnerID   string    `json:"owner_id"`
	Outcome   Outcome   `json:"outcome"`
	Message   string    `json:"message"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Channel is one delivery mechanism.
//
//go:generate mockgen -package=notify_test -destination=mock_notify_test.go -source=notify.go Channel,EndpointDirectory,LogWriter
type Channel interface {
	Name() string
	Send(ctx context.Context, ep Endpoint, title, body string) error
}

type EndpointDirectory interface {
	Endpoints(ctx context.Context, ownerID string) ([]Endpoint, error)
}

type LogWriter interface {
	AppendLog(ctx context.Context, e LogEntry) error
}

// Trigger carries what made an alert fire.
type Trigger struct {
	Quote     *market.Quote
	Headlines []news.Item
	At        time.Time
}

// Message renders the title and body sent for a. The title is "<Kind> Alert".
func Message(a alert.Alert, tr Trigger) (title, body string) {
	kind := string(a.Kind)
	if kind != "" {
		kind = strings.ToUpper(kind[:1]) + kind[1:]
	}
	title = kind + " Alert"

	switch a.Kind {
	case alert.KindNews:
		body = fmt.Sprintf("New headlines for %q", strings.Join(a.Keywords, ", "))
		if len(tr.Headlines) > 0 {
			body += ": " + tr.Headlines[0].Title
			if n := len(tr.Headlines) - 1; n > 0 {
				body += fmt.Sprintf(" (+%d more)", n)
			}
		}
	default:
		price := "n/a"
		unit := ""
		if tr.Quote != nil {
			price = tr.Quote.Price.String()
			if a.Kind == alert.KindStock && tr.Quote.Currency != "" {
				unit = " " + tr.Quote.Currency
			}
		}
		var verb string
		switch a.Condition {
		case alert.Above:
			verb = "rose above"
		case alert.Below:
			verb = "fell below"
		default:
			verb = "reached"
		}
		body = fmt.Sprintf("%s is now %s%s and %s your target of %s.", a.Symbol, price, unit, verb, a.Target.String())
	}
	return title, body
}
