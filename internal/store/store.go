// Package store persists alerts, delivery endpoints and the notification
// log. SQLStore backs sqlite3 and postgres; MemoryStore serves tests and
// throwaway runs.
package store

import (
	"context"
	"fmt"

	"stockalert/internal/alert"
	"stockalert/internal/notify"
)

// Store is everything the scheduler, the dispatcher and the CLI need.
type Store interface {
	alert.Repository
	notify.EndpointDirectory
	notify.LogWriter

	CreateAlert(ctx context.Context, a alert.Alert) error
	GetAlert(ctx context.Context, id string) (alert.Alert, error)
	// ListAlerts returns every alert of owner, or all alerts when owner is empty.
	ListAlerts(ctx context.Context, owner string) ([]alert.Alert, error)
	// SetStatus overwrites an alert's status unconditionally, as an owner
	// disabling or re-arming an alert would.
	SetStatus(ctx context.Context, id string, st alert.Status) error
	RegisterEndpoint(ctx context.Context, ep notify.Endpoint) error
	// ListLogs returns the newest entries first, filtered by alert id when set.
	ListLogs(ctx context.Context, alertID string, limit int) ([]notify.LogEntry, error)
	Close() error
}

// Open returns a store for driver: "memory", "sqlite3" or "postgres".
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "memory":
		return NewMemory(), nil
	case "sqlite3", "postgres":
		return OpenSQL(ctx, driver, dsn)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", driver)
	}
}
