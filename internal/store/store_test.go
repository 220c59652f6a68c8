package store_test

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"stockalert/internal/alert"
	"stockalert/internal/notify"
	"stockalert/internal/store"
)

// backends returns a fresh instance of every store implementation.
func backends(t *testing.T) map[string]store.Store {
	t.Helper()
	sqlite, err := store.Open(t.Context(), "sqlite3", filepath.Join(t.TempDir(), "alerts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })
	mem, err := store.Open(t.Context(), "memory", "")
	require.NoError(t, err)
	return map[string]store.Store{"sqlite3": sqlite, "memory": mem}
}

var created = time.Date(2025, 1, 10, 8, 30, 0, 0, time.UTC)

func seed(t *testing.T, s store.Store) (stock, fx, nw alert.Alert) {
	t.Helper()
	ctx := t.Context()
	var err error
	stock, err = alert.NewPriceAlert("u1", alert.KindStock, "ACME", alert.Above, decimal.RequireFromString("100.50"), created)
	require.NoError(t, err)
	fx, err = alert.NewPriceAlert("u2", alert.KindCurrency, "USD/KRW", alert.Below, decimal.RequireFromString("1300"), created.Add(time.Minute))
	require.NoError(t, err)
	nw, err = alert.NewNewsAlert("u1", []string{"tesla", "recall, lawsuit"}, created.Add(2*time.Minute))
	require.NoError(t, err)
	for _, a := range []alert.Alert{stock, fx, nw} {
		require.NoError(t, s.CreateAlert(ctx, a))
	}
	return stock, fx, nw
}

func TestStore_CreateAndList(t *testing.T) {
	t.Parallel()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			// Arrange
			stock, _, nw := seed(t, s)

			// Act
			active, err := s.ListActive(t.Context(), alert.KindStock)
			require.NoError(t, err)
			news, err := s.ListActive(t.Context(), alert.KindNews)
			require.NoError(t, err)
			owned, err := s.ListAlerts(t.Context(), "u1")
			require.NoError(t, err)

			// Assert
			require.Len(t, active, 1)
			got := active[0]
			require.Equal(t, stock.ID, got.ID)
			require.Equal(t, "ACME", got.Symbol)
			require.True(t, got.Target.Equal(decimal.RequireFromString("100.5")))
			require.Equal(t, alert.Above, got.Condition)
			require.True(t, created.Equal(got.CreatedAt))
			require.Nil(t, got.LastEvaluatedAt)
			require.Nil(t, got.TriggeredAt)

			require.Len(t, news, 1)
			require.Equal(t, nw.Keywords, news[0].Keywords)

			require.Len(t, owned, 2)
			require.Equal(t, nw.ID, owned[0].ID, "newest first")
		})
	}
}

func TestStore_UpdateStatus(t *testing.T) {
	t.Parallel()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			// Arrange
			stock, fx, _ := seed(t, s)
			ctx := t.Context()
			evaluated := created.Add(time.Hour)
			fired := created.Add(2 * time.Hour)

			// Act: a not-satisfied evaluation, then a trigger
			require.NoError(t, s.UpdateStatus(ctx, fx.ID, alert.StatusUpdate{Status: alert.StatusActive, LastEvaluatedAt: &evaluated}))
			require.NoError(t, s.UpdateStatus(ctx, stock.ID, alert.StatusUpdate{Status: alert.StatusTriggered, LastEvaluatedAt: &fired, TriggeredAt: &fired}))

			// Assert
			gotFX, err := s.GetAlert(ctx, fx.ID)
			require.NoError(t, err)
			require.Equal(t, alert.StatusActive, gotFX.Status)
			require.NotNil(t, gotFX.LastEvaluatedAt)
			require.True(t, evaluated.Equal(*gotFX.LastEvaluatedAt))
			require.Nil(t, gotFX.TriggeredAt)

			gotStock, err := s.GetAlert(ctx, stock.ID)
			require.NoError(t, err)
			require.Equal(t, alert.StatusTriggered, gotStock.Status)
			require.True(t, fired.Equal(*gotStock.TriggeredAt))

			active, err := s.ListActive(ctx, alert.KindStock)
			require.NoError(t, err)
			require.Empty(t, active)

			// Assert: the triggered row can no longer be updated
			err = s.UpdateStatus(ctx, stock.ID, alert.StatusUpdate{Status: alert.StatusTriggered, TriggeredAt: &fired})
			require.ErrorIs(t, err, alert.ErrNotActive)

			err = s.UpdateStatus(ctx, "missing", alert.StatusUpdate{Status: alert.StatusActive})
			require.ErrorIs(t, err, alert.ErrNotFound)
		})
	}
}

func TestStore_ConcurrentTriggerWinsOnce(t *testing.T) {
	t.Parallel()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			// Arrange
			stock, _, _ := seed(t, s)
			now := created.Add(time.Hour)

			// Act
			var wg sync.WaitGroup
			errs := make([]error, 8)
			for i := range errs {
				wg.Add(1)
				go func() {
					defer wg.Done()
					errs[i] = s.UpdateStatus(t.Context(), stock.ID, alert.StatusUpdate{Status: alert.StatusTriggered, TriggeredAt: &now})
				}()
			}
			wg.Wait()

			// Assert
			ok := 0
			for _, err := range errs {
				if err == nil {
					ok++
					continue
				}
				require.ErrorIs(t, err, alert.ErrNotActive)
			}
			require.Equal(t, 1, ok)
		})
	}
}

func TestStore_SetStatus(t *testing.T) {
	t.Parallel()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			// Arrange
			stock, _, _ := seed(t, s)

			// Act
			require.NoError(t, s.SetStatus(t.Context(), stock.ID, alert.StatusDisabled))

			// Assert
			active, err := s.ListActive(t.Context(), alert.KindStock)
			require.NoError(t, err)
			require.Empty(t, active)
			require.ErrorIs(t, s.SetStatus(t.Context(), "missing", alert.StatusActive), alert.ErrNotFound)
		})
	}
}

func TestStore_EndpointsAndLogs(t *testing.T) {
	t.Parallel()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()

			// Arrange
			require.NoError(t, s.RegisterEndpoint(ctx, notify.Endpoint{ID: "e1", OwnerID: "u1", Channel: "webhook", Address: "https://hooks.example.test/a", CreatedAt: created}))
			require.NoError(t, s.RegisterEndpoint(ctx, notify.Endpoint{ID: "e2", OwnerID: "u1", Channel: "email", Address: "u1@example.test", CreatedAt: created.Add(time.Second)}))
			require.Error(t, s.RegisterEndpoint(ctx, notify.Endpoint{ID: "e3", OwnerID: "u1", Channel: "email", Address: "u1@example.test", CreatedAt: created}))

			for i, o := range []notify.Outcome{notify.Failed, notify.Delivered} {
				require.NoError(t, s.AppendLog(ctx, notify.LogEntry{
					ID:        []string{"l1", "l2"}[i],
					AlertID:   "a1",
					OwnerID:   "u1",
					Outcome:   o,
					Message:   "Stock Alert: ACME",
					CreatedAt: created.Add(time.Duration(i) * time.Minute),
				}))
			}
			require.NoError(t, s.AppendLog(ctx, notify.LogEntry{ID: "l3", AlertID: "a2", OwnerID: "u2", Outcome: notify.Simulated, Message: "x", CreatedAt: created}))

			// Act
			eps, err := s.Endpoints(ctx, "u1")
			require.NoError(t, err)
			none, err := s.Endpoints(ctx, "u9")
			require.NoError(t, err)
			logs, err := s.ListLogs(ctx, "a1", 10)
			require.NoError(t, err)
			latest, err := s.ListLogs(ctx, "", 1)
			require.NoError(t, err)

			// Assert
			require.Len(t, eps, 2)
			require.Equal(t, "webhook", eps[0].Channel)
			require.Empty(t, none)
			require.Len(t, logs, 2)
			require.Equal(t, notify.Delivered, logs[0].Outcome)
			require.Len(t, latest, 1)
		})
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	t.Parallel()

	_, err := store.Open(t.Context(), "bolt", "x")
	require.Error(t, err)
}
