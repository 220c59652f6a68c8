package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stockalert/internal/alert"
	"stockalert/internal/notify"
	"stockalert/internal/scheduler"
	"stockalert/internal/store"
)

// offlineConfig writes a config with every network source disabled and a
// sqlite database in a temp dir. It returns the config path and the DSN.
func offlineConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dsn := filepath.Join(dir, "alerts.db")
	cfg := fmt.Sprintf(`{
  "log": {"level": "error", "console": false},
  "database": {"driver": "sqlite3", "dsn": %q},
  "resolver": {"min_delay_sec": 0, "max_delay_sec": 0},
  "providers": {
    "yahoo": {"enabled": false},
    "scrape": {"enabled": false},
    "exchangerate": {"enabled": false},
    "binance": {"enabled": false}
  },
  "news": {"enabled": false}
}`, dsn)
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path, dsn
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(&out, args)
	return out.String(), err
}

func TestAlertLifecycle(t *testing.T) {
	t.Parallel()

	// Arrange
	cfg, _ := offlineConfig(t)

	// Act: create, list, disable
	out, err := runCLI(t, "--config", cfg, "alert", "add", "--owner", "u1", "--kind", "stock", "--symbol", "aapl", "--condition", "above", "--target", "200")
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	require.NotEmpty(t, id)

	out, err = runCLI(t, "--config", cfg, "--json", "alert", "list", "--owner", "u1")
	require.NoError(t, err)
	var alerts []alert.Alert
	require.NoError(t, json.Unmarshal([]byte(out), &alerts))

	// Assert
	require.Len(t, alerts, 1)
	require.Equal(t, "AAPL", alerts[0].Symbol)
	require.Equal(t, alert.StatusActive, alerts[0].Status)
	require.Equal(t, "200", alerts[0].Target.String())

	out, err = runCLI(t, "--config", cfg, "alert", "disable", id)
	require.NoError(t, err)
	require.Contains(t, out, "disabled")

	out, err = runCLI(t, "--config", cfg, "alert", "list")
	require.NoError(t, err)
	require.Contains(t, out, id)
	require.Contains(t, out, "disabled")
}

func TestAlertAdd_Rejects(t *testing.T) {
	t.Parallel()

	cfg, _ := offlineConfig(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "bad target", args: []string{"--owner", "u1", "--symbol", "AAPL", "--target", "abc"}},
		{name: "bad kind", args: []string{"--owner", "u1", "--kind", "bond", "--symbol", "X"}},
		{name: "news without keywords", args: []string{"--owner", "u1", "--kind", "news"}},
		{name: "missing owner", args: []string{"--symbol", "AAPL"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, append([]string{"--config", cfg, "alert", "add"}, tt.args...)...)
			require.Error(t, err)
		})
	}
}

func TestAlertDisable_Unknown(t *testing.T) {
	t.Parallel()

	cfg, _ := offlineConfig(t)

	_, err := runCLI(t, "--config", cfg, "alert", "disable", "nope")

	require.ErrorIs(t, err, alert.ErrNotFound)
}

func TestEndpointAndLogs(t *testing.T) {
	t.Parallel()

	// Arrange
	cfg, dsn := offlineConfig(t)
	_, err := runCLI(t, "--config", cfg, "endpoint", "add", "--owner", "u1", "--channel", "webhook", "--address", "https://example.com/hook")
	require.NoError(t, err)

	st, err := store.Open(t.Context(), "sqlite3", dsn)
	require.NoError(t, err)
	eps, err := st.Endpoints(t.Context(), "u1")
	require.NoError(t, err)
	require.Len(t, eps, 1)
	require.Equal(t, "webhook", eps[0].Channel)
	require.NoError(t, st.AppendLog(t.Context(), notify.LogEntry{
		ID: "l1", AlertID: "a1", OwnerID: "u1", Outcome: notify.Delivered,
		Message: "AAPL rose above 200", CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, st.Close())

	// Act
	out, err := runCLI(t, "--config", cfg, "logs", "--alert", "a1")

	// Assert
	require.NoError(t, err)
	require.Contains(t, out, "delivered")
	require.Contains(t, out, "AAPL rose above 200")

	_, err = runCLI(t, "--config", cfg, "endpoint", "add", "--owner", "u1", "--channel", "pager", "--address", "x")
	require.Error(t, err)
}

func TestCycle_NoSourcesSkips(t *testing.T) {
	t.Parallel()

	// Arrange
	cfg, _ := offlineConfig(t)
	_, err := runCLI(t, "--config", cfg, "alert", "add", "--owner", "u1", "--symbol", "AAPL", "--target", "1")
	require.NoError(t, err)

	// Act
	out, err := runCLI(t, "--config", cfg, "--json", "cycle")

	// Assert
	require.NoError(t, err)
	var rep scheduler.CycleReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	require.Equal(t, 1, rep.Skipped)
	require.Equal(t, 0, rep.Triggered)
}

func TestDump(t *testing.T) {
	t.Parallel()

	// Arrange
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("<html>raw</html>"))
	}))
	defer srv.Close()
	cfg, _ := offlineConfig(t)

	// Act
	out, err := runCLI(t, "--config", cfg, "dump", srv.URL)

	// Assert
	require.NoError(t, err)
	require.Equal(t, "<html>raw</html>", out)
	require.Contains(t, ua, "Mozilla")
}
