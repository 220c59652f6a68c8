package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"stockalert/internal/alert"
	"stockalert/internal/notify"
)

var alertColumns = []string{
	"id", "owner_id", "kind", "symbol", "keywords", "condition_op", "target",
	"status", "created_at", "last_evaluated_at", "triggered_at",
}

// SQLStore implements Store over database/sql.
type SQLStore struct {
	db     *sql.DB
	sq     sq.StatementBuilderType
	driver string
}

// OpenSQL connects, pings and ensures the schema.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	if driver == "sqlite3" && !strings.Contains(dsn, "?") {
		dsn += "?_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	s, err := NewSQLStore(ctx, db, driver)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open handle and creates missing tables.
func NewSQLStore(ctx context.Context, db *sql.DB, driver string) (*SQLStore, error) {
	s := &SQLStore{db: db, driver: driver, sq: sq.StatementBuilder.PlaceholderFormat(sq.Question)}
	if driver == "postgres" {
		s.sq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) initSchema(ctx context.Context) error {
	ts, num := "TIMESTAMP", "TEXT"
	if s.driver == "postgres" {
		ts, num = "TIMESTAMPTZ", "NUMERIC(28,10)"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			symbol TEXT NOT NULL DEFAULT '',
			keywords TEXT NOT NULL DEFAULT '[]',
			condition_op TEXT NOT NULL DEFAULT '',
			target ` + num + ` NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			created_at ` + ts + ` NOT NULL,
			last_evaluated_at ` + ts + `,
			triggered_at ` + ts + `
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_kind_status ON alerts(kind, status)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_owner ON alerts(owner_id)`,
		`CREATE TABLE IF NOT EXISTS endpoints (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			channel TEXT NOT NULL,
			address TEXT NOT NULL,
			created_at ` + ts + ` NOT NULL,
			UNIQUE(owner_id, channel, address)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_endpoints_owner ON endpoints(owner_id)`,
		`CREATE TABLE IF NOT EXISTS notification_logs (
			id TEXT PRIMARY KEY,
			alert_id TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			outcome TEXT NOT NULL,
			message TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			created_at ` + ts + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_logs_alert ON notification_logs(alert_id, created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) CreateAlert(ctx context.Context, a alert.Alert) error {
	if err := a.Validate(); err != nil {
		return err
	}
	kw, err := json.Marshal(nonNil(a.Keywords))
	if err != nil {
		return err
	}
	query, args, err := s.sq.Insert("alerts").Columns(alertColumns...).
		Values(a.ID, a.OwnerID, string(a.Kind), a.Symbol, string(kw), string(a.Condition), a.Target.String(),
			string(a.Status), a.CreatedAt.UTC(), nullTime(a.LastEvaluatedAt), nullTime(a.TriggeredAt)).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *SQLStore) GetAlert(ctx context.Context, id string) (alert.Alert, error) {
	alerts, err := s.queryAlerts(ctx, s.sq.Select(alertColumns...).From("alerts").Where(sq.Eq{"id": id}))
	if err != nil {
		return alert.Alert{}, err
	}
	if len(alerts) == 0 {
		return alert.Alert{}, fmt.Errorf("%w: %s", alert.ErrNotFound, id)
	}
	return alerts[0], nil
}

func (s *SQLStore) ListAlerts(ctx context.Context, owner string) ([]alert.Alert, error) {
	b := s.sq.Select(alertColumns...).From("alerts").OrderBy("created_at DESC")
	if owner != "" {
		b = b.Where(sq.Eq{"owner_id": owner})
	}
	return s.queryAlerts(ctx, b)
}

func (s *SQLStore) ListActive(ctx context.Context, kind alert.Kind) ([]alert.Alert, error) {
	return s.queryAlerts(ctx, s.sq.Select(alertColumns...).From("alerts").
		Where(sq.Eq{"kind": string(kind), "status": string(alert.StatusActive)}).
		OrderBy("created_at"))
}

func (s *SQLStore) queryAlerts(ctx context.Context, b sq.SelectBuilder) ([]alert.Alert, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []alert.Alert
	for rows.Next() {
		var (
			a                   alert.Alert
			kind, cond, status  string
			keywords, target    string
			lastEval, triggered sql.NullTime
		)
		if err := rows.Scan(&a.ID, &a.OwnerID, &kind, &a.Symbol, &keywords, &cond, &target,
			&status, &a.CreatedAt, &lastEval, &triggered); err != nil {
			return nil, err
		}
		a.Kind, a.Condition, a.Status = alert.Kind(kind), alert.Condition(cond), alert.Status(status)
		a.CreatedAt = a.CreatedAt.UTC()
		if err := json.Unmarshal([]byte(keywords), &a.Keywords); err != nil {
			return nil, fmt.Errorf("alert %s keywords: %w", a.ID, err)
		}
		if len(a.Keywords) == 0 {
			a.Keywords = nil
		}
		if err := a.Target.Scan(target); err != nil {
			return nil, fmt.Errorf("alert %s target: %w", a.ID, err)
		}
		a.LastEvaluatedAt = timePtr(lastEval)
		a.TriggeredAt = timePtr(triggered)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateStatus(ctx context.Context, id string, u alert.StatusUpdate) error {
	b := s.sq.Update("alerts").Where(sq.Eq{"id": id, "status": string(alert.StatusActive)})
	set := 0
	if u.Status != "" {
		b = b.Set("status", string(u.Status))
		set++
	}
	if u.LastEvaluatedAt != nil {
		b = b.Set("last_evaluated_at", u.LastEvaluatedAt.UTC())
		set++
	}
	if u.TriggeredAt != nil {
		b = b.Set("triggered_at", u.TriggeredAt.UTC())
		set++
	}
	if set == 0 {
		return errors.New("store: empty status update")
	}
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := s.GetAlert(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", alert.ErrNotActive, id)
}

func (s *SQLStore) SetStatus(ctx context.Context, id string, st alert.Status) error {
	query, args, err := s.sq.Update("alerts").Set("status", string(st)).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", alert.ErrNotFound, id)
	}
	return nil
}

func (s *SQLStore) RegisterEndpoint(ctx context.Context, ep notify.Endpoint) error {
	query, args, err := s.sq.Insert("endpoints").
		Columns("id", "owner_id", "channel", "address", "created_at").
		Values(ep.ID, ep.OwnerID, ep.Channel, ep.Address, ep.CreatedAt.UTC()).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *SQLStore) Endpoints(ctx context.Context, ownerID string) ([]notify.Endpoint, error) {
	query, args, err := s.sq.Select("id", "owner_id", "channel", "address", "created_at").
		From("endpoints").Where(sq.Eq{"owner_id": ownerID}).OrderBy("created_at").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []notify.Endpoint
	for rows.Next() {
		var ep notify.Endpoint
		if err := rows.Scan(&ep.ID, &ep.OwnerID, &ep.Channel, &ep.Address, &ep.CreatedAt); err != nil {
			return nil, err
		}
		ep.CreatedAt = ep.CreatedAt.UTC()
		out = append(out, ep)
	}
	return out, rows.Err()
}

func (s *SQLStore) AppendLog(ctx context.Context, e notify.LogEntry) error {
	query, args, err := s.sq.Insert("notification_logs").
		Columns("id", "alert_id", "owner_id", "outcome", "message", "detail", "created_at").
		Values(e.ID, e.AlertID, e.OwnerID, string(e.Outcome), e.Message, e.Detail, e.CreatedAt.UTC()).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *SQLStore) ListLogs(ctx context.Context, alertID string, limit int) ([]notify.LogEntry, error) {
	b := s.sq.Select("id", "alert_id", "owner_id", "outcome", "message", "detail", "created_at").
		From("notification_logs").OrderBy("created_at DESC")
	if alertID != "" {
		b = b.Where(sq.Eq{"alert_id": alertID})
	}
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []notify.LogEntry
	for rows.Next() {
		var e notify.LogEntry
		var outcome string
		if err := rows.Scan(&e.ID, &e.AlertID, &e.OwnerID, &outcome, &e.Message, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Outcome = notify.Outcome(outcome)
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	v := nt.Time.UTC()
	return &v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
