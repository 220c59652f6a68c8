package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"stockalert/internal/alert"
	"stockalert/internal/notify"
)

// MemoryStore keeps everything in maps guarded by one mutex.
type MemoryStore struct {
	mu        sync.RWMutex
	alerts    map[string]alert.Alert
	endpoints map[string][]notify.Endpoint
	logs      []notify.LogEntry
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		alerts:    make(map[string]alert.Alert),
		endpoints: make(map[string][]notify.Endpoint),
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) CreateAlert(_ context.Context, a alert.Alert) error {
	if err := a.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.alerts[a.ID]; ok {
		return fmt.Errorf("alert %s already exists", a.ID)
	}
	m.alerts[a.ID] = clone(a)
	return nil
}

func (m *MemoryStore) GetAlert(_ context.Context, id string) (alert.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.alerts[id]
	if !ok {
		return alert.Alert{}, fmt.Errorf("%w: %s", alert.ErrNotFound, id)
	}
	return clone(a), nil
}

func (m *MemoryStore) ListAlerts(_ context.Context, owner string) ([]alert.Alert, error) {
	return m.filter(func(a alert.Alert) bool { return owner == "" || a.OwnerID == owner }, true), nil
}

func (m *MemoryStore) ListActive(ctx context.Context, kind alert.Kind) ([]alert.Alert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.filter(func(a alert.Alert) bool { return a.Kind == kind && a.Status == alert.StatusActive }, false), nil
}

func (m *MemoryStore) filter(keep func(alert.Alert) bool, newestFirst bool) []alert.Alert {
	m.mu.RLock()
	var out []alert.Alert
	for _, a := range m.alerts {
		if keep(a) {
			out = append(out, clone(a))
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (m *MemoryStore) UpdateStatus(ctx context.Context, id string, u alert.StatusUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return fmt.Errorf("%w: %s", alert.ErrNotFound, id)
	}
	if a.Status != alert.StatusActive {
		return fmt.Errorf("%w: %s", alert.ErrNotActive, id)
	}
	if u.Status != "" {
		a.Status = u.Status
	}
	if u.LastEvaluatedAt != nil {
		t := u.LastEvaluatedAt.UTC()
		a.LastEvaluatedAt = &t
	}
	if u.TriggeredAt != nil {
		t := u.TriggeredAt.UTC()
		a.TriggeredAt = &t
	}
	m.alerts[id] = a
	return nil
}

func (m *MemoryStore) SetStatus(_ context.Context, id string, st alert.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return fmt.Errorf("%w: %s", alert.ErrNotFound, id)
	}
	a.Status = st
	m.alerts[id] = a
	return nil
}

func (m *MemoryStore) RegisterEndpoint(_ context.Context, ep notify.Endpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.endpoints[ep.OwnerID] {
		if e.Channel == ep.Channel && e.Address == ep.Address {
			return fmt.Errorf("endpoint %s/%s already registered", ep.Channel, ep.Address)
		}
	}
	m.endpoints[ep.OwnerID] = append(m.endpoints[ep.OwnerID], ep)
	return nil
}

func (m *MemoryStore) Endpoints(_ context.Context, ownerID string) ([]notify.Endpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.endpoints[ownerID]), nil
}

func (m *MemoryStore) AppendLog(_ context.Context, e notify.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, e)
	return nil
}

func (m *MemoryStore) ListLogs(_ context.Context, alertID string, limit int) ([]notify.LogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []notify.LogEntry
	for i := len(m.logs) - 1; i >= 0; i-- {
		if alertID != "" && m.logs[i].AlertID != alertID {
			continue
		}
		out = append(out, m.logs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func clone(a alert.Alert) alert.Alert {
	a.Keywords = slices.Clone(a.Keywords)
	if a.LastEvaluatedAt != nil {
		t := *a.LastEvaluatedAt
		a.LastEvaluatedAt = &t
	}
	if a.TriggeredAt != nil {
		t := *a.TriggeredAt
		a.TriggeredAt = &t
	}
	return a
}
