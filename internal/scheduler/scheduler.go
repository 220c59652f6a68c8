// Package scheduler evaluates active alerts on a fixed interval and fires
// notifications for the ones whose condition holds.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"stockalert/internal/alert"
	"stockalert/internal/market"
	"stockalert/internal/news"
	"stockalert/internal/notify"
)

// ErrCycleRunning is returned by RunCycle while another cycle is in flight.
var ErrCycleRunning = errors.New("scheduler: a cycle is already running")

//go:generate mockgen -package=scheduler_test -destination=mock_deps_test.go -source=scheduler.go QuoteResolver,Dispatcher,KeywordSearcher

type QuoteResolver interface {
	Resolve(ctx context.Context, class market.AssetClass, query string) (market.Quote, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, a alert.Alert, tr notify.Trigger) notify.Outcome
}

type KeywordSearcher interface {
	Search(ctx context.Context, keywords []string) ([]news.Item, error)
}

type Config struct {
	Interval          time.Duration
	MaxConcurrency    int
	EvaluationTimeout time.Duration
	RepositoryTimeout time.Duration
	Tolerance         alert.Tolerance
}

func DefaultConfig() Config {
	return Config{
		Interval:          5 * time.Minute,
		MaxConcurrency:    4,
		EvaluationTimeout: 30 * time.Second,
		RepositoryTimeout: 5 * time.Second,
		Tolerance:         alert.DefaultTolerance(),
	}
}

type Option func(*Scheduler)

func WithLogger(l zerolog.Logger) Option { return func(s *Scheduler) { s.log = l } }

func WithClock(now func() time.Time) Option { return func(s *Scheduler) { s.now = now } }

// CycleReport counts per-alert results of one cycle. Skipped alerts were not
// evaluated (no quote, search error, lock contention, cancellation) or were
// disabled mid-cycle; Failed ones hit a repository error or a panic.
type CycleReport struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Evaluated int           `json:"evaluated"`
	Triggered int           `json:"triggered"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Cancelled bool          `json:"cancelled,omitempty"`
}

type Status struct {
	Running      bool         `json:"running"`
	IntervalSec  float64      `json:"interval_sec"`
	CyclesRun    int64        `json:"cycles_run"`
	SkippedTicks int64        `json:"skipped_ticks"`
	LastCycle    *CycleReport `json:"last_cycle,omitempty"`
}

type Scheduler struct {
	cfg        Config
	repo       alert.Repository
	resolver   QuoteResolver
	searcher   KeywordSearcher
	dispatcher Dispatcher
	log        zerolog.Logger
	now        func() time.Time

	inFlight atomic.Bool
	running  atomic.Bool
	cycles   atomic.Int64
	skipped  atomic.Int64

	mu     sync.Mutex // guards Start/Stop
	cancel context.CancelFunc
	done   chan struct{}

	busyMu sync.Mutex
	busy   map[string]struct{} // alert ids under evaluation

	manualMu sync.Mutex
	manual   map[*manualRun]struct{}

	lastMu sync.RWMutex
	last   *CycleReport
}

// New wires a scheduler. searcher may be nil, in which case news alerts are
// skipped every cycle.
func New(cfg Config, repo alert.Repository, resolver QuoteResolver, searcher KeywordSearcher, dispatcher Dispatcher, opts ...Option) *Scheduler {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = def.MaxConcurrency
	}
	if cfg.EvaluationTimeout <= 0 {
		cfg.EvaluationTimeout = def.EvaluationTimeout
	}
	if cfg.RepositoryTimeout <= 0 {
		cfg.RepositoryTimeout = def.RepositoryTimeout
	}
	s := &Scheduler{
		cfg:        cfg,
		repo:       repo,
		resolver:   resolver,
		searcher:   searcher,
		dispatcher: dispatcher,
		log:        zerolog.Nop(),
		now:        time.Now,
		busy:       make(map[string]struct{}),
		manual:     make(map[*manualRun]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start launches the loop. The first cycle runs immediately. Calling Start on
// a running scheduler only logs a warning.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running.Load() {
		s.log.Warn().Msg("scheduler already running; ignoring start")
		return nil
	}
	if s.done != nil {
		<-s.done
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)
	go s.loop(loopCtx, s.done)
	s.log.Info().Dur("interval", s.cfg.Interval).Int("max_concurrency", s.cfg.MaxConcurrency).Msg("scheduler started")
	return nil
}

// Stop cancels the in-flight cycle, including one started by RunCycle, and
// waits for it and the loop to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		<-s.done
		s.cancel = nil
		s.log.Info().Msg("scheduler stopped")
	}

	s.manualMu.Lock()
	runs := make([]*manualRun, 0, len(s.manual))
	for r := range s.manual {
		runs = append(runs, r)
	}
	s.manualMu.Unlock()
	for _, r := range runs {
		r.cancel()
	}
	for _, r := range runs {
		<-r.done
	}
}

func (s *Scheduler) Status() Status {
	st := Status{
		Running:      s.running.Load(),
		IntervalSec:  s.cfg.Interval.Seconds(),
		CyclesRun:    s.cycles.Load(),
		SkippedTicks: s.skipped.Load(),
	}
	s.lastMu.RLock()
	if s.last != nil {
		r := *s.last
		st.LastCycle = &r
	}
	s.lastMu.RUnlock()
	return st
}

type manualRun struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// RunCycle runs one cycle synchronously. It does not wait for a cycle started
// by the loop; it returns ErrCycleRunning instead. Stop cancels the cycle and
// waits for it.
func (s *Scheduler) RunCycle(ctx context.Context) (CycleReport, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return CycleReport{}, ErrCycleRunning
	}
	defer s.inFlight.Store(false)

	cctx, cancel := context.WithCancel(ctx)
	run := &manualRun{cancel: cancel, done: make(chan struct{})}
	s.manualMu.Lock()
	s.manual[run] = struct{}{}
	s.manualMu.Unlock()
	defer func() {
		s.manualMu.Lock()
		delete(s.manual, run)
		s.manualMu.Unlock()
		cancel()
		close(run.done)
	}()

	return s.cycle(cctx), nil
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer s.running.Store(false)

	var wg sync.WaitGroup
	defer wg.Wait()

	t := time.NewTicker(s.cfg.Interval)
	defer t.Stop()

	s.tick(ctx, &wg)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.tick(ctx, &wg)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, wg *sync.WaitGroup) {
	if !s.inFlight.CompareAndSwap(false, true) {
		n := s.skipped.Add(1)
		s.log.Warn().Int64("skipped_ticks", n).Msg("previous cycle still running; skipping tick")
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer s.inFlight.Store(false)
		s.cycle(ctx)
	}()
}

type result int

const (
	resultEvaluated result = iota
	resultTriggered
	resultSkipped
	resultFailed
)

type tally struct {
	evaluated, triggered, skipped, failed atomic.Int64
}

func (t *tally) add(r result) {
	switch r {
	case resultEvaluated:
		t.evaluated.Add(1)
	case resultTriggered:
		t.triggered.Add(1)
	case resultSkipped:
		t.skipped.Add(1)
	default:
		t.failed.Add(1)
	}
}

func (s *Scheduler) cycle(ctx context.Context) CycleReport {
	start := s.now()
	var t tally
	for _, kind := range alert.Kinds {
		if ctx.Err() != nil {
			break
		}
		s.runKind(ctx, kind, &t)
	}
	rep := CycleReport{
		StartedAt: start.UTC(),
		Duration:  s.now().Sub(start),
		Evaluated: int(t.evaluated.Load()),
		Triggered: int(t.triggered.Load()),
		Skipped:   int(t.skipped.Load()),
		Failed:    int(t.failed.Load()),
		Cancelled: ctx.Err() != nil,
	}
	s.cycles.Add(1)
	s.lastMu.Lock()
	s.last = &rep
	s.lastMu.Unlock()

	s.log.Info().
		Int("evaluated", rep.Evaluated).
		Int("triggered", rep.Triggered).
		Int("skipped", rep.Skipped).
		Int("failed", rep.Failed).
		Dur("duration", rep.Duration).
		Bool("cancelled", rep.Cancelled).
		Msg("cycle finished")
	return rep
}

func (s *Scheduler) runKind(ctx context.Context, kind alert.Kind, t *tally) {
	rctx, cancel := context.WithTimeout(ctx, s.cfg.RepositoryTimeout)
	alerts, err := s.repo.ListActive(rctx, kind)
	cancel()
	if err != nil {
		s.log.Error().Err(err).Str("kind", string(kind)).Msg("failed to list active alerts")
		return
	}

	var g errgroup.Group
	g.SetLimit(s.cfg.MaxConcurrency)
	for _, a := range alerts {
		if ctx.Err() != nil {
			t.skipped.Add(1)
			continue
		}
		g.Go(func() error {
			t.add(s.evaluate(ctx, a))
			return nil
		})
	}
	_ = g.Wait()
}

// acquire marks id as under evaluation. It reports false when another
// goroutine holds it.
func (s *Scheduler) acquire(id string) bool {
	s.busyMu.Lock()
	defer s.busyMu.Unlock()
	if _, ok := s.busy[id]; ok {
		return false
	}
	s.busy[id] = struct{}{}
	return true
}

func (s *Scheduler) release(id string) {
	s.busyMu.Lock()
	delete(s.busy, id)
	s.busyMu.Unlock()
}

// evaluate runs one alert through check, persist and dispatch. The alert either
// fully transitions or is left untouched.
func (s *Scheduler) evaluate(ctx context.Context, a alert.Alert) (res result) {
	log := s.log.With().Str("alert_id", a.ID).Str("kind", string(a.Kind)).Logger()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("alert evaluation panicked")
			res = resultFailed
		}
	}()

	if !s.acquire(a.ID) {
		log.Warn().Msg("alert is already being evaluated")
		return resultSkipped
	}
	defer s.release(a.ID)

	if ctx.Err() != nil {
		return resultSkipped
	}
	satisfied, tr, err := s.check(ctx, a)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn().Err(err).Msg("alert not evaluated")
		}
		return resultSkipped
	}
	if ctx.Err() != nil {
		return resultSkipped
	}

	now := s.now().UTC()
	if !satisfied {
		err := s.update(ctx, a.ID, alert.StatusUpdate{Status: alert.StatusActive, LastEvaluatedAt: &now})
		if errors.Is(err, alert.ErrNotActive) {
			log.Info().Msg("alert no longer active; evaluation not recorded")
			return resultSkipped
		}
		if err != nil {
			log.Error().Err(err).Msg("failed to record evaluation")
			return resultFailed
		}
		return resultEvaluated
	}

	err = s.update(ctx, a.ID, alert.StatusUpdate{Status: alert.StatusTriggered, LastEvaluatedAt: &now, TriggeredAt: &now})
	if errors.Is(err, alert.ErrNotActive) {
		log.Info().Msg("alert no longer active; not dispatching")
		return resultSkipped
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to persist trigger; alert stays active")
		return resultFailed
	}

	a.Status = alert.StatusTriggered
	a.LastEvaluatedAt = &now
	a.TriggeredAt = &now
	tr.At = now
	outcome := s.dispatcher.Dispatch(context.WithoutCancel(ctx), a, tr)
	log.Info().Str("outcome", string(outcome)).Msg("alert triggered")
	return resultTriggered
}

func (s *Scheduler) check(ctx context.Context, a alert.Alert) (bool, notify.Trigger, error) {
	ectx, cancel := context.WithTimeout(ctx, s.cfg.EvaluationTimeout)
	defer cancel()

	if a.Kind == alert.KindNews {
		if s.searcher == nil {
			return false, notify.Trigger{}, errors.New("no keyword searcher configured")
		}
		items, err := s.searcher.Search(ectx, a.Keywords)
		if err != nil {
			return false, notify.Trigger{}, fmt.Errorf("search: %w", err)
		}
		fresh := news.NewSince(items, a.EvaluatedSince())
		return len(fresh) > 0, notify.Trigger{Headlines: fresh}, nil
	}

	class, ok := a.Kind.AssetClass()
	if !ok {
		return false, notify.Trigger{}, fmt.Errorf("unsupported alert kind %q", a.Kind)
	}
	q, err := s.resolver.Resolve(ectx, class, a.Symbol)
	if err != nil {
		return false, notify.Trigger{}, err
	}
	hit, err := alert.Evaluate(a.Condition, q.Price, a.Target, s.cfg.Tolerance)
	if err != nil {
		return false, notify.Trigger{}, err
	}
	return hit, notify.Trigger{Quote: &q}, nil
}

func (s *Scheduler) update(ctx context.Context, id string, u alert.StatusUpdate) error {
	rctx, cancel := context.WithTimeout(ctx, s.cfg.RepositoryTimeout)
	defer cancel()
	return s.repo.UpdateStatus(rctx, id, u)
}
