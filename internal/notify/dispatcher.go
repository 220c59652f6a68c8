package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stockalert/internal/alert"
)

type Option func(*Dispatcher)

// WithTimeout bounds each endpoint send and each directory/log call.
func WithTimeout(d time.Duration) Option { return func(x *Dispatcher) { x.timeout = d } }

func WithLogger(l zerolog.Logger) Option { return func(x *Dispatcher) { x.log = l } }

func WithClock(now func() time.Time) Option { return func(x *Dispatcher) { x.now = now } }

// Dispatcher fans a trigger out to the owner's endpoints. It never returns
// an error: every failure is folded into the Outcome and the log entry.
type Dispatcher struct {
	dir      EndpointDirectory
	logs     LogWriter
	channels map[string]Channel
	timeout  time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

func NewDispatcher(dir EndpointDirectory, logs LogWriter, channels []Channel, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		dir:      dir,
		logs:     logs,
		channels: make(map[string]Channel, len(channels)),
		timeout:  10 * time.Second,
		log:      zerolog.Nop(),
		now:      time.Now,
	}
	for _, c := range channels {
		if c != nil {
			d.channels[c.Name()] = c
		}
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Channels lists configured channel names.
func (d *Dispatcher) Channels() []string {
	out := make([]string, 0, len(d.channels))
	for name := range d.channels {
		out = append(out, name)
	}
	return out
}

func (d *Dispatcher) Dispatch(ctx context.Context, a alert.Alert, tr Trigger) (out Outcome) {
	title, body := Message(a, tr)
	log := d.log.With().Str("alert_id", a.ID).Str("owner_id", a.OwnerID).Logger()
	var detail string

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("dispatch panicked")
			out = Failed
			detail = fmt.Sprintf("panic: %v", rec)
		}
		d.record(ctx, log, LogEntry{
			AlertID: a.ID,
			OwnerID: a.OwnerID,
			Outcome: out,
			Message: title + ": " + body,
			Detail:  detail,
		})
	}()

	if len(d.channels) == 0 {
		log.Info().Str("title", title).Str("body", body).Msg("no channel configured, simulated delivery")
		return Simulated
	}

	lctx, cancel := d.bound(ctx)
	endpoints, err := d.dir.Endpoints(lctx, a.OwnerID)
	cancel()
	if err != nil {
		log.Error().Err(err).Msg("endpoint lookup failed")
		detail = "endpoint lookup: " + err.Error()
		return Failed
	}
	if len(endpoints) == 0 {
		log.Info().Str("title", title).Msg("owner has no endpoints, simulated delivery")
		return Simulated
	}

	errs := make([]error, len(endpoints))
	var wg sync.WaitGroup
	for i, ep := range endpoints {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = d.send(ctx, ep, title, body)
		}()
	}
	wg.Wait()

	var failed []string
	for i, err := range errs {
		ep := endpoints[i]
		if err != nil {
			log.Warn().Err(err).Str("channel", ep.Channel).Str("endpoint_id", ep.ID).Msg("delivery failed")
			failed = append(failed, fmt.Sprintf("%s/%s: %v", ep.Channel, ep.ID, err))
			continue
		}
		log.Debug().Str("channel", ep.Channel).Str("endpoint_id", ep.ID).Msg("delivered")
	}
	detail = strings.Join(failed, "; ")
	switch {
	case len(failed) == 0:
		return Delivered
	case len(failed) < len(endpoints):
		return PartiallyDelivered
	default:
		return Failed
	}
}

func (d *Dispatcher) send(ctx context.Context, ep Endpoint, title, body string) (err error) {
	ch, ok := d.channels[ep.Channel]
	if !ok {
		return fmt.Errorf("no channel %q", ep.Channel)
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("channel %s panicked: %v", ep.Channel, rec)
		}
	}()
	sctx, cancel := d.bound(ctx)
	defer cancel()
	return ch.Send(sctx, ep, title, body)
}

func (d *Dispatcher) record(ctx context.Context, log zerolog.Logger, e LogEntry) {
	e.ID = uuid.NewString()
	e.CreatedAt = d.now().UTC()
	if d.logs == nil {
		return
	}
	lctx, cancel := d.bound(ctx)
	defer cancel()
	if err := d.logs.AppendLog(lctx, e); err != nil {
		log.Error().Err(err).Str("outcome", string(e.Outcome)).Msg("append notification log")
	}
}

func (d *Dispatcher) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.timeout)
}
