package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"stockalert/internal/aggregate"
	"stockalert/internal/market"
	"stockalert/internal/resolver"
	"stockalert/internal/scheduler"
)

type quoteService interface {
	Resolve(ctx context.Context, class market.AssetClass, query string) (market.Quote, error)
	Probe(ctx context.Context, class market.AssetClass, query string) ([]resolver.ProbeResult, error)
}

type cycleRunner interface {
	Status() scheduler.Status
	RunCycle(ctx context.Context) (scheduler.CycleReport, error)
}

type api struct {
	quotes  quoteService
	sched   cycleRunner
	log     zerolog.Logger
	timeout time.Duration
}

type sourcesResponse struct {
	Results []resolver.ProbeResult `json:"results"`
	Latest  []aggregate.Latest     `json:"latest"`
	Summary []aggregate.Summary    `json:"summary"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *api) router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", a.health).Methods(http.MethodGet)
	r.HandleFunc("/api/quote", a.quote).Methods(http.MethodGet)
	r.HandleFunc("/api/quote/sources", a.sources).Methods(http.MethodGet)
	r.HandleFunc("/api/scheduler/status", a.status).Methods(http.MethodGet)
	r.HandleFunc("/api/scheduler/run", a.run).Methods(http.MethodPost)
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.Use(accessLog(a.log), recoverPanic(a.log), limitBody)
	return withJSONHeaders(withGzip(r))
}

func (a *api) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// queryParams reads q and class; class defaults to stock.
func queryParams(r *http.Request) (market.AssetClass, string, error) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		return "", "", errors.New("missing q query param")
	}
	class, err := market.ParseAssetClass(strings.ToLower(r.URL.Query().Get("class")))
	if err != nil {
		return "", "", err
	}
	return class, q, nil
}

func (a *api) quote(w http.ResponseWriter, r *http.Request) {
	class, q, err := queryParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
	defer cancel()

	quote, err := a.quotes.Resolve(ctx, class, q)
	if err != nil {
		writeResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (a *api) sources(w http.ResponseWriter, r *http.Request) {
	class, q, err := queryParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	// Probe visits every strategy, so it gets more room than a resolve.
	ctx, cancel := context.WithTimeout(r.Context(), 3*a.timeout)
	defer cancel()

	results, err := a.quotes.Probe(ctx, class, q)
	if err != nil && len(results) == 0 {
		writeResolveError(w, err)
		return
	}
	var quotes []market.Quote
	for _, res := range results {
		if res.Quote != nil && res.Plausible {
			quotes = append(quotes, *res.Quote)
		}
	}
	latest := aggregate.LatestBySource(quotes, false)
	writeJSON(w, http.StatusOK, sourcesResponse{
		Results: results,
		Latest:  latest,
		Summary: aggregate.Summarize(latest),
	})
}

func (a *api) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.sched.Status())
}

func (a *api) run(w http.ResponseWriter, r *http.Request) {
	report, err := a.sched.RunCycle(r.Context())
	if errors.Is(err, scheduler.ErrCycleRunning) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeResolveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, market.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, market.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
