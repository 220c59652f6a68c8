// Package app assembles the long-lived components shared by the server and
// the CLI from a loaded configuration.
package app

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stockalert/internal/alert"
	"stockalert/internal/config"
	"stockalert/internal/httpx"
	"stockalert/internal/logging"
	"stockalert/internal/market"
	"stockalert/internal/news"
	"stockalert/internal/notify"
	"stockalert/internal/provider"
	"stockalert/internal/provider/binanceadapter"
	"stockalert/internal/provider/exchangerate"
	"stockalert/internal/provider/polygonadapter"
	"stockalert/internal/provider/ratelimit"
	"stockalert/internal/provider/scrape"
	"stockalert/internal/provider/yahoo"
	"stockalert/internal/provider/yahooadapter"
	"stockalert/internal/resolver"
	"stockalert/internal/scheduler"
	"stockalert/internal/store"
)

type App struct {
	Config     config.Config
	Log        zerolog.Logger
	HTTP       *httpx.Client
	Store      store.Store
	Resolver   *resolver.Resolver
	Searcher   *news.FeedSearcher // nil when news is disabled
	Dispatcher *notify.Dispatcher
	Scheduler  *scheduler.Scheduler
}

// New opens the store and builds every component. The scheduler is created
// but not started.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	hc := httpx.New(cfg.Resolver.ProviderTimeout())
	headers := httpx.NewHeaderPool(nil, nil)

	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	chains, err := Chains(cfg, hc)
	if err != nil {
		st.Close()
		return nil, err
	}
	res := resolver.New(ResolverConfig(cfg), chains,
		resolver.WithLogger(log.With().Str("component", "resolver").Logger()),
		resolver.WithHeaderPool(headers),
	)

	channels, err := Channels(cfg, hc)
	if err != nil {
		st.Close()
		return nil, err
	}
	disp := notify.NewDispatcher(st, st, channels,
		notify.WithTimeout(cfg.Notify.DispatchTimeout()),
		notify.WithLogger(log.With().Str("component", "dispatcher").Logger()),
	)

	a := &App{Config: cfg, Log: log, HTTP: hc, Store: st, Resolver: res, Dispatcher: disp}

	var searcher scheduler.KeywordSearcher
	if cfg.News.Enabled {
		a.Searcher = news.NewFeedSearcher(news.Config{
			Feeds:        cfg.News.Feeds,
			CacheTTL:     time.Duration(cfg.News.CacheTTLSec) * time.Second,
			SummaryLimit: 280,
		}, hc,
			news.WithLogger(log.With().Str("component", "news").Logger()),
			news.WithHeaderPool(headers),
		)
		searcher = a.Searcher
	}

	a.Scheduler = scheduler.New(scheduler.Config{
		Interval:          cfg.Scheduler.Interval(),
		MaxConcurrency:    cfg.Scheduler.MaxConcurrency,
		EvaluationTimeout: cfg.Scheduler.EvaluationTimeout(),
		RepositoryTimeout: cfg.Scheduler.RepositoryTimeout(),
		Tolerance:         Tolerance(cfg),
	}, st, res, searcher, disp,
		scheduler.WithLogger(log.With().Str("component", "scheduler").Logger()),
	)
	return a, nil
}

// Close stops the scheduler and releases the store.
func (a *App) Close() error {
	a.Scheduler.Stop()
	return a.Store.Close()
}

func ResolverConfig(cfg config.Config) resolver.Config {
	return resolver.Config{
		CacheTTL:         cfg.Resolver.CacheTTL(),
		NegativeCacheTTL: cfg.Resolver.NegativeCacheTTL(),
		CacheMaxItems:    cfg.Resolver.CacheMaxItems,
		ProviderTimeout:  cfg.Resolver.ProviderTimeout(),
		MinDelay:         cfg.Resolver.MinDelay(),
		MaxDelay:         cfg.Resolver.MaxDelay(),
		Ranges:           cfg.Resolver.Ranges.Market(),
	}
}

func Tolerance(cfg config.Config) alert.Tolerance {
	return alert.Tolerance{
		Absolute: decimal.NewFromFloat(cfg.Scheduler.EqualTolerance.Absolute),
		Relative: decimal.NewFromFloat(cfg.Scheduler.EqualTolerance.Relative),
	}
}

// Chains builds the ordered strategy list per asset class. Structured sources
// come first and scraping last.
func Chains(cfg config.Config, hc *httpx.Client) (map[market.AssetClass][]provider.Strategy, error) {
	p := cfg.Providers
	ranges := cfg.Resolver.Ranges.Market()
	var stock, fx []provider.Strategy

	if p.Binance.Enabled {
		fx = append(fx, binanceadapter.NewPublic(binanceadapter.Config{BaseURL: p.Binance.BaseURL}))
	}
	if p.ExchangeRate.Enabled {
		fx = append(fx, exchangerate.New(exchangerate.Config{
			URL:      p.ExchangeRate.BaseURL,
			APIKey:   p.ExchangeRate.APIKey,
			TableTTL: time.Duration(p.ExchangeRate.TableTTLSec) * time.Second,
		}, hc))
	}
	if p.Yahoo.Enabled {
		opts := []yahoo.ChartAPIClientOption{yahoo.WithHTTPClient(hc.HTTP)}
		if p.Yahoo.BaseURL != "" {
			opts = append(opts, yahoo.WithBaseURL(p.Yahoo.BaseURL))
		}
		client, err := yahoo.NewChartAPIClient(opts...)
		if err != nil {
			return nil, err
		}
		// One adapter and one bucket serve both classes so the limit is per host.
		y := limit(yahooadapter.New(yahooadapter.Config{}, client), p.Yahoo.MaxRequestsPerMinute, p.Yahoo.Burst, p.Yahoo.MinRequestIntervalSec)
		stock = append(stock, y)
		fx = append(fx, y)
	}
	if p.Polygon.Enabled {
		if p.Polygon.APIKey == "" {
			return nil, errors.New("providers.polygon.enabled=true but no api key is set")
		}
		poly := polygonadapter.NewFromKey(polygonadapter.Config{}, p.Polygon.APIKey)
		stock = append(stock, limit(poly, p.Polygon.MaxRequestsPerMinute, 1, 0))
	}
	if p.Scrape.Enabled {
		stock = append(stock, limit(scrape.NewStock(config.Targets(p.Scrape.StockURLs), ranges, p.Scrape.MinBodyBytes, hc), 0, 0, p.Scrape.MinRequestIntervalSec))
		fx = append(fx, limit(scrape.NewCurrency(config.Targets(p.Scrape.CurrencyURLs), ranges, p.Scrape.MinBodyBytes, hc), 0, 0, p.Scrape.MinRequestIntervalSec))
	}

	return map[market.AssetClass][]provider.Strategy{
		market.Stock:    stock,
		market.Currency: fx,
	}, nil
}

// limit prefers a token bucket when rpm is set and falls back to a minimum
// interval otherwise.
func limit(s provider.Strategy, rpm, burst int, minIntervalSec float64) provider.Strategy {
	switch {
	case rpm > 0:
		if burst <= 0 {
			burst = 1
		}
		return &ratelimit.TokenBucketStrategy{S: s, TB: ratelimit.PerMinute(rpm, burst)}
	case minIntervalSec > 0:
		return &ratelimit.MinInterval{S: s, Interval: time.Duration(minIntervalSec * float64(time.Second))}
	}
	return s
}

// Channels builds the enabled delivery channels.
func Channels(cfg config.Config, hc *httpx.Client) ([]notify.Channel, error) {
	n := cfg.Notify
	var out []notify.Channel
	if n.Webhook.Enabled {
		out = append(out, notify.NewWebhookChannel(hc, n.Webhook.Secret))
	}
	if n.Email.Enabled {
		out = append(out, notify.NewEmailChannel(notify.EmailConfig{
			Host:        n.Email.Host,
			Port:        n.Email.Port,
			Username:    n.Email.Username,
			Password:    n.Email.Password,
			From:        n.Email.From,
			ImplicitTLS: n.Email.ImplicitTLS,
		}))
	}
	if n.APNs.Enabled {
		ch, err := notify.NewAPNsChannel(notify.APNsConfig{
			KeyID:       n.APNs.KeyID,
			TeamID:      n.APNs.TeamID,
			AuthKeyPath: n.APNs.AuthKeyPath,
			Topic:       n.APNs.Topic,
			Production:  n.APNs.Production,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, nil
}

// Logger builds the process logger from the log section.
func Logger(cfg config.Log) (zerolog.Logger, io.Closer, error) {
	return logging.New(logging.Config{
		Level:      cfg.Level,
		Console:    cfg.Console,
		File:       cfg.File,
		FilePath:   cfg.FilePath,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
	})
}
