package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"stockalert/internal/market"
	"stockalert/internal/news"
	"stockalert/internal/provider/scrape"
)

type Server struct {
	Port              string `mapstructure:"port" validate:"required"`
	RequestTimeoutSec int    `mapstructure:"request_timeout_sec" validate:"gt=0"`
}

type Log struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path" validate:"required_if=File true"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
}

type Database struct {
	Driver string `mapstructure:"driver" validate:"oneof=sqlite3 postgres memory"`
	DSN    string `mapstructure:"dsn" validate:"required_unless=Driver memory"`
}

type Tolerance struct {
	Absolute float64 `mapstructure:"absolute" validate:"gte=0"`
	Relative float64 `mapstructure:"relative" validate:"gte=0"`
}

type Scheduler struct {
	IntervalSec          int       `mapstructure:"interval_sec" validate:"gt=0"`
	MaxConcurrency       int       `mapstructure:"max_concurrency" validate:"gt=0"`
	EvaluationTimeoutSec int       `mapstructure:"evaluation_timeout_sec" validate:"gt=0"`
	RepositoryTimeoutSec int       `mapstructure:"repository_timeout_sec" validate:"gt=0"`
	EqualTolerance       Tolerance `mapstructure:"equal_tolerance"`
}

type Range struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max" validate:"gtefield=Min"`
}

// Ranges mirrors market.Ranges. Pair keys are case-insensitive because viper
// lower-cases map keys.
type Ranges struct {
	Equity          Range            `mapstructure:"equity"`
	HighValueEquity Range            `mapstructure:"high_value_equity"`
	LocalEquity     Range            `mapstructure:"local_equity"`
	LocalCurrency   string           `mapstructure:"local_currency"`
	ChangePercent   Range            `mapstructure:"change_percent"`
	CurrencyDefault Range            `mapstructure:"currency_default"`
	CurrencyPairs   map[string]Range `mapstructure:"currency_pairs" validate:"dive"`
}

type Resolver struct {
	CacheTTLSec         int     `mapstructure:"cache_ttl_sec" validate:"gte=0"`
	NegativeCacheTTLSec int     `mapstructure:"negative_cache_ttl_sec" validate:"gte=0"`
	CacheMaxItems       int     `mapstructure:"cache_max_items" validate:"gte=0"`
	ProviderTimeoutSec  int     `mapstructure:"provider_timeout_sec" validate:"gt=0"`
	MinDelaySec         float64 `mapstructure:"min_delay_sec" validate:"gte=0"`
	MaxDelaySec         float64 `mapstructure:"max_delay_sec" validate:"gtefield=MinDelaySec"`
	Ranges              Ranges  `mapstructure:"ranges"`
}

type Yahoo struct {
	Enabled               bool    `mapstructure:"enabled"`
	BaseURL               string  `mapstructure:"base_url" validate:"omitempty,url"`
	MaxRequestsPerMinute  int     `mapstructure:"max_requests_per_minute" validate:"gte=0"`
	Burst                 int     `mapstructure:"burst" validate:"gte=0"`
	MinRequestIntervalSec float64 `mapstructure:"min_request_interval_sec" validate:"gte=0"`
}

type Polygon struct {
	Enabled              bool   `mapstructure:"enabled"`
	APIKey               string `mapstructure:"api_key" validate:"required_if=Enabled true"`
	MaxRequestsPerMinute int    `mapstructure:"max_requests_per_minute" validate:"gte=0"`
}

type ScrapeTarget struct {
	URL      string `mapstructure:"url" validate:"required"`
	Currency string `mapstructure:"currency"`
}

type Scrape struct {
	Enabled      bool           `mapstructure:"enabled"`
	StockURLs    []ScrapeTarget `mapstructure:"stock_urls" validate:"dive"`
	CurrencyURLs []ScrapeTarget `mapstructure:"currency_urls" validate:"dive"`
	MinBodyBytes int            `mapstructure:"min_body_bytes" validate:"gte=0"`
	// MinRequestIntervalSec spaces calls to the scraped site.
	MinRequestIntervalSec float64 `mapstructure:"min_request_interval_sec" validate:"gte=0"`
}

type ExchangeRate struct {
	Enabled     bool   `mapstructure:"enabled"`
	BaseURL     string `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey      string `mapstructure:"api_key"`
	TableTTLSec int    `mapstructure:"table_ttl_sec" validate:"gte=0"`
}

type Binance struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
}

type Providers struct {
	Yahoo        Yahoo        `mapstructure:"yahoo"`
	Polygon      Polygon      `mapstructure:"polygon"`
	Scrape       Scrape       `mapstructure:"scrape"`
	ExchangeRate ExchangeRate `mapstructure:"exchangerate"`
	Binance      Binance      `mapstructure:"binance"`
}

type News struct {
	Enabled     bool     `mapstructure:"enabled"`
	Feeds       []string `mapstructure:"feeds" validate:"required_if=Enabled true,dive,url"`
	CacheTTLSec int      `mapstructure:"cache_ttl_sec" validate:"gte=0"`
}

type Webhook struct {
	Enabled bool   `mapstructure:"enabled"`
	Secret  string `mapstructure:"secret"`
}

type Email struct {
	Enabled     bool   `mapstructure:"enabled"`
	Host        string `mapstructure:"host" validate:"required_if=Enabled true"`
	Port        int    `mapstructure:"port" validate:"gte=0,lte=65535"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	From        string `mapstructure:"from" validate:"required_if=Enabled true"`
	ImplicitTLS bool   `mapstructure:"implicit_tls"`
}

type APNs struct {
	Enabled     bool   `mapstructure:"enabled"`
	KeyID       string `mapstructure:"key_id" validate:"required_if=Enabled true"`
	TeamID      string `mapstructure:"team_id" validate:"required_if=Enabled true"`
	AuthKeyPath string `mapstructure:"auth_key_path" validate:"required_if=Enabled true"`
	Topic       string `mapstructure:"topic" validate:"required_if=Enabled true"`
	Production  bool   `mapstructure:"production"`
}

type Notify struct {
	DispatchTimeoutSec int     `mapstructure:"dispatch_timeout_sec" validate:"gt=0"`
	Webhook            Webhook `mapstructure:"webhook"`
	Email              Email   `mapstructure:"email"`
	APNs               APNs    `mapstructure:"apns"`
}

type Config struct {
	Server    Server    `mapstructure:"server"`
	Log       Log       `mapstructure:"log"`
	Database  Database  `mapstructure:"database"`
	Scheduler Scheduler `mapstructure:"scheduler"`
	Resolver  Resolver  `mapstructure:"resolver"`
	Providers Providers `mapstructure:"providers"`
	News      News      `mapstructure:"news"`
	Notify    Notify    `mapstructure:"notify"`
}

// Default returns the built-in configuration.
func Default() Config {
	cfg := defaults()
	cfg.fillLists()
	return cfg
}

func defaults() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 15},
		Log: Log{
			Level:      "info",
			Console:    true,
			FilePath:   "logs/stockalert.log",
			MaxSizeMB:  100,
			MaxBackups: 7,
			MaxAgeDays: 30,
		},
		Database: Database{Driver: "sqlite3", DSN: "stockalert.db"},
		Scheduler: Scheduler{
			IntervalSec:          300,
			MaxConcurrency:       4,
			EvaluationTimeoutSec: 30,
			RepositoryTimeoutSec: 5,
			EqualTolerance:       Tolerance{Relative: 0.0001},
		},
		Resolver: Resolver{
			CacheTTLSec:         300,
			NegativeCacheTTLSec: 60,
			CacheMaxItems:       10000,
			ProviderTimeoutSec:  10,
			MinDelaySec:         1,
			MaxDelaySec:         3,
			Ranges:              RangesFrom(market.DefaultRanges()),
		},
		Providers: Providers{
			Yahoo: Yahoo{
				Enabled:              true,
				BaseURL:              "https://query1.finance.yahoo.com",
				MaxRequestsPerMinute: 30,
				Burst:                3,
			},
			Polygon: Polygon{MaxRequestsPerMinute: 5},
			Scrape: Scrape{
				Enabled:               true,
				MinBodyBytes:          1000,
				MinRequestIntervalSec: 1,
			},
			ExchangeRate: ExchangeRate{
				Enabled:     true,
				BaseURL:     "https://api.exchangerate-api.com/v4/latest/",
				TableTTLSec: 600,
			},
			Binance: Binance{Enabled: true, BaseURL: "https://api.binance.com"},
		},
		News: News{Enabled: true, CacheTTLSec: 300},
		Notify: Notify{
			DispatchTimeoutSec: 10,
			Webhook:            Webhook{Enabled: true},
			Email:              Email{Port: 587},
		},
	}
}

// envBindings maps config keys to the environment variables that override
// them.
var envBindings = map[string]string{
	"server.port":                    "PORT",
	"log.level":                      "LOG_LEVEL",
	"database.driver":                "DATABASE_DRIVER",
	"database.dsn":                   "DATABASE_DSN",
	"scheduler.interval_sec":         "SCHEDULER_INTERVAL_SEC",
	"resolver.cache_ttl_sec":         "CACHE_TTL_SEC",
	"resolver.provider_timeout_sec":  "PROVIDER_TIMEOUT_SEC",
	"resolver.min_delay_sec":         "MIN_REQUEST_DELAY",
	"resolver.max_delay_sec":         "MAX_REQUEST_DELAY",
	"providers.polygon.api_key":      "POLYGON_API_KEY",
	"providers.exchangerate.api_key": "EXCHANGERATE_API_KEY",
	"notify.apns.key_id":             "APNS_KEY_ID",
	"notify.apns.team_id":            "APNS_TEAM_ID",
	"notify.apns.auth_key_path":      "APNS_AUTH_KEY_PATH",
	"notify.email.password":          "SMTP_PASSWORD",
}

// Load reads the config file at path (JSON, YAML or TOML by extension). With
// an empty path a config.* file in the working directory is used if present.
// A missing file yields defaults. Environment variables override select keys.
func Load(path string) (Config, error) {
	cfg := defaults()
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
	}
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return cfg, fmt.Errorf("bind %s: %w", env, err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.fillLists()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// fillLists applies list defaults after decoding. Decoding onto a pre-filled
// slice would keep trailing default entries.
func (c *Config) fillLists() {
	if c.News.Feeds == nil {
		c.News.Feeds = news.DefaultFeeds()
	}
	if c.Providers.Scrape.StockURLs == nil {
		c.Providers.Scrape.StockURLs = targetsFrom(scrape.DefaultStockTargets())
	}
	if c.Providers.Scrape.CurrencyURLs == nil {
		c.Providers.Scrape.CurrencyURLs = targetsFrom(scrape.DefaultCurrencyTargets())
	}
}

func (c Config) Validate() error {
	return validator.New().Struct(c)
}

func (s Server) RequestTimeout() time.Duration { return seconds(float64(s.RequestTimeoutSec)) }

func (s Scheduler) Interval() time.Duration { return seconds(float64(s.IntervalSec)) }

func (s Scheduler) EvaluationTimeout() time.Duration {
	return seconds(float64(s.EvaluationTimeoutSec))
}

func (s Scheduler) RepositoryTimeout() time.Duration {
	return seconds(float64(s.RepositoryTimeoutSec))
}

func (r Resolver) CacheTTL() time.Duration { return seconds(float64(r.CacheTTLSec)) }

func (r Resolver) NegativeCacheTTL() time.Duration { return seconds(float64(r.NegativeCacheTTLSec)) }

func (r Resolver) ProviderTimeout() time.Duration { return seconds(float64(r.ProviderTimeoutSec)) }

func (r Resolver) MinDelay() time.Duration { return seconds(r.MinDelaySec) }

func (r Resolver) MaxDelay() time.Duration { return seconds(r.MaxDelaySec) }

func (n Notify) DispatchTimeout() time.Duration { return seconds(float64(n.DispatchTimeoutSec)) }

func seconds(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }

// Market converts the configured windows.
func (r Ranges) Market() market.Ranges {
	out := market.Ranges{
		Equity:          r.Equity.market(),
		HighValueEquity: r.HighValueEquity.market(),
		LocalEquity:     r.LocalEquity.market(),
		LocalCurrency:   strings.ToUpper(r.LocalCurrency),
		ChangePercent:   r.ChangePercent.market(),
		CurrencyDefault: r.CurrencyDefault.market(),
		CurrencyPairs:   make(map[string]market.Range, len(r.CurrencyPairs)),
	}
	for k, v := range r.CurrencyPairs {
		out.CurrencyPairs[strings.ToUpper(k)] = v.market()
	}
	return out
}

func (r Range) market() market.Range { return market.NewRange(r.Min, r.Max) }

// RangesFrom is the inverse of Ranges.Market.
func RangesFrom(m market.Ranges) Ranges {
	out := Ranges{
		Equity:          rangeFrom(m.Equity),
		HighValueEquity: rangeFrom(m.HighValueEquity),
		LocalEquity:     rangeFrom(m.LocalEquity),
		LocalCurrency:   m.LocalCurrency,
		ChangePercent:   rangeFrom(m.ChangePercent),
		CurrencyDefault: rangeFrom(m.CurrencyDefault),
		CurrencyPairs:   make(map[string]Range, len(m.CurrencyPairs)),
	}
	for k, v := range m.CurrencyPairs {
		out.CurrencyPairs[strings.ToLower(k)] = rangeFrom(v)
	}
	return out
}

func rangeFrom(r market.Range) Range {
	return Range{Min: r.Min.InexactFloat64(), Max: r.Max.InexactFloat64()}
}

func targetsFrom(ts []scrape.Target) []ScrapeTarget {
	out := make([]ScrapeTarget, 0, len(ts))
	for _, t := range ts {
		out = append(out, ScrapeTarget{URL: t.URL, Currency: t.Currency})
	}
	return out
}

// Targets converts configured URL templates for the scraping strategy.
func Targets(ts []ScrapeTarget) []scrape.Target {
	out := make([]scrape.Target, 0, len(ts))
	for _, t := range ts {
		out = append(out, scrape.Target{URL: t.URL, Currency: strings.ToUpper(t.Currency)})
	}
	return out
}
