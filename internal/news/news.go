// Package news searches RSS/Atom feeds for keyword matches.
package news

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"stockalert/internal/httpx"
)

// Item is one headline.
type Item struct {
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Summary   string    `json:"summary,omitempty"`
	Published time.Time `json:"published"`
	Source    string    `json:"source"`
}

// Searcher finds items mentioning any of keywords.
type Searcher interface {
	Search(ctx context.Context, keywords []string) ([]Item, error)
}

// NewSince keeps items published strictly after since. Undated items are
// dropped because their freshness cannot be judged.
func NewSince(items []Item, since time.Time) []Item {
	var out []Item
	for _, it := range items {
		if !it.Published.IsZero() && it.Published.After(since) {
			out = append(out, it)
		}
	}
	return out
}

type Config struct {
	Feeds []string
	// CacheTTL keeps each parsed feed for this long. Zero disables caching.
	CacheTTL time.Duration
	// SummaryLimit truncates summaries; zero keeps them whole.
	SummaryLimit int
}

func DefaultFeeds() []string {
	return []string{
		"https://feeds.bloomberg.com/economics/news.rss",
		"https://www.marketwatch.com/rss/topstories",
	}
}

type Option func(*FeedSearcher)

func WithLogger(l zerolog.Logger) Option { return func(s *FeedSearcher) { s.log = l } }

func WithHeaderPool(p *httpx.HeaderPool) Option { return func(s *FeedSearcher) { s.headers = p } }

// FeedSearcher fetches configured feeds through httpx and matches keywords
// against titles and summaries.
type FeedSearcher struct {
	cfg     Config
	client  *httpx.Client
	headers *httpx.HeaderPool
	parser  *gofeed.Parser
	log     zerolog.Logger
	now     func() time.Time

	mu    sync.RWMutex
	feeds map[string]feedCache
	// coalesce concurrent refreshes per feed
	sf singleflight.Group
	pm sync.Mutex
}

type feedCache struct {
	items []Item
	until time.Time
}

func NewFeedSearcher(cfg Config, hc *httpx.Client, opts ...Option) *FeedSearcher {
	if len(cfg.Feeds) == 0 {
		cfg.Feeds = DefaultFeeds()
	}
	s := &FeedSearcher{
		cfg:    cfg,
		client: hc,
		parser: gofeed.NewParser(),
		log:    zerolog.Nop(),
		now:    time.Now,
		feeds:  make(map[string]feedCache),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *FeedSearcher) Search(ctx context.Context, keywords []string) ([]Item, error) {
	kws := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			kws = append(kws, k)
		}
	}
	if len(kws) == 0 {
		return nil, errors.New("news: no keywords")
	}

	var out []Item
	var errs []error
	ok := 0
	for _, url := range s.cfg.Feeds {
		items, err := s.feed(ctx, url)
		if err != nil {
			s.log.Debug().Err(err).Str("feed", url).Msg("feed fetch failed")
			errs = append(errs, fmt.Errorf("%s: %w", url, err))
			continue
		}
		ok++
		for _, it := range items {
			if matches(it, kws) {
				out = append(out, it)
			}
		}
	}
	if ok == 0 {
		return nil, errors.Join(errs...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Published.After(out[j].Published) })
	return out, nil
}

func matches(it Item, kws []string) bool {
	text := strings.ToLower(it.Title + " " + it.Summary)
	for _, k := range kws {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func (s *FeedSearcher) feed(ctx context.Context, url string) ([]Item, error) {
	if s.cfg.CacheTTL > 0 {
		s.mu.RLock()
		fc, ok := s.feeds[url]
		s.mu.RUnlock()
		if ok && s.now().Before(fc.until) {
			return fc.items, nil
		}
	}
	v, err, _ := s.sf.Do(url, func() (any, error) {
		items, err := s.fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		if s.cfg.CacheTTL > 0 {
			s.mu.Lock()
			s.feeds[url] = feedCache{items: items, until: s.now().Add(s.cfg.CacheTTL)}
			s.mu.Unlock()
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Item), nil
}

func (s *FeedSearcher) fetch(ctx context.Context, url string) ([]Item, error) {
	var h http.Header
	if s.headers != nil {
		h = s.headers.Pick()
	}
	b, err := s.client.Get(ctx, url, h)
	if err != nil {
		return nil, err
	}
	// gofeed.Parser is not safe for concurrent use.
	s.pm.Lock()
	feed, err := s.parser.Parse(bytes.NewReader(b))
	s.pm.Unlock()
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	source := feed.Title
	if source == "" {
		source = "RSS"
	}
	items := make([]Item, 0, len(feed.Items))
	for _, fi := range feed.Items {
		if fi == nil {
			continue
		}
		it := Item{
			Title:   strings.TrimSpace(fi.Title),
			Link:    fi.Link,
			Summary: strings.TrimSpace(fi.Description),
			Source:  source,
		}
		if s.cfg.SummaryLimit > 0 && len([]rune(it.Summary)) > s.cfg.SummaryLimit {
			it.Summary = string([]rune(it.Summary)[:s.cfg.SummaryLimit]) + "..."
		}
		switch {
		case fi.PublishedParsed != nil:
			it.Published = fi.PublishedParsed.UTC()
		case fi.UpdatedParsed != nil:
			it.Published = fi.UpdatedParsed.UTC()
		}
		items = append(items, it)
	}
	return items, nil
}
