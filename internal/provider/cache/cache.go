package cache

import (
	"sync"
	"time"

	"stockalert/internal/market"
)

// Entry is a cached resolution: either a quote or a remembered miss.
type Entry struct {
	Quote     market.Quote
	Found     bool
	StoredAt  time.Time
	expiresAt time.Time
}

// Cache keeps resolutions per key for a TTL. Misses use NegativeTTL so a
// source outage is retried sooner than a good quote is refreshed.
type Cache struct {
	TTL         time.Duration
	NegativeTTL time.Duration
	MaxItems    int
	// Now is the clock; nil means time.Now.
	Now func() time.Time

	mu    sync.RWMutex
	items map[string]Entry
}

func (c *Cache) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Get returns the live entry for key, if any.
func (c *Cache) Get(key string) (Entry, bool) {
	now := c.now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.items[key]
	if !ok || !now.Before(e.expiresAt) {
		return Entry{}, false
	}
	return e, true
}

// Put stores a found quote.
func (c *Cache) Put(key string, q market.Quote) {
	c.store(key, Entry{Quote: q, Found: true}, c.TTL)
}

// PutMiss remembers that key resolved to nothing.
func (c *Cache) PutMiss(key string) {
	c.store(key, Entry{}, c.NegativeTTL)
}

func (c *Cache) store(key string, e Entry, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	now := c.now()
	e.StoredAt = now
	e.expiresAt = now.Add(ttl)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = make(map[string]Entry)
	}
	c.items[key] = e

	// best-effort cap cache size
	if c.MaxItems > 0 && len(c.items) > c.MaxItems {
		// remove expired first, then arbitrary
		for k, v := range c.items {
			if !now.Before(v.expiresAt) {
				delete(c.items, k)
			}
		}
		for k := range c.items {
			if len(c.items) <= c.MaxItems {
				break
			}
			if k == key {
				continue
			}
			delete(c.items, k)
		}
	}
}

// Len reports the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
