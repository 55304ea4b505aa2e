package price

import (
	"sync"
	"time"

	"github.com/mtlprog/treasury/internal/domain"
)

type cacheEntry struct {
	quote     domain.PriceQuote
	expiresAt time.Time
}

// quoteCache memoizes price_cache rows in process for a short time.
// Staleness is always judged from the quote's own timestamp, not from the memo.
type quoteCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

func newQuoteCache(ttl time.Duration) *quoteCache {
	return &quoteCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *quoteCache) get(symbol string, now time.Time) (domain.PriceQuote, bool) {
	if c.ttl <= 0 {
		return domain.PriceQuote{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[symbol]
	if !ok || now.After(entry.expiresAt) {
		return domain.PriceQuote{}, false
	}
	return entry.quote, true
}

func (c *quoteCache) set(symbol string, quote domain.PriceQuote, now time.Time) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[symbol] = cacheEntry{
		quote:     quote,
		expiresAt: now.Add(c.ttl),
	}
}

func (c *quoteCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]cacheEntry)
}
