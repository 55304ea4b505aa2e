package price

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/treasury/internal/domain"
)

// DefaultTTL applies when neither the caller nor the cached row carries a TTL.
const DefaultTTL = 300 * time.Second

// Price is a resolved USD price and whether it was stale at lookup time.
type Price struct {
	USD   decimal.Decimal
	Stale bool
}

// Pricer resolves cached USD prices with a staleness flag.
type Pricer struct {
	repo  QuoteRepository
	cache *quoteCache
	now   func() time.Time
}

// NewPricer creates a Pricer. memoTTL controls the in-process memo of price_cache rows; zero disables it.
func NewPricer(repo QuoteRepository, memoTTL time.Duration) *Pricer {
	return &Pricer{
		repo:  repo,
		cache: newQuoteCache(memoTTL),
		now:   time.Now,
	}
}

// WithClock replaces the time source. It is meant for tests.
func (p *Pricer) WithClock(now func() time.Time) *Pricer {
	p.now = now
	return p
}

// Invalidate drops memoized quotes so the next lookup reads the store.
func (p *Pricer) Invalidate() {
	p.cache.clear()
}

// PriceWithTTL returns the cached USD price for an asset and whether it is stale.
// A ttl of zero uses the TTL stored with the quote (falling back to DefaultTTL).
// found is false when no price is cached; such assets are excluded from USD totals.
func (p *Pricer) PriceWithTTL(ctx context.Context, symbol string, ttl time.Duration) (price Price, found bool, err error) {
	now := p.now()

	quote, ok := p.cache.get(symbol, now)
	if !ok {
		quote, err = p.repo.GetQuote(ctx, symbol)
		if err != nil {
			if errors.Is(err, ErrQuoteNotFound) {
				return Price{}, false, nil
			}
			return Price{}, false, err
		}
		p.cache.set(symbol, quote, now)
	}

	switch {
	case ttl > 0:
		quote.TTL = ttl
	case quote.TTL <= 0:
		quote.TTL = DefaultTTL
	}

	return Price{USD: quote.PriceUSD, Stale: quote.IsStale(now)}, true, nil
}

// Session tracks every price consulted during one report so the report can be
// marked STALE if any of them was stale.
type Session struct {
	pricer *Pricer
	ttl    time.Duration

	mu     sync.Mutex
	seen   map[string]sessionEntry
	stale  bool
	missed map[string]bool
}

type sessionEntry struct {
	price Price
	found bool
}

// NewSession starts a lookup session. ttl is passed through to PriceWithTTL.
func (p *Pricer) NewSession(ttl time.Duration) *Session {
	return &Session{
		pricer: p,
		ttl:    ttl,
		seen:   make(map[string]sessionEntry),
		missed: make(map[string]bool),
	}
}

// Lookup resolves a price once per session. Store errors are logged and treated as a missing price.
func (s *Session) Lookup(ctx context.Context, symbol string) (Price, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.seen[symbol]; ok {
		return e.price, e.found
	}

	p, found, err := s.pricer.PriceWithTTL(ctx, symbol, s.ttl)
	if err != nil {
		slog.Error("price lookup failed, excluding asset from USD totals", "asset", symbol, "error", err)
		found = false
	}
	if !found {
		if !s.missed[symbol] {
			slog.Warn("no cached price, excluding asset from USD totals", "asset", symbol)
			s.missed[symbol] = true
		}
	} else if p.Stale {
		s.stale = true
	}

	s.seen[symbol] = sessionEntry{price: p, found: found}
	return p, found
}

// Status returns STALE if any price consulted in this session was stale.
func (s *Session) Status() domain.PriceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stale {
		return domain.PriceStale
	}
	return domain.PriceFresh
}
