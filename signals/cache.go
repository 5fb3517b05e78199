package signals

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache wraps a Provider with a per-ticker TTL cache. The engine flushes it
// at every cycle boundary; the TTL bounds staleness within long cycles.
type Cache struct {
	provider Provider
	store    *gocache.Cache
}

// DefaultTTL bounds how long a cached signal stays fresh.
const DefaultTTL = 5 * time.Minute

func NewCache(provider Provider, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		provider: provider,
		store:    gocache.New(ttl, 2*ttl),
	}
}

var _ Provider = (*Cache)(nil)

// FetchSignals returns the cached entry when fresh, otherwise fetches from
// the underlying provider and caches the result.
func (c *Cache) FetchSignals(ctx context.Context, ticker string) (*TechnicalSignals, error) {
	if v, ok := c.store.Get(ticker); ok {
		return v.(*TechnicalSignals), nil
	}

	sig, err := c.provider.FetchSignals(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("fetch signals %s: %w", ticker, err)
	}
	c.store.SetDefault(ticker, sig)
	return sig, nil
}

// Flush drops every cached entry.
func (c *Cache) Flush() {
	c.store.Flush()
}

// Len returns the number of cached entries, expired ones included.
func (c *Cache) Len() int {
	return c.store.ItemCount()
}
