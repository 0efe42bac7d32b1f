package currency

import (
	"context"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// cacheTTL is how long a fetched snapshot is considered fresh. Daily rate
// tables make anything tighter pointless.
const cacheTTL = 24 * time.Hour

// Cache serves rate snapshots per base currency, fetching at most once per
// TTL window. Entries are stored without expiry so a stale snapshot remains
// available as a fallback when every later fetch fails.
type Cache struct {
	provider Provider
	store    *gocache.Cache
	now      func() time.Time
}

// NewCache creates a Cache backed by the given provider
func NewCache(provider Provider) *Cache {
	return &Cache{
		provider: provider,
		store:    gocache.New(gocache.NoExpiration, 0),
		now:      time.Now,
	}
}

// NewCacheWithClock creates a Cache with a custom time source for testing
func NewCacheWithClock(provider Provider, now func() time.Time) *Cache {
	c := NewCache(provider)
	c.now = now
	return c
}

// GetRates returns the best available snapshot for the base currency.
//
// A fresh cached snapshot (younger than 24h) is returned without any network
// access. Otherwise a fetch is attempted; on success the new snapshot
// replaces the cached one. On failure the stale snapshot, if any, is
// returned. nil is a valid outcome meaning no conversion data exists yet;
// callers treat it as a no-op conversion, never as an error.
func (c *Cache) GetRates(ctx context.Context, base string) *Snapshot {
	if base == "" {
		return nil
	}

	var cached *Snapshot
	if v, ok := c.store.Get(base); ok {
		cached = v.(*Snapshot)
		if cached.Age(c.now()) < cacheTTL {
			return cached
		}
	}

	snap, err := c.provider.FetchRates(ctx, base)
	if err != nil {
		slog.Warn("Rate fetch failed, falling back to cache", "base", base, "error", err)
		return cached
	}

	c.store.Set(base, snap, gocache.NoExpiration)
	return snap
}
