package proxy

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/die-net/warden/internal/cache"
	"github.com/die-net/warden/internal/origin"
)

// Fetcher retrieves a URL from its origin.
type Fetcher interface {
	Fetch(ctx context.Context, url string) origin.Result
}

// resolution is the body to serve for a URL and how it was obtained.
type resolution struct {
	body    string
	outcome cache.Outcome
	fetched bool
	shared  bool
}

// resolver answers a URL from the store, fetching from the origin on a miss
// or stale hit.
type resolver interface {
	resolve(ctx context.Context, url string) resolution
}

// cacheFetcher holds what both resolvers share.
type cacheFetcher struct {
	store   *cache.Store
	fetcher Fetcher
	ttl     time.Duration
	metrics *metrics
}

func (c *cacheFetcher) lookup(url string) (cache.Entry, cache.Outcome) {
	e, ok := c.store.Lookup(url)
	return e, cache.Classify(e, ok, c.store.Now(), c.ttl)
}

func (c *cacheFetcher) fetchAndStore(ctx context.Context, url string) string {
	start := time.Now()
	r := c.fetcher.Fetch(ctx, url)
	c.metrics.fetch(r.Status, time.Since(start).Seconds())

	c.store.Upsert(url, r.Body)
	return r.Body
}

// globalResolver serializes every resolution behind one lock held across
// the origin fetch. Concurrent requests never fetch the same URL twice, but
// a slow origin stalls every other request's cache access.
type globalResolver struct {
	cacheFetcher
	mu sync.Mutex
}

func (g *globalResolver) resolve(ctx context.Context, url string) resolution {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, outcome := g.lookup(url)
	if !outcome.NeedsFetch() {
		return resolution{body: e.Body, outcome: outcome}
	}
	return resolution{body: g.fetchAndStore(ctx, url), outcome: outcome, fetched: true}
}

// coalescingResolver locks the store only for map access. Requests that
// need the same URL from the origin at the same time wait on one shared
// fetch; requests for other URLs proceed independently.
type coalescingResolver struct {
	cacheFetcher
	group singleflight.Group
}

func (c *coalescingResolver) resolve(ctx context.Context, url string) resolution {
	e, outcome := c.lookup(url)
	if !outcome.NeedsFetch() {
		return resolution{body: e.Body, outcome: outcome}
	}

	var fetched bool
	v, _, shared := c.group.Do(url, func() (any, error) {
		// A flight that finished between our lookup and now may already
		// have refreshed the entry.
		if e, ok := c.store.Lookup(url); ok && cache.Classify(e, ok, c.store.Now(), c.ttl) == cache.FreshHit {
			return e.Body, nil
		}
		fetched = true
		return c.fetchAndStore(ctx, url), nil
	})
	if shared && !fetched {
		c.metrics.coalesced.Inc()
	}

	return resolution{body: v.(string), outcome: outcome, fetched: fetched, shared: shared}
}

func newResolver(mode LockMode, cf cacheFetcher) resolver {
	if mode == Global {
		return &globalResolver{cacheFetcher: cf}
	}
	return &coalescingResolver{cacheFetcher: cf}
}
