package cache

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/aryannaik/holocron/internal/swapi"
)

// Fetcher loads the data for one fingerprint on a cache miss.
type Fetcher func(ctx context.Context) (*swapi.Page, error)

type Options struct {
	// MaxAge marks fetched entries stale after this long. Zero keeps them
	// fresh until invalidated. Locally written entries never age out.
	MaxAge time.Duration

	Registerer prometheus.Registerer
	Logger     *log.Logger
	Now        func() time.Time
}

// Cache maps fingerprints to their last known page. It lives for one
// session; entries are never evicted.
type Cache struct {
	mu      sync.RWMutex
	entries map[Fingerprint]*entry
	group   singleflight.Group

	maxAge  time.Duration
	now     func() time.Time
	logger  *log.Logger
	metrics *metrics
}

type entry struct {
	page      *swapi.Page
	stale     bool
	local     bool
	version   uint64
	updatedAt time.Time
}

func New(opts Options) *Cache {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{
		entries: make(map[Fingerprint]*entry),
		maxAge:  opts.MaxAge,
		now:     opts.Now,
		logger:  opts.Logger,
		metrics: newMetrics(opts.Registerer),
	}
}

// Get returns the entry for fp, fresh or not.
func (c *Cache) Get(fp Fingerprint) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[fp]
	if !ok {
		return Entry{}, false
	}
	return Entry{
		Page:      e.page,
		Fresh:     c.isFresh(e),
		Local:     e.local,
		Version:   e.version,
		UpdatedAt: e.updatedAt,
	}, true
}

// GetOrFetch returns the fresh page for fp, joins a fetch already in flight
// for fp, or runs fetch and stores its result. A failed fetch leaves the
// entry as it was and the error goes to every waiting caller.
//
// The shared fetch is detached from ctx cancellation so one caller giving up
// does not fail the others; ctx still bounds how long this caller waits.
func (c *Cache) GetOrFetch(ctx context.Context, fp Fingerprint, fetch Fetcher) (*swapi.Page, error) {
	c.mu.RLock()
	e := c.entries[fp]
	if e != nil && c.isFresh(e) {
		page := e.page
		c.mu.RUnlock()
		c.metrics.hits.Inc()
		return page, nil
	}
	c.mu.RUnlock()
	c.metrics.misses.Inc()

	ch := c.group.DoChan(fp.String(), func() (interface{}, error) {
		return c.fill(context.WithoutCancel(ctx), fp, fetch)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*swapi.Page), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fill runs inside the singleflight slot for fp, so at most one runs per
// fingerprint at a time.
func (c *Cache) fill(ctx context.Context, fp Fingerprint, fetch Fetcher) (*swapi.Page, error) {
	c.mu.RLock()
	var version uint64
	if e := c.entries[fp]; e != nil {
		if c.isFresh(e) {
			// Filled by a flight that finished after our caller's check.
			page := e.page
			c.mu.RUnlock()
			return page, nil
		}
		version = e.version
	}
	c.mu.RUnlock()

	c.metrics.fetches.Inc()
	page, err := fetch(ctx)
	if err != nil {
		c.metrics.errors.Inc()
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e := c.entries[fp]; e != nil && e.version != version {
		c.metrics.rejected.Inc()
		c.logger.Printf("discard fetched %s: superseded by local write", fp)
		return e.page, nil
	}
	c.storeLocked(fp, page, false)
	return page, nil
}

// Set overwrites the entry for fp. A fetch in flight for fp when Set is called
// will not overwrite this value when it completes.
func (c *Cache) Set(fp Fingerprint, page *swapi.Page) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.storeLocked(fp, page, true)
}

// Invalidate marks fp stale so the next GetOrFetch refetches it.
func (c *Cache) Invalidate(fp Fingerprint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[fp]; ok {
		e.stale = true
	}
}

// InvalidateResource marks every entry of rt stale.
func (c *Cache) InvalidateResource(rt swapi.ResourceType) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for fp, e := range c.entries {
		if fp.Resource == rt {
			e.stale = true
			n++
		}
	}
	return n
}

// Len returns the number of fingerprints with an entry.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) storeLocked(fp Fingerprint, page *swapi.Page, local bool) {
	e, ok := c.entries[fp]
	if !ok {
		e = &entry{}
		c.entries[fp] = e
	}
	e.page = page
	e.stale = false
	e.local = local
	e.version++
	e.updatedAt = c.now()
	c.metrics.entries.Set(float64(len(c.entries)))
}

func (c *Cache) isFresh(e *entry) bool {
	if e.stale {
		return false
	}
	if e.local || c.maxAge <= 0 {
		return true
	}
	return c.now().Sub(e.updatedAt) < c.maxAge
}
