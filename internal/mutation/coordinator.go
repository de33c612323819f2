// Package mutation applies optimistic create, update and delete to the cached
// page a collection view is showing. The remote catalogue is read-only, so
// nothing is sent upstream; rows carry a local_state flag instead.
package mutation

import (
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/aryannaik/holocron/internal/cache"
	"github.com/aryannaik/holocron/internal/swapi"
)

var (
	ErrPageNotLoaded    = errors.New("page not loaded")
	ErrResourceMismatch = errors.New("entity kind does not match collection")
)

// Locator tells the coordinator which cached page is on screen.
type Locator interface {
	Resource() swapi.ResourceType
	CurrentPage() int
}

type Options struct {
	// Identities is shared across coordinators of one session. Default: a
	// private source.
	Identities *IdentitySource
	Logger     *log.Logger
	Now        func() time.Time
}

type Coordinator struct {
	cache   *cache.Cache
	locator Locator
	ids     *IdentitySource
	logger  *log.Logger
	now     func() time.Time

	// mu orders read-modify-write cycles on the cached page.
	mu sync.Mutex
}

func NewCoordinator(c *cache.Cache, loc Locator, opts Options) *Coordinator {
	if opts.Identities == nil {
		opts.Identities = NewIdentitySource()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		cache:   c,
		locator: loc,
		ids:     opts.Identities,
		logger:  opts.Logger,
		now:     opts.Now,
	}
}

// Create appends a copy of draft to the current page under a fresh identity
// and returns the new page.
func (m *Coordinator) Create(draft swapi.Entity) (*swapi.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fp, page, err := m.current(draft)
	if err != nil {
		return nil, err
	}

	e := draft.Clone()
	b := e.Common()
	b.URL = m.ids.Next(fp.Resource, func(id string) bool {
		return indexOf(page.Results, id) >= 0
	})
	b.Local = swapi.LocalCreated
	ts := m.timestamp()
	b.Created = ts
	b.Edited = ts

	results := make([]swapi.Entity, 0, len(page.Results)+1)
	results = append(results, page.Results...)
	results = append(results, e)

	next := page.WithResults(results)
	next.Count = page.Count + 1
	m.cache.Set(fp, next)
	m.logger.Printf("create %s %s on %s", fp.Resource, b.URL, fp)
	return next, nil
}

// Update replaces the row whose identity matches e. With no match the page is
// returned unchanged and a warning is logged.
func (m *Coordinator) Update(e swapi.Entity) (*swapi.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fp, page, err := m.current(e)
	if err != nil {
		return nil, err
	}
	i := indexOf(page.Results, e.Identity())
	if i < 0 {
		m.logger.Printf("WARNING: update %s: no row %q on %s", fp.Resource, e.Identity(), fp)
		return page, nil
	}

	u := e.Clone()
	b := u.Common()
	if page.Results[i].Common().Local == swapi.LocalCreated {
		b.Local = swapi.LocalCreated
	} else {
		b.Local = swapi.LocalUpdated
	}
	b.Edited = m.timestamp()

	results := slices.Clone(page.Results)
	results[i] = u
	next := page.WithResults(results)
	m.cache.Set(fp, next)
	return next, nil
}

// Delete removes the one row whose identity matches e, keeping the others in
// order. With no match the page is returned unchanged and a warning is logged.
func (m *Coordinator) Delete(e swapi.Entity) (*swapi.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fp, page, err := m.current(e)
	if err != nil {
		return nil, err
	}
	i := indexOf(page.Results, e.Identity())
	if i < 0 {
		m.logger.Printf("WARNING: delete %s: no row %q on %s", fp.Resource, e.Identity(), fp)
		return page, nil
	}

	results := slices.Delete(slices.Clone(page.Results), i, i+1)
	next := page.WithResults(results)
	next.Count = max(page.Count-1, 0)
	m.cache.Set(fp, next)
	m.logger.Printf("delete %s %s on %s", fp.Resource, e.Identity(), fp)
	return next, nil
}

func (m *Coordinator) current(e swapi.Entity) (cache.Fingerprint, *swapi.Page, error) {
	rt := m.locator.Resource()
	fp := cache.ListKey(rt, m.locator.CurrentPage())
	if e == nil {
		return fp, nil, fmt.Errorf("%s: nil entity", rt)
	}
	if e.Resource() != rt {
		return fp, nil, fmt.Errorf("%s into %s: %w", e.Resource(), rt, ErrResourceMismatch)
	}
	entry, ok := m.cache.Get(fp)
	if !ok || entry.Page == nil {
		return fp, nil, fmt.Errorf("%s: %w", fp, ErrPageNotLoaded)
	}
	return fp, entry.Page, nil
}

func (m *Coordinator) timestamp() string {
	return m.now().UTC().Format(time.RFC3339Nano)
}

func indexOf(rows []swapi.Entity, identity string) int {
	if identity == "" {
		return -1
	}
	return slices.IndexFunc(rows, func(r swapi.Entity) bool {
		return r.Identity() == identity
	})
}
