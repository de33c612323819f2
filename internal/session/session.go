// Package session wires the sync layer for one application session: a gateway,
// the single query cache every component shares, the search aggregator, and a
// collection view plus mutation coordinator per resource type.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/aryannaik/holocron/internal/cache"
	"github.com/aryannaik/holocron/internal/collection"
	"github.com/aryannaik/holocron/internal/config"
	"github.com/aryannaik/holocron/internal/mutation"
	"github.com/aryannaik/holocron/internal/search"
	"github.com/aryannaik/holocron/internal/swapi"
)

// ErrUnknownID is returned for a detail lookup of an id that is neither a
// remote numeric id nor a local row on the current page.
var ErrUnknownID = errors.New("unknown entity id")

// Gateway is the remote source as the session uses it.
type Gateway interface {
	FetchPage(ctx context.Context, rt swapi.ResourceType, n int) (*swapi.Page, error)
	FetchByID(ctx context.Context, rt swapi.ResourceType, id int) (swapi.Entity, error)
	Search(ctx context.Context, rt swapi.ResourceType, term string) (*swapi.Page, error)
}

type Options struct {
	CacheMaxAge time.Duration
	Debounce    time.Duration
	PageSize    int
	PagerWidth  int
	// Scheduler replaces wall-clock debounce timers, mainly in tests.
	Scheduler  search.Scheduler
	Registerer prometheus.Registerer
	Logger     *log.Logger
}

type Session struct {
	gateway Gateway
	cache   *cache.Cache
	search  *search.Aggregator
	views   map[swapi.ResourceType]*collection.View
	editors map[swapi.ResourceType]*mutation.Coordinator
	logger  *log.Logger
}

// New builds a session over gw.
func New(gw Gateway, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	c := cache.New(cache.Options{
		MaxAge:     opts.CacheMaxAge,
		Registerer: opts.Registerer,
		Logger:     opts.Logger,
	})

	s := &Session{
		gateway: gw,
		cache:   c,
		search: search.NewAggregator(gw, c, search.Options{
			Debounce:  opts.Debounce,
			Scheduler: opts.Scheduler,
			Logger:    opts.Logger,
		}),
		views:   make(map[swapi.ResourceType]*collection.View, len(swapi.Resources)),
		editors: make(map[swapi.ResourceType]*mutation.Coordinator, len(swapi.Resources)),
		logger:  opts.Logger,
	}

	ids := mutation.NewIdentitySource()
	for _, rt := range swapi.Resources {
		v := collection.NewView(rt, gw, c, collection.Options{
			PageSize:   opts.PageSize,
			PagerWidth: opts.PagerWidth,
			Logger:     opts.Logger,
		})
		s.views[rt] = v
		s.editors[rt] = mutation.NewCoordinator(c, v, mutation.Options{
			Identities: ids,
			Logger:     opts.Logger,
		})
	}
	return s
}

// FromConfig builds the remote client and a session over it. Metrics go to
// reg when it is non-nil.
func FromConfig(cfg *config.Config, reg *prometheus.Registry, logger *log.Logger) (*Session, *swapi.Client) {
	var registerer prometheus.Registerer
	if reg != nil {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		registerer = reg
	}

	client := swapi.NewClient(cfg.API.BaseURL, swapi.Options{
		Timeout:            cfg.API.Timeout,
		RatePerSecond:      cfg.API.RatePerSecond,
		Burst:              cfg.API.Burst,
		BreakerMaxFailures: uint32(cfg.API.BreakerMaxFailures),
		BreakerTimeout:     cfg.API.BreakerTimeout,
		MaxSearchPages:     cfg.Search.MaxPages,
		Logger:             logger,
		Registerer:         registerer,
	})

	return New(client, Options{
		CacheMaxAge: cfg.Cache.MaxAge,
		Debounce:    cfg.Search.Debounce,
		PageSize:    cfg.Collection.PageSize,
		PagerWidth:  cfg.Collection.PagerWidth,
		Registerer:  registerer,
		Logger:      logger,
	}), client
}

func (s *Session) Cache() *cache.Cache { return s.cache }

func (s *Session) Search() *search.Aggregator { return s.search }

// View returns the collection view for rt.
func (s *Session) View(rt swapi.ResourceType) (*collection.View, error) {
	v, ok := s.views[rt]
	if !ok {
		return nil, fmt.Errorf("unknown resource type %q", rt)
	}
	return v, nil
}

// Mutations returns the coordinator editing rt's current page.
func (s *Session) Mutations(rt swapi.ResourceType) (*mutation.Coordinator, error) {
	m, ok := s.editors[rt]
	if !ok {
		return nil, fmt.Errorf("unknown resource type %q", rt)
	}
	return m, nil
}

// Detail returns one entity. A row on the view's current page wins so local
// edits show; otherwise numeric ids are fetched from the remote source.
func (s *Session) Detail(ctx context.Context, rt swapi.ResourceType, id string) (swapi.Entity, error) {
	v, err := s.View(rt)
	if err != nil {
		return nil, err
	}
	if e, ok := v.Find(id); ok {
		return e, nil
	}

	n, err := strconv.Atoi(id)
	if err != nil || n < 1 {
		return nil, fmt.Errorf("%s %q: %w", rt, id, ErrUnknownID)
	}
	return s.gateway.FetchByID(ctx, rt, n)
}

// Close stops the aggregator and waits for its fan-outs.
func (s *Session) Close() {
	s.search.Close()
}
