// Package search aggregates server-side search across every resource type.
// Keystrokes are debounced into committed terms; each committed term fans out
// one search per resource type and the merged result replaces the visible
// snapshot only if no newer term has been committed since.
package search

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aryannaik/holocron/internal/cache"
	"github.com/aryannaik/holocron/internal/swapi"
)

// ErrStaleResult marks fan-out results that arrived after a newer term was
// committed. They are dropped, never shown.
var ErrStaleResult = errors.New("search result superseded by a newer term")

const DefaultDebounce = 300 * time.Millisecond

// Searcher is the part of the resource gateway the aggregator needs.
type Searcher interface {
	Search(ctx context.Context, rt swapi.ResourceType, term string) (*swapi.Page, error)
}

// Results maps a resource type to its matches. A type is present only when it
// has at least one match.
type Results map[swapi.ResourceType][]swapi.Entity

// Snapshot is what the presentation layer renders.
type Snapshot struct {
	Seq        uint64                        `json:"seq"`
	Generation uint64                        `json:"generation"`
	Query      string                        `json:"query"`
	Term       string                        `json:"term"`
	State      State                         `json:"state"`
	Results    Results                       `json:"results"`
	IsFetching bool                          `json:"isFetching"`
	Errors     map[swapi.ResourceType]string `json:"errors,omitempty"`
}

type Options struct {
	// Debounce is the trailing-edge delay. Default: 300ms.
	Debounce  time.Duration
	Resources []swapi.ResourceType
	Scheduler Scheduler
	Logger    *log.Logger
}

// Aggregator owns the query state machine for one session.
type Aggregator struct {
	gateway   Searcher
	cache     *cache.Cache
	sched     Scheduler
	delay     time.Duration
	resources []swapi.ResourceType
	logger    *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	seq      uint64
	query    string
	term     string
	state    State
	gen      uint64
	tick     uint64
	timer    Timer
	fetching bool
	results  Results
	errs     map[swapi.ResourceType]string
	flight   *flight
	subs     map[int]func(Snapshot)
	nextSub  int
}

// flight tracks the fan-out of one committed term.
type flight struct {
	gen    uint64
	done   chan struct{}
	result *Snapshot
}

func NewAggregator(gw Searcher, c *cache.Cache, opts Options) *Aggregator {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if len(opts.Resources) == 0 {
		opts.Resources = swapi.Resources
	}
	if opts.Scheduler == nil {
		opts.Scheduler = ClockScheduler{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Aggregator{
		gateway:   gw,
		cache:     c,
		sched:     opts.Scheduler,
		delay:     opts.Debounce,
		resources: opts.Resources,
		logger:    opts.Logger,
		ctx:       ctx,
		cancel:    cancel,
		results:   Results{},
		subs:      make(map[int]func(Snapshot)),
	}
}

// OnQueryChange records a keystroke. Any pending commit is canceled and the
// debounce timer restarts; nothing is dispatched until it fires.
func (a *Aggregator) OnQueryChange(text string) {
	a.mu.Lock()
	a.query = text
	if a.timer != nil {
		a.timer.Stop()
	}
	a.tick++
	tick := a.tick
	a.state = StateDebouncing
	a.timer = a.sched.AfterFunc(a.delay, func() { a.fire(tick) })
	snap := a.snapshotLocked()
	a.mu.Unlock()

	a.publish(snap)
}

// fire commits the query if no keystroke arrived after the timer was armed.
func (a *Aggregator) fire(tick uint64) {
	a.mu.Lock()
	if tick != a.tick {
		a.mu.Unlock()
		return
	}
	a.timer = nil
	f, term, snap := a.commitLocked(a.query)
	a.mu.Unlock()

	a.publish(snap)
	a.dispatch(f, term)
}

// Commit skips the debounce and commits text immediately.
func (a *Aggregator) Commit(text string) {
	f, term, snap := a.commitNow(text)
	a.publish(snap)
	a.dispatch(f, term)
}

// Search commits term immediately and waits until its fan-out settles. It
// returns ErrStaleResult if another term is committed first.
func (a *Aggregator) Search(ctx context.Context, term string) (Snapshot, error) {
	f, t, snap := a.commitNow(term)
	a.publish(snap)
	a.dispatch(f, t)

	select {
	case <-f.done:
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	if f.result == nil {
		return a.Snapshot(), ErrStaleResult
	}
	return *f.result, nil
}

func (a *Aggregator) commitNow(text string) (*flight, string, Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.tick++
	a.query = text
	return a.commitLocked(text)
}

// commitLocked starts a new generation. An empty term settles at once with no
// results and no network calls. The returned term is empty when there is
// nothing to dispatch.
func (a *Aggregator) commitLocked(text string) (*flight, string, Snapshot) {
	term := strings.TrimSpace(text)

	if a.flight != nil {
		close(a.flight.done)
		a.flight = nil
	}

	a.gen++
	a.term = term
	a.results = Results{}
	a.errs = nil

	f := &flight{gen: a.gen, done: make(chan struct{})}
	if term == "" {
		a.state = StateSettled
		a.fetching = false
		snap := a.snapshotLocked()
		f.result = &snap
		close(f.done)
		return f, "", snap
	}

	a.state = StateFetching
	a.fetching = true
	a.flight = f
	a.wg.Add(1)
	return f, term, a.snapshotLocked()
}

func (a *Aggregator) dispatch(f *flight, term string) {
	if term == "" {
		return
	}
	go a.fanOut(f.gen, term)
}

func (a *Aggregator) fanOut(gen uint64, term string) {
	defer a.wg.Done()

	id := uuid.NewString()[:8]
	a.logger.Printf("search %s: dispatch %q to %d resources", id, term, len(a.resources))
	start := time.Now()

	var (
		mu      sync.Mutex
		results = Results{}
		errs    = map[swapi.ResourceType]string{}
		g       errgroup.Group
	)
	for _, rt := range a.resources {
		g.Go(func() error {
			page, err := a.cache.GetOrFetch(a.ctx, cache.SearchKey(rt, term), func(ctx context.Context) (*swapi.Page, error) {
				return a.gateway.Search(ctx, rt, term)
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				a.logger.Printf("WARNING: search %s: %s failed: %v", id, rt, err)
				errs[rt] = err.Error()
				return nil
			}
			if len(page.Results) > 0 {
				results[rt] = page.Results
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) == 0 {
		errs = nil
	}
	if err := a.settle(gen, results, errs); err != nil {
		a.logger.Printf("search %s: discard %q after %s: %v", id, term, time.Since(start).Round(time.Millisecond), err)
		return
	}
	a.logger.Printf("search %s: %q settled with %d types in %s", id, term, len(results), time.Since(start).Round(time.Millisecond))
}

// settle applies fan-out results if gen is still the current generation.
func (a *Aggregator) settle(gen uint64, results Results, errs map[swapi.ResourceType]string) error {
	a.mu.Lock()
	if gen != a.gen {
		a.mu.Unlock()
		return ErrStaleResult
	}

	a.results = results
	a.errs = errs
	a.fetching = false
	if a.state == StateFetching {
		a.state = StateSettled
	}
	snap := a.snapshotLocked()

	f := a.flight
	if f != nil && f.gen == gen {
		f.result = &snap
		a.flight = nil
	} else {
		f = nil
	}
	a.mu.Unlock()

	a.publish(snap)
	if f != nil {
		close(f.done)
	}
	return nil
}

// Snapshot returns the current visible state.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.copyLocked()
}

// Subscribe registers fn to receive every new snapshot. Snapshots carry a
// monotonically increasing Seq; a subscriber seeing a lower Seq than one it
// already rendered must drop it.
func (a *Aggregator) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	a.mu.Lock()
	id := a.nextSub
	a.nextSub++
	a.subs[id] = fn
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.subs, id)
		a.mu.Unlock()
	}
}

// Close stops the pending debounce timer and waits for outstanding fan-outs.
func (a *Aggregator) Close() {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.tick++
	a.mu.Unlock()

	a.cancel()
	a.wg.Wait()
}

// snapshotLocked stamps a new sequence number.
func (a *Aggregator) snapshotLocked() Snapshot {
	a.seq++
	return a.copyLocked()
}

func (a *Aggregator) copyLocked() Snapshot {
	results := make(Results, len(a.results))
	for rt, items := range a.results {
		results[rt] = items
	}
	var errs map[swapi.ResourceType]string
	if len(a.errs) > 0 {
		errs = make(map[swapi.ResourceType]string, len(a.errs))
		for rt, msg := range a.errs {
			errs[rt] = msg
		}
	}
	return Snapshot{
		Seq:        a.seq,
		Generation: a.gen,
		Query:      a.query,
		Term:       a.term,
		State:      a.state,
		Results:    results,
		IsFetching: a.fetching,
		Errors:     errs,
	}
}

func (a *Aggregator) publish(snap Snapshot) {
	a.mu.Lock()
	subs := make([]func(Snapshot), 0, len(a.subs))
	for _, fn := range a.subs {
		subs = append(subs, fn)
	}
	a.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}
