package search

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryannaik/holocron/internal/cache"
	"github.com/aryannaik/holocron/internal/swapi"
	"github.com/aryannaik/holocron/internal/swapi/swapitest"
)

// manualScheduler fires timers only when the test says so.
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	s       *manualScheduler
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{s: s, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *manualScheduler) pending() []*manualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*manualTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

func (s *manualScheduler) fireAll() {
	for _, t := range s.pending() {
		s.mu.Lock()
		t.fired = true
		s.mu.Unlock()
		t.f()
	}
}

func catalog() *swapitest.Gateway {
	return swapitest.New().Add(
		swapitest.Person(1, "Luke Skywalker"),
		swapitest.Person(5, "Leia Organa"),
		swapitest.Person(11, "Anakin Skywalker"),
		swapitest.Film(1, "A New Hope"),
		swapitest.Entity(swapi.TypePlanets, 1, "Tatooine"),
		swapitest.Entity(swapi.TypeStarships, 12, "X-wing"),
	)
}

func newTestAggregator(gw Searcher, sched Scheduler) *Aggregator {
	logger := log.New(io.Discard, "", 0)
	return NewAggregator(gw, cache.New(cache.Options{Logger: logger}), Options{
		Scheduler: sched,
		Logger:    logger,
	})
}

func waitSettled(t *testing.T, a *Aggregator) Snapshot {
	t.Helper()
	var snap Snapshot
	require.Eventually(t, func() bool {
		snap = a.Snapshot()
		return snap.State == StateSettled && !snap.IsFetching
	}, time.Second, 2*time.Millisecond)
	return snap
}

func TestKeystrokeBurstCommitsOnlyFinalTerm(t *testing.T) {
	gw := catalog()
	sched := &manualScheduler{}
	a := newTestAggregator(gw, sched)
	defer a.Close()

	for _, q := range []string{"L", "Lu", "Luk", "Luke"} {
		a.OnQueryChange(q)
	}
	assert.Len(t, sched.pending(), 1)
	assert.Equal(t, StateDebouncing, a.Snapshot().State)
	assert.Zero(t, gw.TotalCalls())

	sched.fireAll()
	snap := waitSettled(t, a)

	assert.Equal(t, "Luke", snap.Term)
	assert.Equal(t, len(swapi.Resources), gw.TotalCalls())
	for _, rt := range swapi.Resources {
		assert.Equal(t, 1, gw.Calls(swapitest.SearchKey(rt, "Luke")))
		assert.Zero(t, gw.Calls(swapitest.SearchKey(rt, "Luk")))
	}
}

func TestSupersededTimerDoesNotCommit(t *testing.T) {
	gw := catalog()
	sched := &manualScheduler{}
	a := newTestAggregator(gw, sched)
	defer a.Close()

	a.OnQueryChange("Le")
	first := sched.pending()[0]
	a.OnQueryChange("Lei")

	// The first timer fires anyway, as if Stop lost the race.
	first.f()

	snap := a.Snapshot()
	assert.Equal(t, StateDebouncing, snap.State)
	assert.Empty(t, snap.Term)
	assert.Zero(t, gw.TotalCalls())
}

func TestEmptyTermSettlesWithoutNetwork(t *testing.T) {
	gw := catalog()
	a := newTestAggregator(gw, &manualScheduler{})
	defer a.Close()

	snap, err := a.Search(context.Background(), "   ")
	require.NoError(t, err)

	assert.Equal(t, StateSettled, snap.State)
	assert.False(t, snap.IsFetching)
	assert.Empty(t, snap.Results)
	assert.Zero(t, gw.TotalCalls())
}

func TestLukeMatchesPeopleOnly(t *testing.T) {
	a := newTestAggregator(catalog(), &manualScheduler{})
	defer a.Close()

	snap, err := a.Search(context.Background(), "Luke")
	require.NoError(t, err)

	require.Contains(t, snap.Results, swapi.TypePeople)
	assert.Len(t, snap.Results[swapi.TypePeople], 1)
	assert.NotContains(t, snap.Results, swapi.TypeFilms)
	assert.Len(t, snap.Results, 1)
	assert.Empty(t, snap.Errors)
}

func TestPartialFailureKeepsOtherTypes(t *testing.T) {
	gw := catalog().Fail(swapi.TypeFilms, &swapi.TransportError{URL: "films", Err: errors.New("timeout")})
	a := newTestAggregator(gw, &manualScheduler{})
	defer a.Close()

	snap, err := a.Search(context.Background(), "a")
	require.NoError(t, err)

	assert.NotContains(t, snap.Results, swapi.TypeFilms)
	assert.Contains(t, snap.Errors, swapi.TypeFilms)
	assert.Len(t, snap.Results[swapi.TypePeople], 3)
	assert.Contains(t, snap.Results, swapi.TypePlanets)
}

func TestNewerTermWinsOverSlowerOlderTerm(t *testing.T) {
	gw := catalog()
	release := gw.Block(swapitest.SearchKey(swapi.TypePeople, "Luke"))
	a := newTestAggregator(gw, &manualScheduler{})

	staleErr := make(chan error, 1)
	go func() {
		_, err := a.Search(context.Background(), "Luke")
		staleErr <- err
	}()

	require.Eventually(t, func() bool {
		return gw.Calls(swapitest.SearchKey(swapi.TypePeople, "Luke")) == 1
	}, time.Second, 2*time.Millisecond)
	assert.True(t, a.Snapshot().IsFetching)

	snap, err := a.Search(context.Background(), "Leia")
	require.NoError(t, err)
	assert.Equal(t, "Leia", snap.Term)

	assert.ErrorIs(t, <-staleErr, ErrStaleResult)

	release()
	a.Close()

	final := a.Snapshot()
	assert.Equal(t, "Leia", final.Term)
	assert.False(t, final.IsFetching)
	require.Len(t, final.Results[swapi.TypePeople], 1)
	assert.Equal(t, "Leia Organa", final.Results[swapi.TypePeople][0].Label())
}

func TestBusyUntilAllTypesSettle(t *testing.T) {
	gw := catalog()
	release := gw.Block(swapitest.SearchKey(swapi.TypeStarships, "wing"))
	sched := &manualScheduler{}
	a := newTestAggregator(gw, sched)
	defer a.Close()

	a.OnQueryChange("wing")
	sched.fireAll()

	require.Eventually(t, func() bool {
		return gw.TotalCalls() == len(swapi.Resources)
	}, time.Second, 2*time.Millisecond)
	snap := a.Snapshot()
	assert.True(t, snap.IsFetching)
	assert.Equal(t, StateFetching, snap.State)

	release()
	snap = waitSettled(t, a)
	assert.Contains(t, snap.Results, swapi.TypeStarships)
}

func TestRepeatTermServedFromCache(t *testing.T) {
	gw := catalog()
	a := newTestAggregator(gw, &manualScheduler{})
	defer a.Close()

	_, err := a.Search(context.Background(), "Sky")
	require.NoError(t, err)
	_, err = a.Search(context.Background(), "Sky")
	require.NoError(t, err)

	assert.Equal(t, len(swapi.Resources), gw.TotalCalls())
}

func TestSubscribersSeeIncreasingSeq(t *testing.T) {
	a := newTestAggregator(catalog(), &manualScheduler{})
	defer a.Close()

	var mu sync.Mutex
	var seen []Snapshot
	unsubscribe := a.Subscribe(func(s Snapshot) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	_, err := a.Search(context.Background(), "Tatooine")
	require.NoError(t, err)
	unsubscribe()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.True(t, seen[0].IsFetching)
	assert.False(t, seen[1].IsFetching)
	assert.Less(t, seen[0].Seq, seen[1].Seq)
}
