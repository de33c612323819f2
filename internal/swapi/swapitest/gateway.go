// Package swapitest provides an in-memory resource gateway and entity
// builders for tests.
package swapitest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aryannaik/holocron/internal/swapi"
)

// PageKey, SearchKey and DetailKey name gateway calls for Calls and Block.
func PageKey(rt swapi.ResourceType, n int) string { return fmt.Sprintf("page %s %d", rt, n) }

func SearchKey(rt swapi.ResourceType, term string) string {
	return fmt.Sprintf("search %s %s", rt, term)
}

func DetailKey(rt swapi.ResourceType, id int) string { return fmt.Sprintf("detail %s %d", rt, id) }

// Gateway serves pages, details and search matches from memory. Search
// matches entities whose label contains the term, case-insensitively.
type Gateway struct {
	PageSize int

	mu       sync.Mutex
	data     map[swapi.ResourceType][]swapi.Entity
	failures map[swapi.ResourceType]error
	calls    map[string]int
	holds    map[string]chan struct{}
	started  chan string
}

func New() *Gateway {
	return &Gateway{
		PageSize: 10,
		data:     make(map[swapi.ResourceType][]swapi.Entity),
		failures: make(map[swapi.ResourceType]error),
		calls:    make(map[string]int),
		holds:    make(map[string]chan struct{}),
		started:  make(chan string, 256),
	}
}

// Add appends entities to their collections.
func (g *Gateway) Add(entities ...swapi.Entity) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, e := range entities {
		g.data[e.Resource()] = append(g.data[e.Resource()], e)
	}
	return g
}

// Fail makes every call for rt return err.
func (g *Gateway) Fail(rt swapi.ResourceType, err error) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[rt] = err
	return g
}

// Block holds calls matching key until release is called.
func (g *Gateway) Block(key string) (release func()) {
	ch := make(chan struct{})
	g.mu.Lock()
	g.holds[key] = ch
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.holds, key)
			g.mu.Unlock()
			close(ch)
		})
	}
}

// Started delivers the key of every call as it begins.
func (g *Gateway) Started() <-chan string { return g.started }

// Calls returns how many times the call named by key was made.
func (g *Gateway) Calls(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[key]
}

// TotalCalls returns the number of calls of any kind.
func (g *Gateway) TotalCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		n += c
	}
	return n
}

func (g *Gateway) FetchPage(ctx context.Context, rt swapi.ResourceType, n int) (*swapi.Page, error) {
	if err := g.enter(ctx, rt, PageKey(rt, n)); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	all := g.data[rt]
	start := (n - 1) * g.PageSize
	if n < 1 || (start >= len(all) && n != 1) {
		return nil, &swapi.NotFoundError{Resource: rt, Page: n}
	}
	end := min(start+g.PageSize, len(all))

	page := &swapi.Page{
		Resource: rt,
		Number:   n,
		Count:    len(all),
		Results:  append([]swapi.Entity(nil), all[start:end]...),
	}
	if end < len(all) {
		page.Next = fmt.Sprintf("https://swapi.test/api/%s/?page=%d", rt, n+1)
	}
	if n > 1 {
		page.Previous = fmt.Sprintf("https://swapi.test/api/%s/?page=%d", rt, n-1)
	}
	return page, nil
}

func (g *Gateway) FetchByID(ctx context.Context, rt swapi.ResourceType, id int) (swapi.Entity, error) {
	if err := g.enter(ctx, rt, DetailKey(rt, id)); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for _, e := range g.data[rt] {
		if got, err := swapi.IDFromURL(e.Identity()); err == nil && got == id {
			return e, nil
		}
	}
	return nil, &swapi.NotFoundError{Resource: rt, ID: id}
}

func (g *Gateway) Search(ctx context.Context, rt swapi.ResourceType, term string) (*swapi.Page, error) {
	if err := g.enter(ctx, rt, SearchKey(rt, term)); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	needle := strings.ToLower(term)
	page := &swapi.Page{Resource: rt, Results: []swapi.Entity{}}
	for _, e := range g.data[rt] {
		if strings.Contains(strings.ToLower(e.Label()), needle) {
			page.Results = append(page.Results, e)
		}
	}
	page.Count = len(page.Results)
	return page, nil
}

func (g *Gateway) enter(ctx context.Context, rt swapi.ResourceType, key string) error {
	g.mu.Lock()
	g.calls[key]++
	hold := g.holds[key]
	failure := g.failures[rt]
	g.mu.Unlock()

	select {
	case g.started <- key:
	default:
	}

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return failure
}
