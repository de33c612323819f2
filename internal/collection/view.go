// Package collection is a paginated, sortable view over one resource
// collection. Pages come from the shared query cache; sorting is applied to
// the loaded page only and never refetches.
package collection

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"

	"github.com/aryannaik/holocron/internal/cache"
	"github.com/aryannaik/holocron/internal/swapi"
)

const (
	DefaultPageSize   = 10
	DefaultPagerWidth = 5
)

var (
	ErrPageOutOfRange = errors.New("page out of range")
	ErrUnknownColumn  = errors.New("unknown sort column")
)

// PageFetcher is the part of the resource gateway a view needs.
type PageFetcher interface {
	FetchPage(ctx context.Context, rt swapi.ResourceType, n int) (*swapi.Page, error)
}

type Options struct {
	// PageSize is the server's page size. Default: 10.
	PageSize int
	// PagerWidth is the number of page buttons shown. Default: 5.
	PagerWidth int
	Logger     *log.Logger
}

// State is the rendering-ready projection of a view.
type State struct {
	Resource    swapi.ResourceType `json:"resource"`
	Rows        []swapi.Entity     `json:"rows"`
	IsLoading   bool               `json:"isLoading"`
	CurrentPage int                `json:"currentPage"`
	TotalPages  int                `json:"totalPages"`
	Pages       []int              `json:"pages"`
	Count       int                `json:"count"`
	Sort        SortState          `json:"sort"`
	Error       string             `json:"error,omitempty"`
}

type View struct {
	resource   swapi.ResourceType
	gateway    PageFetcher
	cache      *cache.Cache
	pageSize   int
	pagerWidth int
	columns    []string
	logger     *log.Logger

	mu      sync.RWMutex
	current int
	sort    SortState
	count   int
	known   bool
	loading bool
	err     error
	intent  uint64
}

func NewView(rt swapi.ResourceType, gw PageFetcher, c *cache.Cache, opts Options) *View {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.PagerWidth <= 0 {
		opts.PagerWidth = DefaultPagerWidth
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &View{
		resource:   rt,
		gateway:    gw,
		cache:      c,
		pageSize:   opts.PageSize,
		pagerWidth: opts.PagerWidth,
		columns:    swapi.Columns(rt),
		logger:     opts.Logger,
		current:    1,
	}
}

func (v *View) Resource() swapi.ResourceType { return v.resource }

func (v *View) CurrentPage() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// Load fetches the current page.
func (v *View) Load(ctx context.Context) error {
	return v.GoToPage(ctx, v.CurrentPage())
}

// Refresh drops the cached current page and fetches it again. Local edits on
// that page are discarded.
func (v *View) Refresh(ctx context.Context) error {
	v.cache.Invalidate(cache.ListKey(v.resource, v.CurrentPage()))
	return v.Load(ctx)
}

// GoToPage moves to page n and loads it through the cache. A page outside
// [1, TotalPages] leaves the view unchanged and returns ErrPageOutOfRange.
// Page 1 is always reachable so an empty or unloaded collection can load.
// Before the count is known, a page the remote source does not have is
// rejected the same way once the fetch reports it missing.
func (v *View) GoToPage(ctx context.Context, n int) error {
	v.mu.Lock()
	if n < 1 || (n > 1 && v.known && n > TotalPages(v.countLocked(), v.pageSize)) {
		v.mu.Unlock()
		return fmt.Errorf("%s page %d: %w", v.resource, n, ErrPageOutOfRange)
	}
	prev := v.current
	v.current = n
	v.loading = true
	v.err = nil
	v.intent++
	intent := v.intent
	v.mu.Unlock()

	rt := v.resource
	page, err := v.cache.GetOrFetch(ctx, cache.ListKey(rt, n), func(ctx context.Context) (*swapi.Page, error) {
		return v.gateway.FetchPage(ctx, rt, n)
	})

	v.mu.Lock()
	defer v.mu.Unlock()
	if intent != v.intent {
		// A later page change owns the loading state now.
		return err
	}
	v.loading = false
	if swapi.IsNotFound(err) {
		// No such page upstream; leave the view where it was.
		v.current = prev
		return fmt.Errorf("%s page %d: %w", rt, n, ErrPageOutOfRange)
	}
	if err != nil {
		v.err = err
		v.logger.Printf("load %s page %d: %v", rt, n, err)
		return err
	}
	v.count = page.Count
	v.known = true
	return nil
}

// SetSort reorders the loaded rows by column. It does not refetch.
func (v *View) SetSort(column string, dir Direction) error {
	if !slices.Contains(v.columns, column) {
		return fmt.Errorf("%s: %w %q", v.resource, ErrUnknownColumn, column)
	}
	v.mu.Lock()
	v.sort = SortState{Column: column, Direction: dir}
	v.mu.Unlock()
	return nil
}

func (v *View) ClearSort() {
	v.mu.Lock()
	v.sort = SortState{}
	v.mu.Unlock()
}

func (v *View) Sort() SortState {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.sort
}

// Columns lists the sortable columns of this view's resource type.
func (v *View) Columns() []string { return slices.Clone(v.columns) }

// Rows returns the current page's entities in sorted order. References are
// left as the gateway delivered them.
func (v *View) Rows() []swapi.Entity {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.rowsLocked()
}

// Find returns the row on the current page whose id is id.
func (v *View) Find(id string) (swapi.Entity, bool) {
	for _, e := range v.Rows() {
		if e.Common().ID() == id {
			return e, true
		}
	}
	return nil, false
}

// TotalPages is derived from the latest known count, including local
// creates and deletes.
func (v *View) TotalPages() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return TotalPages(v.countLocked(), v.pageSize)
}

func (v *View) State() State {
	v.mu.RLock()
	defer v.mu.RUnlock()

	count := v.countLocked()
	total := TotalPages(count, v.pageSize)
	s := State{
		Resource:    v.resource,
		Rows:        v.rowsLocked(),
		IsLoading:   v.loading,
		CurrentPage: v.current,
		TotalPages:  total,
		Pages:       PagerWindow(v.current, total, v.pagerWidth),
		Count:       count,
		Sort:        v.sort,
	}
	if v.err != nil {
		s.Error = v.err.Error()
	}
	return s
}

func (v *View) rowsLocked() []swapi.Entity {
	e, ok := v.cache.Get(cache.ListKey(v.resource, v.current))
	if !ok || e.Page == nil {
		return nil
	}
	return SortRows(e.Page.Results, v.sort)
}

func (v *View) countLocked() int {
	if e, ok := v.cache.Get(cache.ListKey(v.resource, v.current)); ok && e.Page != nil {
		return e.Page.Count
	}
	return v.count
}
