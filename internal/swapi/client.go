package swapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://swapi.dev/api"

// errNotFound is translated into a NotFoundError by the caller, which knows
// which page or id was asked for.
var errNotFound = errors.New("not found")

// Options tunes a Client. Zero values select the defaults noted per field.
type Options struct {
	// Timeout bounds a single HTTP round trip. Default: 30s.
	Timeout time.Duration

	// RatePerSecond is the sustained request rate. Zero disables limiting.
	RatePerSecond float64
	// Burst is the limiter bucket size. Default: 1.
	Burst int

	// BreakerMaxFailures is the number of consecutive transport failures that
	// open the breaker. Default: 5.
	BreakerMaxFailures uint32
	// BreakerTimeout is how long the breaker stays open. Default: 30s.
	BreakerTimeout time.Duration

	// MaxSearchPages caps how many result pages Search follows. Default: 1.
	MaxSearchPages int

	HTTPClient *http.Client
	Logger     *log.Logger
	Registerer prometheus.Registerer
}

// Client is the resource gateway: it fetches pages, single entities and
// search matches from the remote API. It keeps no state between calls.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	limiter        *rate.Limiter
	breaker        *gobreaker.CircuitBreaker
	maxSearchPages int
	logger         *log.Logger
	requests       *prometheus.CounterVec
}

func NewClient(baseURL string, opts Options) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.BreakerMaxFailures == 0 {
		opts.BreakerMaxFailures = 5
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}
	if opts.MaxSearchPages <= 0 {
		opts.MaxSearchPages = 1
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}

	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     opts.HTTPClient,
		limiter:        rate.NewLimiter(limit, opts.Burst),
		maxSearchPages: opts.MaxSearchPages,
		logger:         opts.Logger,
		requests: promauto.With(opts.Registerer).NewCounterVec(prometheus.CounterOpts{
			Name: "holocron_gateway_requests_total",
			Help: "Remote API requests by resource type and outcome.",
		}, []string{"resource", "outcome"}),
	}

	logger := opts.Logger
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "swapi",
		MaxRequests: 1,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.BreakerMaxFailures
		},
		// Only transport failures count against the remote source.
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransport(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Printf("WARNING: %s circuit breaker %s -> %s", name, from, to)
		},
	})

	return c
}

// BaseURL returns the API root requests are issued against.
func (c *Client) BaseURL() string { return c.baseURL }

// BreakerState returns "closed", "open" or "half-open".
func (c *Client) BreakerState() string { return c.breaker.State().String() }

// FetchPage fetches page n (1-based) of a resource collection.
func (c *Client) FetchPage(ctx context.Context, rt ResourceType, n int) (*Page, error) {
	if n < 1 {
		return nil, &NotFoundError{Resource: rt, Page: n}
	}
	u := fmt.Sprintf("%s/%s/?page=%d", c.baseURL, rt, n)

	body, err := c.get(ctx, rt, u)
	if errors.Is(err, errNotFound) {
		return nil, &NotFoundError{Resource: rt, Page: n}
	}
	if err != nil {
		return nil, err
	}

	page, err := decodePage(rt, u, body)
	if err != nil {
		return nil, err
	}
	page.Number = n
	return page, nil
}

// FetchByID fetches a single entity for a detail view.
func (c *Client) FetchByID(ctx context.Context, rt ResourceType, id int) (Entity, error) {
	u := fmt.Sprintf("%s/%s/%d/", c.baseURL, rt, id)

	body, err := c.get(ctx, rt, u)
	if errors.Is(err, errNotFound) {
		return nil, &NotFoundError{Resource: rt, ID: id}
	}
	if err != nil {
		return nil, err
	}

	e, err := DecodeEntity(rt, body)
	if err != nil {
		return nil, &FormatError{URL: u, Err: err}
	}
	return e, nil
}

// Search returns the server-side matches for term within one resource type,
// following up to MaxSearchPages result pages.
func (c *Client) Search(ctx context.Context, rt ResourceType, term string) (*Page, error) {
	u := fmt.Sprintf("%s/%s/?search=%s", c.baseURL, rt, url.QueryEscape(term))

	var out *Page
	for i := 0; i < c.maxSearchPages && u != ""; i++ {
		body, err := c.get(ctx, rt, u)
		if errors.Is(err, errNotFound) {
			return nil, &NotFoundError{Resource: rt}
		}
		if err != nil {
			return nil, fmt.Errorf("search %s page %d: %w", rt, i+1, err)
		}

		page, err := decodePage(rt, u, body)
		if err != nil {
			return nil, err
		}

		if out == nil {
			out = page
		} else {
			out.Results = append(out.Results, page.Results...)
			out.Next = page.Next
		}
		u = page.Next
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, rt ResourceType, u string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		c.requests.WithLabelValues(string(rt), "canceled").Inc()
		return nil, &TransportError{URL: u, Err: err}
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.do(ctx, u)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.requests.WithLabelValues(string(rt), "rejected").Inc()
			return nil, &TransportError{URL: u, Err: ErrCircuitOpen}
		}
		outcome := "error"
		if errors.Is(err, errNotFound) {
			outcome = "not_found"
		}
		c.requests.WithLabelValues(string(rt), outcome).Inc()
		return nil, err
	}

	c.requests.WithLabelValues(string(rt), "ok").Inc()
	return res.([]byte), nil
}

func (c *Client) do(ctx context.Context, u string) ([]byte, error) {
	c.logger.Printf("fetch %s", u)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &TransportError{URL: u, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{URL: u, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, &TransportError{URL: u, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{URL: u, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}

func decodePage(rt ResourceType, u string, body []byte) (*Page, error) {
	var raw apiPage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &FormatError{URL: u, Err: fmt.Errorf("decode page: %w", err)}
	}
	if raw.Count == nil || raw.Results == nil {
		return nil, &FormatError{URL: u, Err: errors.New("missing count or results")}
	}

	page := &Page{
		Resource: rt,
		Count:    *raw.Count,
		Results:  make([]Entity, 0, len(raw.Results)),
	}
	if raw.Next != nil {
		page.Next = *raw.Next
	}
	if raw.Previous != nil {
		page.Previous = *raw.Previous
	}

	for i, item := range raw.Results {
		e, err := DecodeEntity(rt, item)
		if err != nil {
			return nil, &FormatError{URL: u, Err: fmt.Errorf("result %d: %w", i, err)}
		}
		page.Results = append(page.Results, e)
	}
	return page, nil
}
