package swapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(srv *httptest.Server, opts Options) *Client {
	opts.Logger = log.New(io.Discard, "", 0)
	return NewClient(srv.URL, opts)
}

func TestFetchPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/people/", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		fmt.Fprint(w, `{"count": 82, "next": "http://x/people/?page=3", "previous": "http://x/people/?page=1",
			"results": [{"name": "Obi-Wan Kenobi", "gender": "male", "url": "http://x/people/10/"}]}`)
	}))
	defer srv.Close()

	page, err := newTestClient(srv, Options{}).FetchPage(context.Background(), TypePeople, 2)
	require.NoError(t, err)

	assert.Equal(t, 82, page.Count)
	assert.Equal(t, 2, page.Number)
	assert.True(t, page.HasNext())
	require.Len(t, page.Results, 1)
	assert.Equal(t, "Obi-Wan Kenobi", page.Results[0].Label())
	assert.Equal(t, TypePeople, page.Results[0].Resource())
}

func TestFetchPageLastPageHasNoNext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"count": 1, "next": null, "previous": null, "results": [{"title": "A New Hope", "episode_id": 4, "url": "http://x/films/1/"}]}`)
	}))
	defer srv.Close()

	page, err := newTestClient(srv, Options{}).FetchPage(context.Background(), TypeFilms, 1)
	require.NoError(t, err)
	assert.False(t, page.HasNext())
}

func TestFetchPageNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := newTestClient(srv, Options{}).FetchPage(context.Background(), TypePeople, 99)
	require.Error(t, err)

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, 99, nf.Page)
}

func TestFetchPageFormatError(t *testing.T) {
	for name, body := range map[string]string{
		"not json":        `<html>`,
		"missing results": `{"count": 3}`,
		"bad entity":      `{"count": 1, "results": [{"name": 12}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, body)
			}))
			defer srv.Close()

			_, err := newTestClient(srv, Options{}).FetchPage(context.Background(), TypePeople, 1)
			assert.True(t, IsFormat(err), "got %v", err)
		})
	}
}

func TestTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv, Options{}).FetchByID(context.Background(), TypePlanets, 1)
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusBadGateway, te.StatusCode)

	srv.Close()
	_, err = newTestClient(srv, Options{}).FetchByID(context.Background(), TypePlanets, 1)
	assert.True(t, IsTransport(err))
}

func TestFetchByID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/starships/9/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"name": "Death Star", "MGLT": "10", "url": "http://x/starships/9/"}`)
	}))
	defer srv.Close()

	c := newTestClient(srv, Options{})
	e, err := c.FetchByID(context.Background(), TypeStarships, 9)
	require.NoError(t, err)
	assert.Equal(t, "10", e.(*Starship).MGLT)

	_, err = c.FetchByID(context.Background(), TypeStarships, 1)
	assert.True(t, IsNotFound(err))
}

func TestSearchFollowsNextUpToLimit(t *testing.T) {
	var srvURL string
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "sky walker", r.URL.Query().Get("search"))
		switch r.URL.Query().Get("page") {
		case "":
			fmt.Fprintf(w, `{"count": 3, "next": "%s/people/?search=sky+walker&page=2", "results": [{"name": "Luke", "url": "u/1/"}]}`, srvURL)
		case "2":
			fmt.Fprintf(w, `{"count": 3, "next": "%s/people/?search=sky+walker&page=3", "results": [{"name": "Anakin", "url": "u/11/"}]}`, srvURL)
		default:
			fmt.Fprint(w, `{"count": 3, "next": null, "results": [{"name": "Shmi", "url": "u/43/"}]}`)
		}
	}))
	defer srv.Close()
	srvURL = srv.URL

	page, err := newTestClient(srv, Options{MaxSearchPages: 2}).Search(context.Background(), TypePeople, "sky walker")
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, 3, page.Count)
	require.Len(t, page.Results, 2)
	assert.Equal(t, "Anakin", page.Results[1].Label())
	assert.True(t, page.HasNext())
}

func TestBreakerOpensAfterTransportFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(srv, Options{BreakerMaxFailures: 2, BreakerTimeout: time.Minute})
	for i := 0; i < 2; i++ {
		_, err := c.FetchPage(context.Background(), TypeVehicles, 1)
		require.True(t, IsTransport(err))
	}

	_, err := c.FetchPage(context.Background(), TypeVehicles, 1)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, "open", c.BreakerState())
}

func TestNotFoundDoesNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := newTestClient(srv, Options{BreakerMaxFailures: 1})
	for i := 0; i < 3; i++ {
		_, err := c.FetchPage(context.Background(), TypeSpecies, 50)
		require.True(t, IsNotFound(err))
	}
	assert.Equal(t, "closed", c.BreakerState())
}

func TestRateLimiterHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"count": 0, "results": []}`)
	}))
	defer srv.Close()

	c := newTestClient(srv, Options{RatePerSecond: 0.001, Burst: 1})
	_, err := c.FetchPage(context.Background(), TypeFilms, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.FetchPage(ctx, TypeFilms, 1)
	assert.True(t, IsTransport(err))
}
