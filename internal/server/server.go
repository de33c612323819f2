// Package server is the presentation boundary: a JSON API carrying UI intents
// into the session and a websocket stream pushing snapshots back out.
package server

import (
	"context"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aryannaik/holocron/internal/search"
	"github.com/aryannaik/holocron/internal/session"
)

type Options struct {
	Addr           string
	AllowedOrigins []string
	PreviewLimit   int
	Breaker        BreakerStater
	// Gatherer backs /metrics; nil leaves the route out.
	Gatherer prometheus.Gatherer
	Logger   *log.Logger
}

type Server struct {
	http        *http.Server
	hub         *Hub
	unsubscribe func()
	logger      *log.Logger
}

func New(sess *session.Session, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.PreviewLimit <= 0 {
		opts.PreviewLimit = 3
	}

	hub := NewHub(opts.AllowedOrigins, opts.Logger)
	go hub.Run()
	unsubscribe := sess.Search().Subscribe(func(s search.Snapshot) {
		hub.Broadcast(Message{Type: MessageSearch, Data: s})
	})

	handlers := NewHandlers(sess, hub, opts.Breaker, opts.PreviewLimit, opts.Logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/search", handlers.HandleSearch)
	mux.HandleFunc("POST /api/search/query", handlers.HandleQueryChange)
	mux.HandleFunc("GET /api/resources/{type}", handlers.HandleList)
	mux.HandleFunc("POST /api/resources/{type}", handlers.HandleCreate)
	mux.HandleFunc("GET /api/resources/{type}/{id}", handlers.HandleDetail)
	mux.HandleFunc("PUT /api/resources/{type}/{id}", handlers.HandleUpdate)
	mux.HandleFunc("DELETE /api/resources/{type}/{id}", handlers.HandleDelete)
	mux.HandleFunc("GET /api/status", handlers.HandleStatus)
	mux.Handle("GET /api/ws", hub)
	if opts.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	return &Server{
		http: &http.Server{
			Addr:    opts.Addr,
			Handler: mux,
		},
		hub:         hub,
		unsubscribe: unsubscribe,
		logger:      opts.Logger,
	}
}

func (s *Server) Handler() http.Handler { return s.http.Handler }

func (s *Server) ListenAndServe() error {
	s.logger.Printf("server listening on http://%s", s.http.Addr)
	return s.http.ListenAndServe()
}

// Shutdown drains HTTP requests and disconnects websocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Close()
	return s.http.Shutdown(ctx)
}

// Close detaches from the session and stops the hub without touching the
// listener.
func (s *Server) Close() {
	s.unsubscribe()
	s.hub.Stop()
}
