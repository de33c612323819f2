package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/aryannaik/holocron/internal/server"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API and websocket stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(flags)
		},
	}
}

func runServe(flags *globalFlags) error {
	reg := prometheus.NewRegistry()
	cfg, sess, client, err := openSession(flags, reg, true)
	if err != nil {
		return err
	}
	defer sess.Close()

	srv := server.New(sess, server.Options{
		Addr:           cfg.Server.Addr(),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		PreviewLimit:   cfg.Search.PreviewLimit,
		Breaker:        client,
		Gatherer:       reg,
	})
	log.Printf("using catalog at %s", client.BaseURL())

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errc := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-done:
	case err := <-errc:
		return err
	}
	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
	return nil
}
