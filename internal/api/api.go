// Package api provides the HTTP endpoint served while Forge runs on a schedule.
// It exposes Prometheus metrics and a liveness probe.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// readHeaderTimeout is the timeout for reading request headers.
const readHeaderTimeout = 10 * time.Second

// shutdownTimeout is the timeout for graceful server shutdown.
const shutdownTimeout = 5 * time.Second

// API represents the HTTP server exposed in scheduled mode.
type API struct {
	Addr string
	mux  *http.ServeMux // Custom mux to avoid global collisions
}

// New creates an API serving the metrics and health endpoints on addr.
func New(addr string) *API {
	api := &API{
		Addr: addr,
		mux:  http.NewServeMux(),
	}

	api.mux.Handle("/v1/metrics", promhttp.Handler())
	api.mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})

	logrus.WithField("addr", addr).Debug("Initialized API instance")

	return api
}

// Handler returns the server's request handler, mainly for tests.
func (a *API) Handler() http.Handler {
	return a.mux
}

// Start runs the server in the background and shuts it down gracefully when
// ctx is canceled.
func (a *API) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              a.Addr,
		Handler:           a.mux,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	listener, err := net.Listen("tcp", a.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Addr, err)
	}

	logrus.WithField("addr", a.Addr).Info("Starting HTTP API server")

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Error("HTTP server failed")
		}
	}()

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Error("Failed to shut down HTTP server")
		}
	}()

	return nil
}
