// Package server exposes the worker's admin surface: health and
// prometheus metrics. The pipeline itself has no wire protocol of its
// own.
package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Admin is the worker's HTTP admin server.
type Admin struct {
	Router *chi.Mux
	Port   int
	logger *slog.Logger
}

// New creates the admin server with its routes mounted.
func New(port int, logger *slog.Logger) *Admin {
	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	return &Admin{Router: r, Port: port, logger: logger}
}

// Start blocks serving the admin surface.
func (a *Admin) Start() error {
	a.logger.Info("starting admin server", slog.Int("port", a.Port))
	return http.ListenAndServe(fmt.Sprintf(":%d", a.Port), a.Router)
}
