package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	apperrors "github.com/webitel/document-exporter/internal/errors"
	"github.com/webitel/document-exporter/internal/metrics"
)

// HTTPServer serves the REST API, health and metrics.
type HTTPServer struct {
	Addr     string
	router   *chi.Mux
	server   *http.Server
	exitChan chan error
}

// NewHTTPServer builds the router; mount adds the API routes.
func NewHTTPServer(addr string, reg *prometheus.Registry, exitChan chan error, mount func(chi.Router)) *HTTPServer {
	s := &HTTPServer{
		Addr:     addr,
		router:   chi.NewRouter(),
		exitChan: exitChan,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", handleHealth)
	if reg != nil {
		s.router.Method(http.MethodGet, "/metrics", metrics.HTTPHandler(reg))
	}
	if mount != nil {
		mount(s.router)
	}

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// job watch streams clear their own deadline
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the router, for tests.
func (s *HTTPServer) Handler() http.Handler { return s.router }

func (s *HTTPServer) Start() {
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.exitChan <- apperrors.Internal(
			err.Error(),
			apperrors.WithID("server.http.serve.error"),
		)
	}
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}
