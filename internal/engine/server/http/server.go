// Package http exposes the engine's REST surface to the dashboard and
// the CLI, plus health and metrics endpoints.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fleetwarden/fleetwarden/internal/engine/core/service"
	"github.com/fleetwarden/fleetwarden/pkg/log"
	"github.com/fleetwarden/fleetwarden/pkg/options"
)

// Server serves the engine's REST API.
type Server struct {
	svc    *service.Service
	logger log.Logger
	srv    *http.Server
	opts   *options.HttpOptions
	ready  func() bool
}

// NewServer builds the REST server. ready gates the readiness probe;
// a nil ready always reports ready.
func NewServer(opts *options.HttpOptions, svc *service.Service, ready func() bool, logger log.Logger) *Server {
	s := &Server{
		svc:    svc,
		logger: logger.WithName("http"),
		opts:   opts,
		ready:  ready,
	}
	s.srv = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.routes(),
		ReadTimeout:  opts.Timeout,
		WriteTimeout: opts.Timeout,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReadyz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/fleet").Subrouter()
	api.HandleFunc("/releases", s.handleListReleases).Methods(http.MethodGet)
	api.HandleFunc("/releases", s.handleCreateRelease).Methods(http.MethodPost)
	api.HandleFunc("/releases/{version}/latest", s.handleSetLatest).Methods(http.MethodPut)
	api.HandleFunc("/releases/{version}/activate", s.handleActivateRelease).Methods(http.MethodPost)
	api.HandleFunc("/releases/{version}/deactivate", s.handleDeactivateRelease).Methods(http.MethodPost)

	api.HandleFunc("/rollouts", s.handleListRollouts).Methods(http.MethodGet)
	api.HandleFunc("/rollouts", s.handleCreateRollout).Methods(http.MethodPost)
	api.HandleFunc("/rollouts/{id}", s.handleGetRollout).Methods(http.MethodGet)
	api.HandleFunc("/rollouts/{id}/records", s.handleListRecords).Methods(http.MethodGet)
	api.HandleFunc("/rollouts/{id}/pause", s.handlePauseRollout).Methods(http.MethodPost)
	api.HandleFunc("/rollouts/{id}/resume", s.handleResumeRollout).Methods(http.MethodPost)
	api.HandleFunc("/rollouts/{id}/advance", s.handleAdvanceRollout).Methods(http.MethodPost)
	api.HandleFunc("/rollouts/{id}/cancel", s.handleCancelRollout).Methods(http.MethodPost)

	api.HandleFunc("/appliances", s.handleListAppliances).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleFleetStats).Methods(http.MethodGet)
	return r
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen(s.opts.Network, s.opts.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("HTTP server listening", "addr", s.opts.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("Handled request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start).String())
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil && !s.ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
