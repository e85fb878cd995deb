package httpapi

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/updraft-io/updraft/internal/app/metrics"
	"github.com/updraft-io/updraft/pkg/logger"
)

// Server exposes the ops surface: a liveness probe against the store
// connection and the Prometheus metrics endpoint. The product API is served
// elsewhere and is not part of this core.
type Server struct {
	srv *http.Server
	db  *sql.DB
	log *logger.Logger
}

// NewServer builds the ops HTTP server.
func NewServer(addr string, db *sql.DB, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	s := &Server{db: db, log: log}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           metrics.InstrumentHandler(router),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			s.log.WithError(err).Warn("health check ping failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintln(w, "unavailable")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

// Name implements system.Service.
func (s *Server) Name() string { return "httpapi" }

// Start begins listening. It returns once the listener is running; serve
// errors other than graceful shutdown are logged.
func (s *Server) Start(_ context.Context) error {
	go func() {
		s.log.Infof("ops server listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("ops server failed")
		}
	}()
	return nil
}

// Stop shuts the listener down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}
