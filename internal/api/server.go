package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/urbantwin/hybridsim/internal/hybrid"
	"github.com/urbantwin/hybridsim/internal/models"
	"go.uber.org/zap"
)

// NewRouter wires the upload/run/query endpoints. All state lives in the
// passed-in collaborators; nothing is constructed at import time.
func NewRouter(manager *hybrid.Manager, dataDir string, logger *zap.Logger) http.Handler {
	r := mux.NewRouter()

	r.Handle("/upload/osm", UploadOSMHandler(dataDir, logger)).Methods("POST")
	r.Handle("/upload/gtfs", UploadGTFSHandler(dataDir, logger)).Methods("POST")
	r.Handle("/run", RunHandler(manager, logger)).Methods("POST")
	r.Handle("/results", ResultsHandler(manager, logger)).Methods("GET")
	r.Handle("/status", StatusHandler(manager, logger)).Methods("GET")
	r.Handle("/health", HealthHandler()).Methods("GET")

	return r
}

// Server runs the HTTP API with sane timeouts and graceful shutdown.
type Server struct {
	http   *http.Server
	cfg    models.ServerConfig
	logger *zap.Logger
}

func NewServer(cfg models.ServerConfig, handler http.Handler, logger *zap.Logger) *Server {
	return &Server{
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		cfg:    cfg,
		logger: logger,
	}
}

// ListenAndServe blocks until SIGINT/SIGTERM, then drains in-flight
// requests within the configured shutdown timeout.
func (s *Server) ListenAndServe() error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	s.logger.Info("server listening", zap.String("addr", s.http.Addr))

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigs:
		s.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("server shut down")
	return nil
}
