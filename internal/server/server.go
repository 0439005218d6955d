// File: internal/server/server.go
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/minsu-cho/declarepass/internal/config"
	"github.com/minsu-cho/declarepass/internal/service"
)

// Server is the HTTP surface over the submission pipeline.
type Server struct {
	submitter      service.Submitter
	fallbackURL    string
	version        string
	requestTimeout time.Duration
	addr           string
	logger         *zap.Logger
}

// New builds the server around a submitter. version appears in the health
// endpoint only.
func New(submitter service.Submitter, cfg *config.Config, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Server.RequestTimeout
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return &Server{
		submitter:      submitter,
		fallbackURL:    cfg.Portal.FallbackURL,
		version:        version,
		requestTimeout: timeout,
		addr:           cfg.Server.Addr,
		logger:         logger.Named("server"),
	}
}

// Router assembles the route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/declarations", s.handleSubmitDeclaration)
	})
	return r
}

// ListenAndServe runs the server until ctx is cancelled, then drains with a
// bounded grace period.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening.", zap.String("addr", s.addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server.")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("HTTP server shutdown was not clean.", zap.Error(err))
		return err
	}
	return nil
}
