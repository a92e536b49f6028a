// Package server exposes health, metrics, verbose logs and histories over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"persona-handler/logging"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	http   *http.Server
	logger *logging.Logger
}

func New(addr string, h *Handler, logger *logging.Logger) *Server {
	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           Router(h),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger.With(logging.Addr(addr)),
	}
}

// Run serves until context done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("ops server listening")
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("ops server received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-errCh
	return nil
}
