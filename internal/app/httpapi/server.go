package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/plaza-social/plaza/pkg/logger"
)

// Server runs the REST API as a lifecycle-managed component.
type Server struct {
	srv *http.Server
	log *logger.Logger
}

// NewServer builds a Server listening on addr.
func NewServer(addr string, h http.Handler, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}
}

// Name implements system.Service.
func (s *Server) Name() string { return "httpapi" }

// Start begins serving in the background. Listen errors after startup are
// logged, not returned.
func (s *Server) Start(context.Context) error {
	go func() {
		s.log.WithField("addr", s.srv.Addr).Info("http server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("http server stopped")
		}
	}()
	return nil
}

// Stop drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
