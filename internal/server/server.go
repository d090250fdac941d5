// Package server owns HTTP server initialization and lifecycle.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Config holds HTTP server configuration.
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns default HTTP server configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // a session may take several tool rounds
		IdleTimeout:  60 * time.Second,
	}
}

// Server wraps the HTTP server plus the resources it must release on
// shutdown (database pools, index handles).
type Server struct {
	config  Config
	http    *http.Server
	closers []io.Closer
	log     *zap.Logger
}

// NewServer creates an HTTP server serving handler. closers are closed in
// order during Shutdown, after the listener has drained.
func NewServer(handler http.Handler, config Config, log *zap.Logger, closers ...io.Closer) *Server {
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return &Server{
		config:  config,
		http:    httpServer,
		closers: closers,
		log:     log,
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.log.Info("starting HTTP server", zap.String("addr", s.http.Addr))
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully drains the server and releases held resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down server")

	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.log.Warn("close on shutdown failed", zap.Error(err))
		}
	}

	s.log.Info("server shutdown complete")
	return nil
}
