// Package server wraps the HTTP server lifecycle.
package server

import (
	"context"
	"net/http"
	"time"
)

// Server serves the gateway API.
type Server struct {
	srv *http.Server
}

// New creates a server for the given handler. Write timeout leaves room for
// the slowest carrier fan-out plus response encoding.
func New(handler http.Handler, port string) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         ":" + port,
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Start begins listening in a background goroutine.
func (s *Server) Start() error {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			panic(err)
		}
	}()
	return nil
}

// Shutdown stops accepting new connections and waits for in-flight requests
// up to the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
