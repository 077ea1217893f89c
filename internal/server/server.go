// Package server implements the datavet HTTP API server.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/datavet-systems/datavet/internal/engine"
	"github.com/datavet-systems/datavet/internal/history"
	"github.com/datavet-systems/datavet/internal/monitor"
	"github.com/datavet-systems/datavet/internal/quality"
	"github.com/datavet-systems/datavet/internal/rules"
	"github.com/datavet-systems/datavet/internal/server/handlers"
)

// Server is the datavet HTTP API server.
type Server struct {
	router chi.Router
	addr   string
	srv    *http.Server
}

// New creates a new HTTP server. An empty apiKey disables authentication;
// maxBody <= 0 disables the request body cap.
func New(addr string, exec *engine.Executor, store history.Store, mon *monitor.Monitor, calc *quality.Calculator, reg *rules.Registry, apiKey string, maxBody int64) *Server {
	s := &Server{addr: addr}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SetHeader("Content-Type", "application/json"))
	if maxBody > 0 {
		r.Use(MaxBodyMiddleware(maxBody))
	}
	r.Use(APIKeyMiddleware(apiKey))

	s.router = r
	s.registerRoutes(r, handlers.New(exec, store, mon, calc, reg))
	return s
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	fmt.Printf("datavet server listening on %s\n", s.addr)
	return s.srv.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}
