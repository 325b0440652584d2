package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/michaelbrown/coderun/internal/config"
	"github.com/michaelbrown/coderun/internal/execution"
)

// Server is the HTTP front end for the execution handler. Its route table
// is built once in New and never changes afterwards.
type Server struct {
	cfg     config.ServerConfig
	handler *execution.Handler
	logger  *slog.Logger
	router  chi.Router
	http    *http.Server

	// baseCtx parents every request context; cancelBase aborts in-flight
	// executions when a graceful shutdown runs out of time.
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// New creates a new Server.
func New(cfg config.ServerConfig, handler *execution.Handler, logger *slog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		router:  chi.NewRouter(),
	}
	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())
	s.setupRoutes()
	s.http = &http.Server{
		Handler:      s.router,
		BaseContext:  func(net.Listener) context.Context { return s.baseCtx },
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/run", s.handleRun)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening on the given port. It blocks until the server
// stops and returns http.ErrServerClosed after Shutdown.
func (s *Server) Start(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("listening on port %d: %w", port, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("coderun server starting", "addr", ln.Addr().String())
	return s.http.Serve(ln)
}

// Shutdown gracefully shuts down the server. In-flight executions see
// their request context canceled once the grace period runs out.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err := s.http.Shutdown(shutdownCtx)
	s.cancelBase()
	if err != nil {
		s.http.Close()
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
