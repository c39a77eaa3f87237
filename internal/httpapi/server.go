// Package httpapi exposes the coordinator to shortcuts, widgets and other
// local automations over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focuslock/internal/usecase"
)

// ShutdownTimeout bounds how long in-flight requests may finish after Start's
// context is cancelled.
const ShutdownTimeout = 10 * time.Second

// Server serves the automation API for one coordinator.
type Server struct {
	coord      *usecase.Coordinator
	router     chi.Router
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer builds the router. Nothing listens until Start.
func NewServer(addr string, coord *usecase.Coordinator, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		coord:  coord,
		logger: logger,
	}
	s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("starting automation server", zap.String("address", s.httpServer.Addr))
		serverErrors <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			if closeErr := s.httpServer.Close(); closeErr != nil {
				s.logger.Error("failed to close server", zap.Error(closeErr))
			}
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.logger.Info("automation server stopped")
	return nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/toggle", s.handleToggle)
		r.Post("/start", s.handleStart)
		r.Post("/stop", s.handleStop)
		r.Post("/break", s.handleBreak)
		r.Post("/override", s.handleOverride)
		r.Post("/resolve", s.handleResolve)
		r.Get("/", s.handleListSessions)
	})

	r.Route("/automation", func(r chi.Router) {
		r.Post("/start", s.handleAutomationStart)
		r.Post("/stop", s.handleAutomationStop)
	})
	r.Post("/deeplink", s.handleDeepLink)

	r.Route("/profiles", func(r chi.Router) {
		r.Get("/", s.handleListProfiles)
		r.Post("/", s.handleCreateProfile)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetProfile)
			r.Put("/", s.handlePutProfile)
			r.Delete("/", s.handleDeleteProfile)
		})
	})

	r.Post("/maintenance/cleanup", s.handleCleanup)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.fail(w, http.StatusNotFound, CodeNotFound, "no such endpoint", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.fail(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed", nil)
	})

	s.router = r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Debug("request",
				zap.String("request_id", chimiddleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)))
		}()
		next.ServeHTTP(ww, r)
	})
}
