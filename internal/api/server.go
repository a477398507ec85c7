package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/afftrack/linktrack/internal/config"
	"github.com/afftrack/linktrack/internal/handler"
	"github.com/afftrack/linktrack/internal/logger"
	"github.com/afftrack/linktrack/internal/middleware"
)

const (
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 15 * time.Second
	defaultIdleTimeout  = 60 * time.Second
	shutdownTimeout     = 15 * time.Second
)

// Server wraps the HTTP server with lifecycle management.
type Server struct {
	server *http.Server
	log    logger.Logger
	stop   chan struct{}
}

// NewServer builds the router and HTTP server from configuration.
func NewServer(
	orch *handler.Orchestrator,
	health *handler.HealthHandler,
	cfg *config.Config,
	log logger.Logger,
) *Server {
	if cfg.Service.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))

	stop := make(chan struct{})
	rateLimitWindow := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
	SetupRoutes(
		router,
		orch,
		health,
		log,
		cfg.Service.FallbackURL,
		cfg.RateLimit.MaxClicksPerMinute,
		rateLimitWindow,
		stop,
	)

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Service.Port),
			Handler:      router,
			ReadTimeout:  defaultReadTimeout,
			WriteTimeout: defaultWriteTimeout,
			IdleTimeout:  defaultIdleTimeout,
		},
		log:  log,
		stop: stop,
	}
}

// Run starts the server and blocks until SIGINT/SIGTERM, then shuts down
// gracefully.
func (s *Server) Run() error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", logger.String("address", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		close(s.stop)
		return err
	case sig := <-sigCh:
		s.log.Info("Shutdown signal received", logger.String("signal", sig.String()))
	}

	close(s.stop)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.log.Info("HTTP server stopped gracefully")
	return nil
}
