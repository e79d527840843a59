package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/audiokit/internal/buildinfo"
	"github.com/tphakala/audiokit/internal/capture"
	"github.com/tphakala/audiokit/internal/logger"
	"github.com/tphakala/audiokit/internal/observability"
	"github.com/tphakala/audiokit/internal/offload"
)

// Server is the HTTP server exposing offload statistics and capture control.
type Server struct {
	echo   *echo.Echo
	config *Config
	log    logger.Logger

	processor *offload.Processor
	capture   *capture.Capture
	metrics   *observability.Metrics
	build     *buildinfo.Context

	controller *Controller

	startTime time.Time

	wg      sync.WaitGroup
	errOnce sync.Once
	errCh   chan error
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithLogger sets the logger used by the server and its handlers.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// WithProcessor exposes the processor's statistics.
func WithProcessor(p *offload.Processor) ServerOption {
	return func(s *Server) {
		s.processor = p
	}
}

// WithCapture exposes capture status and control endpoints.
func WithCapture(c *capture.Capture) ServerOption {
	return func(s *Server) {
		s.capture = c
	}
}

// WithMetrics mounts the Prometheus handler at /metrics when the config allows it.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithBuildInfo reports the version on /health.
func WithBuildInfo(b *buildinfo.Context) ServerOption {
	return func(s *Server) {
		s.build = b
	}
}

// New creates a server. Routes for components not supplied through options
// answer 503.
func New(config *Config, opts ...ServerOption) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	s := &Server{
		config:    config,
		startTime: time.Now(),
		errCh:     make(chan error, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = GetLogger()
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.setupMiddleware()
	s.setupRoutes()

	s.log.Info("HTTP server initialized",
		logger.String("address", config.Address()),
		logger.Bool("debug", config.Debug),
		logger.Bool("metrics", s.metrics != nil && config.ServeMetrics))

	return s, nil
}

func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	if s.config.Debug {
		s.echo.Use(newRequestLogger(s.log))
	}
	if s.metrics != nil {
		s.echo.Use(newRequestMetrics(s.metrics.HTTP))
	}
	s.echo.Use(echomw.BodyLimit(s.config.BodyLimit))
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	s.controller = NewController(s.echo.Group("/api/v1"), s.processor, s.capture, s.config.RecordingDir, s.log)

	if s.metrics != nil && s.config.ServeMetrics {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}
}

func (s *Server) healthCheck(c echo.Context) error {
	uptime := time.Since(s.startTime)
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"version":        s.build.GetVersion(),
		"build_date":     s.build.GetBuildDate(),
		"uptime":         uptime.String(),
		"uptime_seconds": uptime.Seconds(),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

// Start begins serving in a background goroutine. A listener failure is
// delivered on Errors.
func (s *Server) Start() {
	s.wg.Go(func() {
		addr := s.config.Address()
		s.log.Info("starting HTTP server", logger.String("address", addr))
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server error", logger.Error(err))
			s.errOnce.Do(func() { s.errCh <- fmt.Errorf("server error: %w", err) })
		}
	})
}

// Errors reports a fatal listener error. It never yields more than one value.
func (s *Server) Errors() <-chan error {
	return s.errCh
}

// Shutdown gracefully stops the server and waits for the serve goroutine.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	err := s.echo.Shutdown(ctx)
	s.wg.Wait()
	if err != nil {
		s.log.Error("error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}

	s.log.Info("server shutdown complete")
	return nil
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
