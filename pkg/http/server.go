package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ForexDash/pkg/http/middleware"
	applogger "ForexDash/pkg/logger"
)

// ServerOption configures Server.
type ServerOption func(*ServerConfig)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	SlowThreshold   time.Duration
	CORSOrigins     []string
	CORS            bool
	MetricsPath     string
	Checks          map[string]HealthCheck
}

// Server wraps Echo HTTP server.
type Server struct {
	echo   *echo.Echo
	config *ServerConfig
	logger *applogger.Logger
}

// NewServer creates a new HTTP server with Echo and registers every handler's routes.
func NewServer(l *applogger.Logger, handlers []Handler, opts ...ServerOption) *Server {
	cfg := &ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		SlowThreshold:   time.Second,
		CORS:            true,
		MetricsPath:     "/metrics",
		Checks:          map[string]HealthCheck{},
	}

	for _, opt := range opts {
		opt(cfg)
	}
	if l == nil {
		l = applogger.Nop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	e.Use(middleware.Recover(l))
	e.Use(middleware.RequestLogging(l))
	e.Use(middleware.Metrics(l, cfg.SlowThreshold))
	if cfg.CORS {
		e.Use(middleware.CORS(cfg.CORSOrigins))
	}

	s := &Server{echo: e, config: cfg, logger: l}
	e.HTTPErrorHandler = s.errorHandler

	for _, h := range handlers {
		if h != nil {
			h.RegisterRoutes(e)
		}
	}

	if cfg.MetricsPath != "" {
		e.GET(cfg.MetricsPath, echo.WrapHandler(promhttp.Handler()))
	}
	e.GET("/healthz", s.health)

	return s
}

// health runs every registered check and answers 503 when any fails.
func (s *Server) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	report := make(map[string]string, len(s.config.Checks))
	for name, check := range s.config.Checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			report[name] = err.Error()
			continue
		}
		report[name] = "ok"
	}
	return DataResponse(c, status, report)
}

// errorHandler renders AppError and echo.HTTPError through the response envelope.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		_ = DataResponse(c, he.Code, fmt.Sprint(he.Message))
		return
	}
	var appErr *AppError
	if !errors.As(err, &appErr) {
		s.logger.Error("unhandled error", applogger.String("path", c.Path()), applogger.Error(err))
	}
	_ = AppErrorResponse(c, err)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", applogger.String("addr", addr))
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	return s.Stop(shutdownCtx)
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// WithHost sets server host.
func WithHost(host string) ServerOption {
	return func(c *ServerConfig) {
		c.Host = host
	}
}

// WithPort sets server port.
func WithPort(port int) ServerOption {
	return func(c *ServerConfig) {
		c.Port = port
	}
}

// WithTimeouts sets read/write timeouts.
func WithTimeouts(read, write, shutdown time.Duration) ServerOption {
	return func(c *ServerConfig) {
		if read > 0 {
			c.ReadTimeout = read
		}
		if write > 0 {
			c.WriteTimeout = write
		}
		if shutdown > 0 {
			c.ShutdownTimeout = shutdown
		}
	}
}

// WithCORS enables CORS for the given origins, or disables it when enabled is false.
func WithCORS(enabled bool, origins ...string) ServerOption {
	return func(c *ServerConfig) {
		c.CORS = enabled
		c.CORSOrigins = origins
	}
}

// WithMetricsPath moves the Prometheus endpoint. An empty path disables it.
func WithMetricsPath(path string) ServerOption {
	return func(c *ServerConfig) {
		c.MetricsPath = path
	}
}

func WithSlowThreshold(d time.Duration) ServerOption {
	return func(c *ServerConfig) {
		c.SlowThreshold = d
	}
}

// WithHealthCheck adds a named check to /healthz.
func WithHealthCheck(name string, check HealthCheck) ServerOption {
	return func(c *ServerConfig) {
		c.Checks[name] = check
	}
}
