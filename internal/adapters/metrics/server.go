package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"divergenceBot/internal/ports"
)

// StatusFunc produces the JSON document served on /status.
type StatusFunc func() interface{}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
	Logger          ports.Logger
}

// Server exposes /metrics, /healthz and /status over Echo.
type Server struct {
	echo   *echo.Echo
	config ServerConfig
}

// NewServer creates the HTTP server. status may be nil, in which case
// /status answers 503.
func NewServer(cfg ServerConfig, recorder *Recorder, status StatusFunc) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(recorder.Registry(), promhttp.HandlerOpts{})))
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/status", func(c echo.Context) error {
		if status == nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "status unavailable"})
		}
		return c.JSON(http.StatusOK, status())
	})

	return &Server{echo: e, config: cfg}
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if s.config.Logger != nil {
			s.config.Logger.Info(ctx, "Metrics server listening", map[string]interface{}{"addr": s.config.Addr})
		}
		if err := s.echo.Start(s.config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	if s.config.Logger != nil {
		s.config.Logger.Info(ctx, "Metrics server stopped")
	}
	return nil
}
