// Package server provides the HTTP read API for glimpsed.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/glimpsed/internal/pipeline"
	"github.com/fyrsmithlabs/glimpsed/internal/store"
)

const defaultListLimit = 20

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Server exposes the pipeline's read API over HTTP. All observation
// happens in the pipeline; the server only reads state and forwards
// complete/dismiss requests.
type Server struct {
	echo     *echo.Echo
	pipeline *pipeline.Orchestrator
	logger   *zap.Logger
	config   *Config
}

// NewServer creates the HTTP server. gatherer serves /metrics; nil means
// the default prometheus gatherer.
func NewServer(p *pipeline.Orchestrator, gatherer prometheus.Gatherer, logger *zap.Logger, cfg *Config) (*Server, error) {
	if p == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 9190}
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:     e,
		pipeline: p,
		logger:   logger,
		config:   cfg,
	}
	s.registerRoutes(gatherer)
	return s, nil
}

func (s *Server) registerRoutes(gatherer prometheus.Gatherer) {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/status", s.handleStatus)
	s.echo.GET("/commitments", s.handleCommitments)
	s.echo.POST("/commitments/:id/complete", s.handleCompleteCommitment)
	s.echo.POST("/commitments/:id/dismiss", s.handleDismissCommitment)
	s.echo.GET("/action-items", s.handleActionItems)
	s.echo.POST("/action-items/:id/complete", s.handleCompleteActionItem)
	s.echo.GET("/follow-ups", s.handleFollowUps)
	s.echo.GET("/context/summary", s.handleContextSummary)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleStatus(c echo.Context) error {
	status, err := s.pipeline.Status(c.Request().Context())
	if err != nil {
		s.logger.Error("status query failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read status")
	}
	return c.JSON(http.StatusOK, status)
}

func (s *Server) handleCommitments(c echo.Context) error {
	status := store.CommitmentStatus(c.QueryParam("status"))
	switch status {
	case "", store.StatusPending, store.StatusCompleted, store.StatusDismissed, store.StatusExpired:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "invalid status filter")
	}

	limit, err := queryLimit(c, defaultListLimit)
	if err != nil {
		return err
	}

	commitments, err := s.pipeline.Commitments(c.Request().Context(), status, limit)
	if err != nil {
		s.logger.Error("commitment query failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list commitments")
	}
	return c.JSON(http.StatusOK, map[string]any{"commitments": commitments})
}

func (s *Server) handleCompleteCommitment(c echo.Context) error {
	return s.transition(c, s.pipeline.CompleteCommitment)
}

func (s *Server) handleDismissCommitment(c echo.Context) error {
	return s.transition(c, s.pipeline.DismissCommitment)
}

// transition runs a pending-to-terminal status change and maps the store's
// sentinel errors to HTTP statuses.
func (s *Server) transition(c echo.Context, fn func(context.Context, string) error) error {
	id := c.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "id is required")
	}

	err := fn(c.Request().Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, "not pending")
	case err != nil:
		s.logger.Error("status transition failed", zap.String("id", id), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update status")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleActionItems(c echo.Context) error {
	limit, err := queryLimit(c, defaultListLimit)
	if err != nil {
		return err
	}

	items, err := s.pipeline.RecentActionItems(c.Request().Context(), limit)
	if err != nil {
		s.logger.Error("action item query failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list action items")
	}
	return c.JSON(http.StatusOK, map[string]any{"action_items": items})
}

func (s *Server) handleCompleteActionItem(c echo.Context) error {
	return s.transition(c, s.pipeline.CompleteActionItem)
}

func (s *Server) handleFollowUps(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"follow_ups": s.pipeline.PendingFollowUps()})
}

func (s *Server) handleContextSummary(c echo.Context) error {
	summary, err := s.pipeline.ContextSummary(c.Request().Context())
	if err != nil {
		s.logger.Error("context summary failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to build summary")
	}
	return c.JSON(http.StatusOK, map[string]string{"summary": summary})
}

func queryLimit(c echo.Context, def int) (int, error) {
	raw := c.QueryParam("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
	}
	return n, nil
}

// Start starts the HTTP server. Blocks until Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
