// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes projects over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pdiddy/triage-engine/internal/export"
	"github.com/pdiddy/triage-engine/internal/project"
	"github.com/pdiddy/triage-engine/pkg/types"
)

// HeaderActor names the caller on write requests.
const HeaderActor = "X-Actor"

// Config holds HTTP server configuration.
type Config struct {
	types.ServerConfig

	// PageSize is used when a page request has no size.
	PageSize int

	// Gatherer backs /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer
}

// Server provides the triage HTTP API.
type Server struct {
	echo     *echo.Echo
	projects *project.Registry
	exporter *export.Exporter
	logger   *zap.Logger
	config   Config
}

// NewServer creates a server over projects.
func NewServer(projects *project.Registry, logger *zap.Logger, cfg Config) (*Server, error) {
	if projects == nil {
		return nil, fmt.Errorf("project registry cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = types.DefaultEngineConfig().Triage.PageSize
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return nil
		}
	})

	s := &Server{
		echo:     e,
		projects: projects,
		exporter: export.New(logger),
		logger:   logger,
		config:   cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{})))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/projects", s.handleCreateProject)
	v1.GET("/projects", s.handleListProjects)

	p := v1.Group("/projects/:id")
	p.GET("", s.handleGetProject)
	p.DELETE("", s.handleDeleteProject)
	p.POST("/labels", s.handleToggleLabel)
	p.POST("/train", s.handleTrain)
	p.POST("/complete", s.handleComplete)
	p.GET("/citations", s.handleListCitations)
	p.GET("/next-batch", s.handleNextBatch)
	p.GET("/pages/:n", s.handleGetPage)
	p.GET("/history", s.handleHistory)
	p.GET("/keywords", s.handleGetKeywords)
	p.POST("/keywords", s.handleSetKeywords)
	p.GET("/keywords/suggestions", s.handleSuggestKeywords)
	p.GET("/export", s.handleExport)
}

// ServeHTTP lets the server be mounted or tested as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Start starts the HTTP server.
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

// session identifies the caller of c.
func session(c echo.Context) types.Session {
	actor := c.Request().Header.Get(HeaderActor)
	if actor == "" {
		actor = "anonymous"
	}
	return types.Session{
		Actor:     actor,
		RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
	}
}
