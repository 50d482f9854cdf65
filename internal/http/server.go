// Package http serves the docsearch HTTP API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docsearch/internal/embeddings"
	"github.com/fyrsmithlabs/docsearch/internal/logging"
	"github.com/fyrsmithlabs/docsearch/internal/search"
)

const metricsPath = "/metrics"

// Server provides HTTP endpoints for docsearch.
type Server struct {
	echo   *echo.Echo
	search *search.Service
	logger *zap.Logger
	config *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host    string
	Port    int
	Version string

	// Gatherer backs /metrics. Defaults to the prometheus default registry.
	Gatherer prometheus.Gatherer

	// Meter records request metrics. Defaults to the global meter.
	Meter metric.Meter

	// MCPHandler, when set, is mounted at /mcp.
	MCPHandler http.Handler
}

// requestValidator adapts validator/v10 to echo.Validator.
type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// NewServer creates a new HTTP server.
func NewServer(svc *search.Service, logger *zap.Logger, cfg *Config) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("search service cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "127.0.0.1",
			Port: 9191,
		}
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{validate: validator.New(validator.WithRequiredStructEnabled())}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewHTTPMetrics(cfg.Meter, logger).MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), requestID)))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Info("http request",
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", requestID),
			)
			return nil
		}
	})

	s := &Server{
		echo:   e,
		search: svc,
		logger: logger,
		config: cfg,
	}

	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/ready", s.handleReady)
	s.echo.GET(metricsPath, echo.WrapHandler(promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{})))

	if s.config.MCPHandler != nil {
		s.echo.Any("/mcp", echo.WrapHandler(s.config.MCPHandler))
	}

	v1 := s.echo.Group("/api/v1")
	v1.GET("/status", s.handleStatus)
	v1.POST("/search", s.handleSearch)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleReady reports 503 until the first document is searchable.
func (s *Server) handleReady(c echo.Context) error {
	if !s.search.Status().Ready {
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "indexing"})
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "ready"})
}

func (s *Server) handleStatus(c echo.Context) error {
	st := s.search.Status()
	status := "ok"
	if !st.Ready {
		status = "indexing"
	}
	return c.JSON(http.StatusOK, StatusResponse{
		Status:  status,
		Version: s.config.Version,
		Index:   st,
	})
}

func (s *Server) handleSearch(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid search request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if req.Mode == "" {
		req.Mode = ModeSemantic
	}

	resp := SearchResponse{Query: req.Query, Mode: req.Mode, Results: []SearchResult{}}

	switch req.Mode {
	case ModeKeyword:
		for _, h := range s.search.Keyword(req.Query, req.Limit) {
			resp.Results = append(resp.Results, SearchResult{ID: h.ID, Score: float64(h.Score), Matches: h.Matches})
		}
	default:
		results, err := s.search.Semantic(c.Request().Context(), req.Query, search.SemanticOptions{
			TopK:     req.Limit,
			MinScore: req.MinScore,
		})
		if err != nil {
			return searchError(err)
		}
		for _, r := range results {
			resp.Results = append(resp.Results, SearchResult{ID: r.ID, Score: r.Score})
		}
	}

	resp.Count = len(resp.Results)
	return c.JSON(http.StatusOK, resp)
}

func searchError(err error) error {
	switch {
	case errors.Is(err, search.ErrEmptyQuery):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, embeddings.ErrEmbeddingFailed):
		return echo.NewHTTPError(http.StatusBadGateway, "embedding backend unavailable").SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "search failed").SetInternal(err)
	}
}

// Handler exposes the router for embedding in tests or other servers.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server. It returns http.ErrServerClosed after
// Shutdown.
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
