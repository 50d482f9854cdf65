// Package mcp exposes document search as MCP tools over stdio or
// streamable HTTP.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docsearch/internal/search"
)

// Server registers the search tools on an MCP server.
type Server struct {
	mcp     *mcp.Server
	search  *search.Service
	metrics *Metrics
	logger  *zap.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "docsearch")
	Name string

	// Version is the server version (default: "dev")
	Version string

	Logger *zap.Logger

	// Meter for tool metrics. Defaults to the global meter provider.
	Meter metric.Meter
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "docsearch",
		Version: "dev",
		Logger:  zap.NewNop(),
	}
}

// NewServer creates an MCP server backed by svc.
func NewServer(cfg *Config, svc *search.Service) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if svc == nil {
		return nil, errors.New("search service is required")
	}
	if cfg.Name == "" {
		cfg.Name = "docsearch"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		},
		nil,
	)

	s := &Server{
		mcp:     mcpServer,
		search:  svc,
		metrics: NewMetrics(cfg.Meter, cfg.Logger),
		logger:  cfg.Logger,
	}
	s.registerTools()

	return s, nil
}

// Run serves MCP on the stdio transport until ctx ends or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// Handler serves MCP over streamable HTTP.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcp
	}, nil)
}
