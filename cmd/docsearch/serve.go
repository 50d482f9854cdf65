package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpserver "github.com/fyrsmithlabs/docsearch/internal/http"
	"github.com/fyrsmithlabs/docsearch/internal/indexing"
	mcpserver "github.com/fyrsmithlabs/docsearch/internal/mcp"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Index the corpus in the background and serve the HTTP API",
		Long: `Start the HTTP API. Indexing runs in the background; until it has stored a
document, /ready answers 503 and semantic queries return no results.

Endpoints:
  GET  /health          liveness
  GET  /ready           readiness
  GET  /api/v1/status   index status
  POST /api/v1/search   keyword or semantic search
  GET  /metrics         Prometheus metrics
  *    /mcp             MCP over streamable HTTP`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts, cmd.Flags().Changed("watch"), watch)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "re-index files when they change (overrides corpus.watch)")
	return cmd
}

func runServe(ctx context.Context, opts *globalOptions, watchSet, watch bool) error {
	a, err := newApp(ctx, opts, appOptions{})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		if err := a.close(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
		}
	}()

	a.runner.Start(ctx)

	if !watchSet {
		watch = a.cfg.Corpus.Watch
	}
	if watch {
		w, err := indexing.NewWatcher(a.pipeline, a.root, a.discover, a.cfg.Indexing.WatchDebounce.Duration(), a.logger)
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()
	}

	mcpSrv, err := mcpserver.NewServer(&mcpserver.Config{
		Name:    "docsearch",
		Version: version,
		Logger:  a.logger.Underlying().Named("mcp"),
		Meter:   a.tel.Meter("github.com/fyrsmithlabs/docsearch/internal/mcp"),
	}, a.search)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	srv, err := httpserver.NewServer(a.search, a.logger.Underlying().Named("http"), &httpserver.Config{
		Host:       a.cfg.Server.Host,
		Port:       a.cfg.Server.Port,
		Version:    version,
		Gatherer:   a.registry,
		Meter:      a.tel.Meter("github.com/fyrsmithlabs/docsearch/internal/http"),
		MCPHandler: mcpSrv.Handler(),
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info(context.Background(), "shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error(shutdownCtx, "http shutdown failed", zap.Error(err))
		return err
	}
	return nil
}
