package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	mcpserver "github.com/fyrsmithlabs/docsearch/internal/mcp"
)

func newMCPCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve MCP tools on stdio",
		Long: `Run an MCP server on stdin/stdout for editor and agent integrations.
Logs go to stderr. Indexing runs in the background; semantic_search answers
from keyword search until the index is ready.

Tools: keyword_search, semantic_search, index_status`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runMCP(ctx, opts)
		},
	}
}

func runMCP(ctx context.Context, opts *globalOptions) error {
	a, err := newApp(ctx, opts, appOptions{stderrLogs: true})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
		}
	}()

	a.runner.Start(ctx)

	srv, err := mcpserver.NewServer(&mcpserver.Config{
		Name:    "docsearch",
		Version: version,
		Logger:  a.logger.Underlying().Named("mcp"),
		Meter:   a.tel.Meter("github.com/fyrsmithlabs/docsearch/internal/mcp"),
	}, a.search)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	return srv.Run(ctx)
}
