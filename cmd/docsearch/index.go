package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/docsearch/internal/indexing"
)

func newIndexCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Index the corpus once and report failures",
		Long: `Walk the corpus, embed every document and print a summary. Useful for
checking the embedding backend configuration before running serve.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts, appOptions{stderrLogs: true})
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			res, err := indexNow(ctx, a)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), res)
			if res.Indexed == 0 && len(res.Failures) > 0 {
				return fmt.Errorf("no documents indexed")
			}
			return nil
		},
	}
}

// indexNow runs the app's indexing pass to completion.
func indexNow(ctx context.Context, a *app) (*indexing.Result, error) {
	a.runner.Start(ctx)
	if _, err := a.runner.Wait(context.Background()); err != nil {
		return nil, err
	}
	if err := a.runner.Err(); err != nil {
		return nil, err
	}
	return a.runner.Result(), nil
}

func printSummary(w io.Writer, res *indexing.Result) {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	gray := color.New(color.FgHiBlack)

	green.Fprintf(w, "indexed %d of %d documents", res.Indexed, res.Total)
	gray.Fprintf(w, " in %s\n", res.Duration.Round(time.Millisecond))

	if len(res.Failures) > 0 {
		red.Fprintf(w, "%d failed:\n", len(res.Failures))
		for _, f := range res.Failures {
			fmt.Fprintf(w, "  %-6s %s", f.Stage, f.ID)
			gray.Fprintf(w, "  %v\n", f.Err)
		}
	}
	if res.Skipped > 0 {
		yellow.Fprintf(w, "%d skipped (cancelled)\n", res.Skipped)
	}
}
