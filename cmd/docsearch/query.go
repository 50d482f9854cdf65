package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/docsearch/internal/docstore"
	"github.com/fyrsmithlabs/docsearch/internal/search"
)

type queryOptions struct {
	mode     string
	topK     int
	minScore float64
}

func newQueryCmd(opts *globalOptions) *cobra.Command {
	qopts := &queryOptions{}
	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Index the corpus and run one query",
		Long: `Index the corpus, then print the documents most relevant to the query.

Examples:
  docsearch query --root ./docs "retry policy"
  docsearch query --mode keyword "ConfigureServices"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if qopts.mode != "semantic" && qopts.mode != "keyword" {
				return fmt.Errorf("unknown mode %q: want semantic or keyword", qopts.mode)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts, appOptions{stderrLogs: true})
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			if _, err := indexNow(ctx, a); err != nil {
				return err
			}

			query := strings.Join(args, " ")
			w := cmd.OutOrStdout()
			if qopts.mode == "keyword" {
				printKeywordHits(w, a.search.Keyword(query, qopts.topK))
				return nil
			}

			semOpts := search.SemanticOptions{TopK: qopts.topK}
			if cmd.Flags().Changed("min-score") {
				semOpts.MinScore = &qopts.minScore
			}
			results, err := a.search.Semantic(ctx, query, semOpts)
			if err != nil {
				if errors.Is(err, search.ErrEmptyQuery) || errors.Is(err, docstore.ErrDimensionMismatch) {
					return err
				}
				color.New(color.FgYellow).Fprintf(w, "semantic search unavailable (%v); keyword results:\n", err)
				printKeywordHits(w, a.search.Keyword(query, qopts.topK))
				return nil
			}
			printSemanticResults(w, results)
			return nil
		},
	}
	cmd.Flags().StringVar(&qopts.mode, "mode", "semantic", "search mode: semantic or keyword")
	cmd.Flags().IntVarP(&qopts.topK, "top-k", "k", 0, "maximum results (default from config)")
	cmd.Flags().Float64Var(&qopts.minScore, "min-score", 0, "similarity a result must exceed (default from config)")
	return cmd
}

func printSemanticResults(w io.Writer, results []docstore.QueryResult) {
	if len(results) == 0 {
		color.New(color.FgHiBlack).Fprintln(w, "no matching documents")
		return
	}
	cyan := color.New(color.FgCyan, color.Bold)
	gray := color.New(color.FgHiBlack)
	for i, r := range results {
		fmt.Fprintf(w, "%2d. ", i+1)
		cyan.Fprint(w, r.ID)
		gray.Fprintf(w, "  %.4f\n", r.Score)
	}
}

func printKeywordHits(w io.Writer, hits []search.KeywordHit) {
	if len(hits) == 0 {
		color.New(color.FgHiBlack).Fprintln(w, "no matching documents")
		return
	}
	cyan := color.New(color.FgCyan, color.Bold)
	gray := color.New(color.FgHiBlack)
	for i, h := range hits {
		fmt.Fprintf(w, "%2d. ", i+1)
		cyan.Fprint(w, h.ID)
		gray.Fprintf(w, "  %d matches\n", h.Score)
		for _, line := range h.Matches {
			fmt.Fprintf(w, "      %s\n", line)
		}
	}
}
