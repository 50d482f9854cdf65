// Docsearch indexes a documentation tree and serves keyword and semantic
// search over HTTP and MCP.
//
// Usage:
//
//	# Serve the HTTP API and MCP over streamable HTTP
//	docsearch serve --root ./docs
//
//	# Serve MCP on stdio for an editor integration
//	docsearch mcp --root ./docs
//
//	# One-shot indexing report and query
//	docsearch index --root ./docs
//	docsearch query --root ./docs "how do I configure retries"
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	root       string
	logLevel   string
	logFormat  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "docsearch",
		Short: "Semantic search over a documentation tree",
		Long: `docsearch indexes Markdown and source files with an embedding model and
answers keyword and semantic queries over HTTP, MCP stdio or the command line.

Configuration is read from ~/.config/docsearch/config.yaml, a .env file in the
working directory and DOCSEARCH_* environment variables.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.config/docsearch/config.yaml)")
	root.PersistentFlags().StringVar(&opts.root, "root", "", "corpus root directory (overrides corpus.root)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format: json or console")

	root.AddCommand(
		newServeCmd(opts),
		newMCPCmd(opts),
		newIndexCmd(opts),
		newQueryCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "docsearch by Fyrsmith Labs\n")
	fmt.Fprintf(w, "Version:    %s\n", version)
	fmt.Fprintf(w, "Commit:     %s\n", gitCommit)
	fmt.Fprintf(w, "Build Date: %s\n", buildDate)
}
