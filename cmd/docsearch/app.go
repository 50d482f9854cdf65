package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docsearch/internal/config"
	"github.com/fyrsmithlabs/docsearch/internal/docstore"
	"github.com/fyrsmithlabs/docsearch/internal/embeddings"
	"github.com/fyrsmithlabs/docsearch/internal/ignore"
	"github.com/fyrsmithlabs/docsearch/internal/indexing"
	"github.com/fyrsmithlabs/docsearch/internal/logging"
	"github.com/fyrsmithlabs/docsearch/internal/redact"
	"github.com/fyrsmithlabs/docsearch/internal/search"
	"github.com/fyrsmithlabs/docsearch/internal/telemetry"
)

// app holds the wired services for one command invocation.
type app struct {
	cfg      *config.Config
	root     string
	logger   *logging.Logger
	tel      *telemetry.Telemetry
	registry *prometheus.Registry
	embedder *embeddings.Service
	store    *docstore.Store
	pipeline *indexing.Pipeline
	runner   *indexing.Runner
	search   *search.Service
	discover indexing.DiscoverOptions
}

type appOptions struct {
	// stderrLogs keeps stdout free for the MCP stdio protocol.
	stderrLogs bool
}

func loadConfig(opts *globalOptions) (*config.Config, error) {
	cfg, err := config.LoadWithFile(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if opts.root != "" {
		cfg.Corpus.Root = opts.root
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.Logging.Format = opts.logFormat
	}
	return cfg, nil
}

// loggingConfig maps the user-facing logging section onto the full
// logging configuration.
func loggingConfig(c config.LoggingConfig, stderr bool) (*logging.Config, error) {
	cfg := logging.NewDefaultConfig()
	level, err := logging.LevelFromString(c.Level)
	if err != nil {
		return nil, err
	}
	cfg.Level = level
	if c.Format != "" {
		cfg.Format = c.Format
	}
	cfg.Output.OTEL = c.OTEL
	cfg.Output.Stderr = stderr
	return cfg, nil
}

func newApp(ctx context.Context, gopts *globalOptions, aopts appOptions) (*app, error) {
	cfg, err := loadConfig(gopts)
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.New(ctx, telemetry.FromConfig(cfg.Telemetry, version))
	if err != nil {
		return nil, err
	}

	logCfg, err := loggingConfig(cfg.Logging, aopts.stderrLogs)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	logger, err := logging.NewLogger(logCfg, global.GetLoggerProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	for _, reason := range tel.Degraded() {
		logger.Warn(ctx, "telemetry degraded", zap.String("reason", reason))
	}

	root, err := filepath.Abs(cfg.Corpus.Root)
	if err != nil {
		return nil, fmt.Errorf("corpus root: %w", err)
	}

	provider, err := embeddings.NewProvider(embeddings.ProviderConfigFrom(cfg.Embeddings))
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	embedder := embeddings.NewService(provider,
		embeddings.WithTimeout(cfg.Embeddings.Timeout.Duration()),
		embeddings.WithRateLimit(cfg.Embeddings.RateLimit, cfg.Embeddings.Burst),
		embeddings.WithTracer(tel.Tracer("github.com/fyrsmithlabs/docsearch/internal/embeddings")),
		embeddings.WithMeter(tel.Meter("github.com/fyrsmithlabs/docsearch/internal/embeddings")),
		embeddings.WithLogger(logger.Underlying().Named("embeddings")),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := indexing.NewMetrics(registry)

	store := docstore.New()
	indexing.RegisterDocumentGauge(registry, store.Count)

	opts := indexing.Options{
		Root:         root,
		Concurrency:  cfg.Indexing.Concurrency,
		MaxFileSize:  cfg.Corpus.MaxFileSize,
		EmbedTimeout: cfg.Embeddings.Timeout.Duration(),
		Logger:       logger,
		Metrics:      metrics,
	}
	if cfg.Indexing.RedactSecrets {
		allow, err := redact.LoadAllowlist(root)
		if err != nil {
			return nil, fmt.Errorf("secret allowlist: %w", err)
		}
		r, err := redact.New(allow)
		if err != nil {
			return nil, fmt.Errorf("secret redaction: %w", err)
		}
		opts.Redactor = r
	}
	pipeline := indexing.NewPipeline(embedder, store, opts)

	discover := indexing.DiscoverOptions{
		Extensions:  cfg.Corpus.Extensions,
		Exclude:     cfg.Corpus.Exclude,
		IgnoreFiles: ignore.DefaultFiles,
	}
	runner := indexing.NewRunner(pipeline, indexing.DiscoverSource(root, discover), logger, metrics)

	svc := search.NewService(store, embedder, search.Config{
		TopK:         cfg.Search.TopK,
		MinScore:     cfg.Search.MinScore,
		KeywordLimit: cfg.Search.KeywordLimit,
	},
		search.WithRunner(runner),
		search.WithLogger(logger),
		search.WithTracer(tel.Tracer("github.com/fyrsmithlabs/docsearch/internal/search")),
	)

	logger.Info(ctx, "docsearch configured",
		zap.String("root", root),
		zap.String("provider", provider.Name()),
		zap.String("model", provider.Model()),
		zap.Float64("min_score", cfg.Search.MinScore),
		zap.Bool("telemetry", tel.IsEnabled()))

	return &app{
		cfg:      cfg,
		root:     root,
		logger:   logger,
		tel:      tel,
		registry: registry,
		embedder: embedder,
		store:    store,
		pipeline: pipeline,
		runner:   runner,
		search:   svc,
		discover: discover,
	}, nil
}

// close stops background indexing and releases resources.
func (a *app) close(ctx context.Context) error {
	a.runner.Stop()
	var errs []error
	if err := a.embedder.Close(); err != nil {
		errs = append(errs, fmt.Errorf("embedder close: %w", err))
	}
	if err := a.tel.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}
	if err := a.logger.Sync(); err != nil {
		errs = append(errs, fmt.Errorf("logger sync: %w", err))
	}
	return errors.Join(errs...)
}
