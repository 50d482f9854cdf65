// Package search answers keyword and semantic queries over the document
// store.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/docsearch/internal/docstore"
	"github.com/fyrsmithlabs/docsearch/internal/embeddings"
	"github.com/fyrsmithlabs/docsearch/internal/indexing"
	"github.com/fyrsmithlabs/docsearch/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	DefaultTopK         = 10
	DefaultMinScore     = 0.1
	DefaultKeywordLimit = 20

	// maxMatchLines caps the excerpt lines returned per keyword hit.
	maxMatchLines = 3
)

// ErrEmptyQuery is returned for a blank semantic query.
var ErrEmptyQuery = errors.New("query is empty")

// Config holds query defaults.
type Config struct {
	TopK         int
	MinScore     float64
	KeywordLimit int
}

// SemanticOptions overrides the defaults for one query. Nil MinScore
// and non-positive TopK use the configured values.
type SemanticOptions struct {
	TopK     int
	MinScore *float64
}

// KeywordHit is one keyword match.
type KeywordHit struct {
	ID      string   `json:"id"`
	Score   int      `json:"score"`
	Matches []string `json:"matches"`
}

// Status describes the searchable corpus.
type Status struct {
	Documents int    `json:"documents"`
	Ready     bool   `json:"ready"`
	Dimension int    `json:"dimension"`
	Indexing  string `json:"indexing"`
	Provider  string `json:"provider,omitempty"`
	Model     string `json:"model,omitempty"`
	Indexed   int    `json:"indexed"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
}

// Runner reports background indexing progress.
type Runner interface {
	State() indexing.State
	Result() *indexing.Result
}

type described interface {
	Name() string
	Model() string
}

// Service runs queries against a store.
type Service struct {
	store    *docstore.Store
	embedder embeddings.Embedder
	cfg      Config
	runner   Runner
	tracer   trace.Tracer
	logger   *logging.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithRunner reports the runner's state in Status.
func WithRunner(r Runner) Option {
	return func(s *Service) { s.runner = r }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a query service. A non-positive TopK or
// KeywordLimit takes the package default; MinScore is used as given.
func NewService(store *docstore.Store, embedder embeddings.Embedder, cfg Config, opts ...Option) *Service {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.KeywordLimit <= 0 {
		cfg.KeywordLimit = DefaultKeywordLimit
	}
	s := &Service{
		store:    store,
		embedder: embedder,
		cfg:      cfg,
		logger:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("github.com/fyrsmithlabs/docsearch/internal/search")
	}
	s.logger = s.logger.Named("search")
	return s
}

// Semantic ranks stored documents by cosine similarity to query. Before
// any document is indexed it returns an empty result and no error.
// Embedding failures are returned so callers can fall back to Keyword.
func (s *Service) Semantic(ctx context.Context, query string, opts SemanticOptions) ([]docstore.QueryResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = s.cfg.TopK
	}
	minScore := s.cfg.MinScore
	if opts.MinScore != nil {
		minScore = *opts.MinScore
	}

	ctx, span := s.tracer.Start(ctx, "search.semantic", trace.WithAttributes(
		attribute.Int("search.top_k", topK),
		attribute.Float64("search.min_score", minScore),
	))
	defer span.End()

	if !s.store.IsReady() {
		s.logger.Debug(ctx, "semantic query before indexing produced documents")
		return []docstore.QueryResult{}, nil
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query embedding")
		s.logger.Warn(ctx, "query embedding failed", zap.Error(err))
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := docstore.Rank(vec, s.store.AllRecords(), topK, minScore)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rank")
		s.logger.Error(ctx, "ranking failed", zap.Int("query_dimension", len(vec)), zap.Error(err))
		return nil, err
	}

	span.SetAttributes(attribute.Int("search.results", len(results)))
	return results, nil
}

// Keyword scores documents by total occurrences of the query's distinct words.
// Hits are ordered by score then ID. A non-positive limit uses the
// configured default.
func (s *Service) Keyword(query string, limit int) []KeywordHit {
	if limit <= 0 {
		limit = s.cfg.KeywordLimit
	}
	words := uniqueWords(query)
	hits := []KeywordHit{}
	if len(words) == 0 {
		return hits
	}

	for _, rec := range s.store.AllRecords() {
		lower := strings.ToLower(rec.Content)
		score := 0
		for _, w := range words {
			score += strings.Count(lower, w)
		}
		if score == 0 {
			continue
		}
		hits = append(hits, KeywordHit{
			ID:      rec.ID,
			Score:   score,
			Matches: matchingLines(rec.Content, words),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// uniqueWords lowercases query and drops repeated words so each counts
// once toward a score.
func uniqueWords(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	seen := make(map[string]struct{}, len(fields))
	words := fields[:0]
	for _, w := range fields {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		words = append(words, w)
	}
	return words
}

func matchingLines(content string, words []string) []string {
	lines := []string{}
	for _, line := range strings.Split(content, "\n") {
		lower := strings.ToLower(line)
		for _, w := range words {
			if strings.Contains(lower, w) {
				lines = append(lines, strings.TrimSpace(line))
				break
			}
		}
		if len(lines) == maxMatchLines {
			break
		}
	}
	return lines
}

// Status reports the store and indexing state.
func (s *Service) Status() Status {
	st := Status{
		Documents: s.store.Count(),
		Ready:     s.store.IsReady(),
		Dimension: s.store.Dimension(),
		Indexing:  indexing.StateNotStarted.String(),
	}
	if d, ok := s.embedder.(described); ok {
		st.Provider = d.Name()
		st.Model = d.Model()
	}
	if s.runner != nil {
		st.Indexing = s.runner.State().String()
		if res := s.runner.Result(); res != nil {
			st.Indexed = res.Indexed
			st.Failed = len(res.Failures)
			st.Skipped = res.Skipped
		}
	}
	return st
}
