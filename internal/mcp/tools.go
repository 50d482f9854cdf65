package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docsearch/internal/docstore"
	"github.com/fyrsmithlabs/docsearch/internal/search"
)

const (
	SourceSemantic = "semantic"
	SourceKeyword  = "keyword"
)

// Fallback reasons reported when semantic_search answers with keyword hits.
const (
	FallbackNotReady       = "index_not_ready"
	FallbackEmbeddingError = "embedding_failed"
	FallbackNoMatch        = "no_semantic_match"
)

type keywordSearchInput struct {
	Query string `json:"query" jsonschema:"Words to look for. Matching is case-insensitive."`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum documents to return (default: 20)"`
}

type keywordSearchOutput struct {
	Query   string              `json:"query" jsonschema:"Search query used"`
	Results []search.KeywordHit `json:"results" jsonschema:"Matching documents with occurrence count and up to three matching lines"`
	Count   int                 `json:"count" jsonschema:"Number of documents found"`
}

type semanticSearchInput struct {
	Query    string   `json:"query" jsonschema:"Natural language description of what to find"`
	TopK     int      `json:"top_k,omitempty" jsonschema:"Maximum documents to return (default: 10)"`
	MinScore *float64 `json:"min_score,omitempty" jsonschema:"Cosine similarity a document must exceed (default: 0.1)"`
}

type searchHit struct {
	ID      string   `json:"id" jsonschema:"Document path relative to the corpus root"`
	Score   float64  `json:"score" jsonschema:"Cosine similarity, or occurrence count for keyword hits"`
	Matches []string `json:"matches,omitempty" jsonschema:"Matching lines for keyword hits"`
}

type semanticSearchOutput struct {
	Query          string      `json:"query" jsonschema:"Search query used"`
	Source         string      `json:"source" jsonschema:"semantic, or keyword when semantic search could not answer"`
	FallbackReason string      `json:"fallback_reason,omitempty" jsonschema:"Why keyword search was used"`
	Results        []searchHit `json:"results" jsonschema:"Ranked documents"`
	Count          int         `json:"count" jsonschema:"Number of documents returned"`
}

type indexStatusInput struct{}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "keyword_search",
		Description: "Search indexed documentation for literal words. Works while the semantic index is still building.",
	}, s.keywordSearch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "semantic_search",
		Description: "Find documentation by meaning using embedding similarity. Falls back to keyword search when the index is not ready or the embedding backend is unavailable.",
	}, s.semanticSearch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_status",
		Description: "Report how many documents are indexed and whether background indexing has finished.",
	}, s.indexStatus)
}

// instrument wraps a tool body with active-request and invocation metrics.
func (s *Server) instrument(ctx context.Context, tool string) func(err error) {
	start := time.Now()
	s.metrics.IncrementActive(ctx, tool)
	return func(err error) {
		s.metrics.DecrementActive(ctx, tool)
		s.metrics.RecordInvocation(ctx, tool, time.Since(start), err)
	}
}

func (s *Server) keywordSearch(ctx context.Context, req *mcp.CallToolRequest, args keywordSearchInput) (*mcp.CallToolResult, keywordSearchOutput, error) {
	done := s.instrument(ctx, "keyword_search")
	if args.Query == "" {
		done(search.ErrEmptyQuery)
		return nil, keywordSearchOutput{}, search.ErrEmptyQuery
	}

	hits := s.search.Keyword(args.Query, args.Limit)
	done(nil)
	return nil, keywordSearchOutput{
		Query:   args.Query,
		Results: hits,
		Count:   len(hits),
	}, nil
}

func (s *Server) semanticSearch(ctx context.Context, req *mcp.CallToolRequest, args semanticSearchInput) (*mcp.CallToolResult, semanticSearchOutput, error) {
	done := s.instrument(ctx, "semantic_search")

	out := semanticSearchOutput{Query: args.Query, Results: []searchHit{}}
	reason := ""

	if !s.search.Status().Ready {
		reason = FallbackNotReady
	} else {
		results, err := s.search.Semantic(ctx, args.Query, search.SemanticOptions{
			TopK:     args.TopK,
			MinScore: args.MinScore,
		})
		switch {
		case errors.Is(err, search.ErrEmptyQuery):
			done(err)
			return nil, semanticSearchOutput{}, err
		case errors.Is(err, docstore.ErrDimensionMismatch):
			s.logger.Error("semantic search rejected: embedding dimension differs from indexed documents",
				zap.String("query", args.Query), zap.Error(err))
			done(err)
			return nil, semanticSearchOutput{}, err
		case err != nil:
			s.logger.Warn("semantic search failed, using keyword search",
				zap.String("query", args.Query), zap.Error(err))
			reason = FallbackEmbeddingError
		case len(results) == 0:
			reason = FallbackNoMatch
		default:
			for _, r := range results {
				out.Results = append(out.Results, searchHit{ID: r.ID, Score: r.Score})
			}
		}
	}

	if reason == "" {
		out.Source = SourceSemantic
	} else {
		if args.Query == "" {
			done(search.ErrEmptyQuery)
			return nil, semanticSearchOutput{}, search.ErrEmptyQuery
		}
		s.metrics.RecordFallback(ctx, reason)
		out.Source = SourceKeyword
		out.FallbackReason = reason
		for _, h := range s.search.Keyword(args.Query, args.TopK) {
			out.Results = append(out.Results, searchHit{ID: h.ID, Score: float64(h.Score), Matches: h.Matches})
		}
	}

	out.Count = len(out.Results)
	done(nil)
	return nil, out, nil
}

func (s *Server) indexStatus(ctx context.Context, req *mcp.CallToolRequest, args indexStatusInput) (*mcp.CallToolResult, search.Status, error) {
	done := s.instrument(ctx, "index_status")
	st := s.search.Status()
	done(nil)
	return nil, st, nil
}
