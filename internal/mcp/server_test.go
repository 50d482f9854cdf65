package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/fyrsmithlabs/docsearch/internal/docstore"
	"github.com/fyrsmithlabs/docsearch/internal/embeddings"
	"github.com/fyrsmithlabs/docsearch/internal/search"
	"github.com/fyrsmithlabs/docsearch/internal/telemetry"
)

func stubEmbedder() *embeddings.StubEmbedder {
	return embeddings.NewStubEmbedder(
		[]string{"apple", "orange", "citrus", "fruit", "salad"},
		[]string{"vector", "database"},
	)
}

func newTestServer(t *testing.T, e *embeddings.StubEmbedder, docs ...[2]string) (*Server, *telemetry.TestTelemetry) {
	t.Helper()
	store := docstore.New()
	for _, d := range docs {
		vec, err := e.Embed(context.Background(), d[1])
		require.NoError(t, err)
		require.NoError(t, store.Upsert(d[0], d[1], vec))
	}
	tel := telemetry.NewTestTelemetry()
	svc := search.NewService(store, e, search.Config{MinScore: search.DefaultMinScore})
	s, err := NewServer(&Config{Name: "docsearch-test", Version: "test", Meter: tel.Meter("mcp")}, svc)
	require.NoError(t, err)
	return s, tel
}

func fruitDocs() [][2]string {
	return [][2]string{
		{"fruit.md", "apples and oranges"},
		{"vectors.md", "vector databases"},
		{"salad.md", "fruit salad recipes"},
	}
}

func TestNewServer_RequiresSearch(t *testing.T) {
	_, err := NewServer(nil, nil)
	assert.Error(t, err)
}

func TestSemanticSearch_Semantic(t *testing.T) {
	s, _ := newTestServer(t, stubEmbedder(), fruitDocs()...)

	_, out, err := s.semanticSearch(context.Background(), nil, semanticSearchInput{Query: "citrus fruit"})
	require.NoError(t, err)

	assert.Equal(t, SourceSemantic, out.Source)
	assert.Empty(t, out.FallbackReason)
	require.Len(t, out.Results, 2)
	assert.Equal(t, "fruit.md", out.Results[0].ID)
	assert.Equal(t, "salad.md", out.Results[1].ID)
	assert.Equal(t, 2, out.Count)
}

func TestSemanticSearch_FallbackNotReady(t *testing.T) {
	e := stubEmbedder()
	s, tel := newTestServer(t, e)

	_, out, err := s.semanticSearch(context.Background(), nil, semanticSearchInput{Query: "fruit"})
	require.NoError(t, err)

	assert.Equal(t, SourceKeyword, out.Source)
	assert.Equal(t, FallbackNotReady, out.FallbackReason)
	assert.NotNil(t, out.Results)
	assert.Empty(t, out.Results)
	assert.Zero(t, e.Calls())

	m := tel.FindMetric(t, "docsearch.mcp.search.fallbacks_total")
	require.NotNil(t, m)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(1), sum.DataPoints[0].Value)
}

func TestSemanticSearch_FallbackEmbeddingError(t *testing.T) {
	e := stubEmbedder()
	s, _ := newTestServer(t, e, fruitDocs()...)
	e.FailOn("recipes", &embeddings.Error{Kind: embeddings.KindTransport, Provider: "stub"})

	_, out, err := s.semanticSearch(context.Background(), nil, semanticSearchInput{Query: "salad recipes"})
	require.NoError(t, err)

	assert.Equal(t, SourceKeyword, out.Source)
	assert.Equal(t, FallbackEmbeddingError, out.FallbackReason)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "salad.md", out.Results[0].ID)
	assert.Equal(t, 2.0, out.Results[0].Score)
	assert.Equal(t, []string{"fruit salad recipes"}, out.Results[0].Matches)
}

func TestSemanticSearch_FallbackNoMatch(t *testing.T) {
	s, _ := newTestServer(t, stubEmbedder(), fruitDocs()...)

	_, out, err := s.semanticSearch(context.Background(), nil, semanticSearchInput{Query: "oranges"})
	require.NoError(t, err)
	assert.Equal(t, SourceSemantic, out.Source)

	_, out, err = s.semanticSearch(context.Background(), nil, semanticSearchInput{Query: "recipes"})
	require.NoError(t, err)
	assert.Equal(t, SourceKeyword, out.Source)
	assert.Equal(t, FallbackNoMatch, out.FallbackReason)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "salad.md", out.Results[0].ID)
}

func TestSemanticSearch_EmptyQuery(t *testing.T) {
	s, _ := newTestServer(t, stubEmbedder(), fruitDocs()...)
	_, _, err := s.semanticSearch(context.Background(), nil, semanticSearchInput{Query: ""})
	assert.ErrorIs(t, err, search.ErrEmptyQuery)

	empty, _ := newTestServer(t, stubEmbedder())
	_, _, err = empty.semanticSearch(context.Background(), nil, semanticSearchInput{})
	assert.ErrorIs(t, err, search.ErrEmptyQuery)
}

func TestSemanticSearch_DimensionMismatchRejected(t *testing.T) {
	store := docstore.New()
	require.NoError(t, store.Upsert("fruit.md", "apples and oranges", []float32{1, 0, 0}))

	tel := telemetry.NewTestTelemetry()
	svc := search.NewService(store, stubEmbedder(), search.Config{MinScore: search.DefaultMinScore})
	s, err := NewServer(&Config{Name: "docsearch-test", Version: "test", Meter: tel.Meter("mcp")}, svc)
	require.NoError(t, err)

	_, out, err := s.semanticSearch(context.Background(), nil, semanticSearchInput{Query: "apple"})
	require.ErrorIs(t, err, docstore.ErrDimensionMismatch)
	assert.Empty(t, out.Source)
	assert.Empty(t, out.Results)

	assert.Zero(t, tel.CounterSum(t, "docsearch.mcp.search.fallbacks_total"))
	assert.NotNil(t, tel.FindMetric(t, "docsearch.mcp.tool.errors_total"))
	assert.Equal(t, "dimension_mismatch", categorizeError(err))
}

func TestKeywordSearch(t *testing.T) {
	s, tel := newTestServer(t, stubEmbedder(), fruitDocs()...)

	_, out, err := s.keywordSearch(context.Background(), nil, keywordSearchInput{Query: "fruit"})
	require.NoError(t, err)
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "salad.md", out.Results[0].ID)

	_, _, err = s.keywordSearch(context.Background(), nil, keywordSearchInput{})
	assert.ErrorIs(t, err, search.ErrEmptyQuery)

	m := tel.FindMetric(t, "docsearch.mcp.tool.errors_total")
	require.NotNil(t, m)
}

func TestIndexStatus(t *testing.T) {
	s, _ := newTestServer(t, stubEmbedder(), fruitDocs()...)

	_, st, err := s.indexStatus(context.Background(), nil, indexStatusInput{})
	require.NoError(t, err)
	assert.Equal(t, 3, st.Documents)
	assert.True(t, st.Ready)
	assert.Equal(t, 2, st.Dimension)
}

func connect(t *testing.T, s *Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	clientTransport, serverTransport := mcp.NewInMemoryTransports()

	ss, err := s.mcp.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func TestServer_RoundTrip(t *testing.T) {
	s, _ := newTestServer(t, stubEmbedder(), fruitDocs()...)
	cs := connect(t, s)
	ctx := context.Background()

	tools, err := cs.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"keyword_search", "semantic_search", "index_status"}, names)

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "semantic_search",
		Arguments: map[string]any{"query": "citrus fruit", "top_k": 1},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.NotEmpty(t, res.Content)

	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	var out semanticSearchOutput
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	assert.Equal(t, SourceSemantic, out.Source)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "fruit.md", out.Results[0].ID)

	res, err = cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "keyword_search",
		Arguments: map[string]any{"query": ""},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
