package docstore

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unit returns a 2-d vector whose cosine with (1,0) is score.
func unit(score float64) []float32 {
	return []float32{float32(score), float32(math.Sqrt(1 - score*score))}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"scale invariant", []float32{1, 1}, []float32{5, 5}, 1},
		{"zero query", []float32{0, 0}, []float32{1, 1}, 0},
		{"zero document", []float32{1, 1}, []float32{0, 0}, 0},
		{"both zero", []float32{0, 0}, []float32{0, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			assert.False(t, math.IsNaN(got))
			assert.InDelta(t, tt.want, got, 1e-6)
		})
	}
}

func TestRank_ThresholdThenTruncate(t *testing.T) {
	candidates := []Record{
		{ID: "a", Embedding: unit(0.9)},
		{ID: "b", Embedding: unit(0.05)},
		{ID: "c", Embedding: unit(0.8)},
		{ID: "d", Embedding: unit(0.95)},
		{ID: "e", Embedding: unit(0.3)},
	}

	got, err := Rank([]float32{1, 0}, candidates, 3, 0.1)
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, []string{"d", "a", "c"}, ids(got))
	for _, r := range got {
		assert.Greater(t, r.Score, 0.1)
	}
	assert.InDelta(t, 0.95, got[0].Score, 1e-4)
}

func TestRank_ThresholdIsStrict(t *testing.T) {
	candidates := []Record{
		{ID: "exact", Embedding: []float32{0, 1}},
		{ID: "above", Embedding: []float32{1, 1}},
	}

	got, err := Rank([]float32{1, 0}, candidates, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"above"}, ids(got))
}

func TestRank_FewerThanTopKPassFloor(t *testing.T) {
	candidates := []Record{
		{ID: "a", Embedding: unit(0.5)},
		{ID: "b", Embedding: unit(0.05)},
	}

	got, err := Rank([]float32{1, 0}, candidates, 5, 0.1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(got))
}

func TestRank_Deterministic(t *testing.T) {
	candidates := []Record{
		{ID: "x", Embedding: []float32{1, 1}},
		{ID: "y", Embedding: []float32{2, 2}},
		{ID: "z", Embedding: []float32{1, 0}},
		{ID: "w", Embedding: []float32{3, 3}},
	}

	first, err := Rank([]float32{1, 1}, candidates, len(candidates), -1)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Rank([]float32{1, 1}, candidates, len(candidates), -1)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	// Ties keep candidate order.
	assert.Equal(t, []string{"x", "y", "w", "z"}, ids(first))
}

func TestRank_TopKBoundsLength(t *testing.T) {
	candidates := []Record{
		{ID: "a", Embedding: []float32{1, 0}},
		{ID: "b", Embedding: []float32{1, 0.5}},
		{ID: "c", Embedding: []float32{0, 1}},
	}

	tests := []struct {
		name string
		topK int
		want int
	}{
		{"zero", 0, 0},
		{"negative", -3, 0},
		{"one", 1, 1},
		{"above matches", 10, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Rank([]float32{1, 0}, candidates, tt.topK, 0.1)
			require.NoError(t, err)
			assert.NotNil(t, got)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestRank_ZeroVectors(t *testing.T) {
	candidates := []Record{
		{ID: "zero", Embedding: []float32{0, 0}},
		{ID: "one", Embedding: []float32{1, 0}},
	}

	got, err := Rank([]float32{0, 0}, candidates, 10, -1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, r := range got {
		assert.Equal(t, 0.0, r.Score)
	}
}

func TestRank_Empty(t *testing.T) {
	got, err := Rank([]float32{1, 0}, nil, 5, 0.1)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRank_DimensionMismatch(t *testing.T) {
	candidates := []Record{
		{ID: "ok", Embedding: []float32{1, 0}},
		{ID: "bad", Embedding: []float32{1, 0, 0}},
	}

	got, err := Rank([]float32{1, 0}, candidates, 5, 0)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Nil(t, got)
}

func ids(results []QueryResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}
