package docstore

import (
	"fmt"
	"math"
	"sort"
)

// QueryResult is one ranked match.
type QueryResult struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// CosineSimilarity returns dot(a,b)/(|a||b|). A zero-magnitude vector
// yields 0. Callers must pass equal-length vectors.
func CosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / math.Sqrt(na*nb)
}

// Rank scores candidates against query, keeps those scoring strictly
// above minScore, orders them by descending score (ties keep candidate
// order) and truncates to topK, so at most topK results are returned. A
// negative topK is treated as zero.
//
// Any candidate whose length differs from the query fails the whole
// call with ErrDimensionMismatch.
func Rank(query []float32, candidates []Record, topK int, minScore float64) ([]QueryResult, error) {
	results := make([]QueryResult, 0, len(candidates))

	for _, c := range candidates {
		if len(c.Embedding) != len(query) {
			return nil, fmt.Errorf("%w: query has %d dimensions, %q has %d",
				ErrDimensionMismatch, len(query), c.ID, len(c.Embedding))
		}
		score := CosineSimilarity(query, c.Embedding)
		if score > minScore {
			results = append(results, QueryResult{ID: c.ID, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK < 0 {
		topK = 0
	}
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}
