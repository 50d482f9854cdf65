package docstore

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Empty(t *testing.T) {
	s := New()

	assert.False(t, s.IsReady())
	assert.Zero(t, s.Count())
	assert.Zero(t, s.Dimension())
	assert.Empty(t, s.AllRecords())

	_, ok := s.Get("missing")
	assert.False(t, ok)
}

func TestStore_UpsertIdempotent(t *testing.T) {
	s := New()

	require.NoError(t, s.Upsert("a.md", "apple", []float32{1, 0}))
	require.NoError(t, s.Upsert("a.md", "apple", []float32{1, 0}))

	assert.Equal(t, 1, s.Count())
	rec, ok := s.Get("a.md")
	require.True(t, ok)
	assert.Equal(t, Record{ID: "a.md", Content: "apple", Embedding: []float32{1, 0}}, rec)
	assert.True(t, s.IsReady())
}

func TestStore_UpsertOverwriteKeepsPosition(t *testing.T) {
	s := New()
	require.NoError(t, s.Upsert("a", "v1", []float32{1, 0}))
	require.NoError(t, s.Upsert("b", "b", []float32{0, 1}))
	require.NoError(t, s.Upsert("a", "v2", []float32{0.5, 0.5}))

	all := s.AllRecords()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, "v2", all[0].Content)
	assert.Equal(t, []float32{0.5, 0.5}, all[0].Embedding)
	assert.Equal(t, "b", all[1].ID)
}

func TestStore_CopiesEmbedding(t *testing.T) {
	s := New()
	vec := []float32{1, 2}
	require.NoError(t, s.Upsert("a", "", vec))

	vec[0] = 99
	rec, _ := s.Get("a")
	assert.Equal(t, float32(1), rec.Embedding[0])
}

func TestStore_DimensionMismatch(t *testing.T) {
	s := New()
	require.NoError(t, s.Upsert("a", "", []float32{1, 0, 0}))

	err := s.Upsert("b", "", []float32{1, 0})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, 1, s.Count())
	assert.Equal(t, 3, s.Dimension())

	// Replacing an existing id with the wrong size is rejected too.
	assert.ErrorIs(t, s.Upsert("a", "", []float32{1}), ErrDimensionMismatch)
	rec, _ := s.Get("a")
	assert.Len(t, rec.Embedding, 3)
}

func TestStore_InvalidRecord(t *testing.T) {
	s := New()
	assert.ErrorIs(t, s.Upsert("", "x", []float32{1}), ErrInvalidRecord)
	assert.ErrorIs(t, s.Upsert("a", "x", nil), ErrInvalidRecord)
	assert.False(t, s.IsReady())
}

func TestStore_ConcurrentUpsertAndRead(t *testing.T) {
	s := New()
	const writers, perWriter = 8, 50

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				id := fmt.Sprintf("doc-%d", i)
				assert.NoError(t, s.Upsert(id, "", []float32{float32(w), 1}))
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				for _, rec := range s.AllRecords() {
					assert.Len(t, rec.Embedding, 2)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, perWriter, s.Count())
}
