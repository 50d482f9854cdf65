// Package docstore keeps indexed documents and their embeddings in memory
// and ranks them against a query vector.
package docstore

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrDimensionMismatch reports vectors of different lengths meeting in
	// one store or one ranking. It always indicates a configuration
	// problem, such as a model change mid-run.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInvalidRecord rejects records without an id or embedding.
	ErrInvalidRecord = errors.New("invalid record")
)

// Record is one indexed document.
type Record struct {
	ID        string
	Content   string
	Embedding []float32
}

// Store is a concurrency-safe in-memory document store. The first record
// fixes the embedding dimension for the lifetime of the store.
type Store struct {
	mu        sync.RWMutex
	records   []Record
	index     map[string]int
	dimension int
}

// New returns an empty store.
func New() *Store {
	return &Store{index: make(map[string]int)}
}

// Upsert inserts or replaces the record for id. The embedding is copied.
// A replaced record keeps its original position in AllRecords.
func (s *Store) Upsert(id, content string, embedding []float32) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidRecord)
	}
	if len(embedding) == 0 {
		return fmt.Errorf("%w: empty embedding for %q", ErrInvalidRecord, id)
	}

	rec := Record{
		ID:        id,
		Content:   content,
		Embedding: append([]float32(nil), embedding...),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimension != 0 && len(embedding) != s.dimension {
		return fmt.Errorf("%w: %q has %d dimensions, store has %d",
			ErrDimensionMismatch, id, len(embedding), s.dimension)
	}
	if s.dimension == 0 {
		s.dimension = len(embedding)
	}

	if i, ok := s.index[id]; ok {
		s.records[i] = rec
		return nil
	}
	s.index[id] = len(s.records)
	s.records = append(s.records, rec)
	return nil
}

// Get returns the record for id.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return Record{}, false
	}
	return s.records[i], true
}

// AllRecords returns a snapshot in first-insertion order. Records are
// replaced wholesale on upsert and never mutated, so the snapshot shares
// their embeddings.
func (s *Store) AllRecords() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Count returns the number of stored records.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Dimension returns the embedding length, or 0 while the store is empty.
func (s *Store) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

// IsReady reports whether at least one record has been stored.
func (s *Store) IsReady() bool {
	return s.Count() > 0
}
