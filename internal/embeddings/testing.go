package embeddings

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// StubEmbedder is a deterministic Provider for tests. Each axis is a list
// of keywords; component i of a vector is the number of occurrences of
// axis i's keywords in the lowercased text.
type StubEmbedder struct {
	Axes [][]string
	// Delay is applied before every call.
	Delay time.Duration

	mu     sync.Mutex
	failOn map[string]error
	calls  atomic.Int64
}

// NewStubEmbedder creates a stub with the given topic axes.
func NewStubEmbedder(axes ...[]string) *StubEmbedder {
	return &StubEmbedder{Axes: axes, failOn: map[string]error{}}
}

// FailOn makes Embed return err for any text containing marker.
func (s *StubEmbedder) FailOn(marker string, err error) *StubEmbedder {
	s.mu.Lock()
	s.failOn[marker] = err
	s.mu.Unlock()
	return s
}

func (s *StubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	s.calls.Add(1)
	if text == "" {
		return nil, ErrEmptyInput
	}

	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return nil, &Error{Kind: KindTransport, Provider: s.Name(), Err: ctx.Err()}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, &Error{Kind: KindTransport, Provider: s.Name(), Err: err}
	}

	s.mu.Lock()
	for marker, err := range s.failOn {
		if strings.Contains(text, marker) {
			s.mu.Unlock()
			return nil, err
		}
	}
	s.mu.Unlock()

	lower := strings.ToLower(text)
	vec := make([]float32, len(s.Axes))
	for i, words := range s.Axes {
		for _, w := range words {
			vec[i] += float32(strings.Count(lower, strings.ToLower(w)))
		}
	}
	return vec, nil
}

// Calls returns how many times Embed was invoked.
func (s *StubEmbedder) Calls() int {
	return int(s.calls.Load())
}

func (s *StubEmbedder) Name() string  { return "stub" }
func (s *StubEmbedder) Model() string { return "stub-topics" }
func (s *StubEmbedder) Close() error  { return nil }
