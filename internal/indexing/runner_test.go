package indexing

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/fyrsmithlabs/docsearch/internal/docstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_Lifecycle(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "apple")
	writeFile(t, root, "docs/b.md", "banana")

	store := docstore.New()
	metrics := NewMetrics(prometheus.NewRegistry())
	p := NewPipeline(fruitEmbedder(), store, Options{Root: root})
	r := NewRunner(p, DiscoverSource(root, DiscoverOptions{Extensions: []string{".md"}}), nil, metrics)

	assert.Equal(t, StateNotStarted, r.State())
	assert.Nil(t, r.Result())
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.state))

	r.Start(context.Background())
	r.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := r.Wait(ctx)
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, r.State())
	assert.Equal(t, 2, res.Indexed)
	assert.Same(t, res, r.Result())
	assert.Equal(t, 2, store.Count())
	assert.Equal(t, float64(StateCompleted), testutil.ToFloat64(metrics.state))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runs), "second Start is a no-op")

	select {
	case <-r.Done():
	default:
		t.Fatal("Done should be closed")
	}
}

func TestRunner_SourceError(t *testing.T) {
	p := NewPipeline(fruitEmbedder(), docstore.New(), Options{})
	r := NewRunner(p, DiscoverSource(filepath.Join(t.TempDir(), "missing"), DiscoverOptions{}), nil, nil)

	r.Start(context.Background())
	<-r.Done()

	assert.Equal(t, StateCompleted, r.State())
	assert.Error(t, r.Err())
	require.NotNil(t, r.Result())
	assert.Zero(t, r.Result().Indexed)
}

func TestRunner_Stop(t *testing.T) {
	root := t.TempDir()
	var paths []string
	for _, name := range []string{"a.md", "b.md", "c.md"} {
		paths = append(paths, writeFile(t, root, name, "apple"))
	}
	embedder := fruitEmbedder()
	embedder.Delay = 100 * time.Millisecond
	p := NewPipeline(embedder, docstore.New(), Options{Root: root, Concurrency: 1})
	r := NewRunner(p, StaticSource(paths...), nil, nil)

	r.Stop()
	assert.Equal(t, StateNotStarted, r.State(), "Stop before Start is a no-op")

	r.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	r.Stop()

	assert.Equal(t, StateCompleted, r.State())
	res := r.Result()
	require.NotNil(t, res)
	assert.True(t, res.Cancelled)
	assert.Equal(t, 1, res.Indexed)
	assert.Equal(t, 2, res.Skipped)
}

func TestRunner_WaitContext(t *testing.T) {
	p := NewPipeline(fruitEmbedder(), docstore.New(), Options{})
	r := NewRunner(p, func(ctx context.Context) ([]string, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, nil, nil)
	r.Start(context.Background())
	defer r.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := r.Wait(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, StateInProgress, r.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "not_started", StateNotStarted.String())
	assert.Equal(t, "in_progress", StateInProgress.String())
	assert.Equal(t, "completed", StateCompleted.String())
	assert.Equal(t, "unknown", State(9).String())
}
