package indexing

import (
	"context"
	"sync"

	"github.com/fyrsmithlabs/docsearch/internal/logging"
	"go.uber.org/zap"
)

// State is the lifecycle of a background indexing run.
type State int32

const (
	StateNotStarted State = iota
	StateInProgress
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateInProgress:
		return "in_progress"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Source lists the files a run should index.
type Source func(ctx context.Context) ([]string, error)

// StaticSource always returns paths.
func StaticSource(paths ...string) Source {
	return func(context.Context) ([]string, error) {
		return paths, nil
	}
}

// DiscoverSource walks root on every run.
func DiscoverSource(root string, opts DiscoverOptions) Source {
	return func(ctx context.Context) ([]string, error) {
		return Discover(ctx, root, opts)
	}
}

// Runner executes a single indexing run in the background while the
// store keeps serving queries.
type Runner struct {
	pipeline *Pipeline
	source   Source
	logger   *logging.Logger
	metrics  *Metrics

	mu     sync.RWMutex
	state  State
	result *Result
	err    error
	cancel context.CancelFunc

	done chan struct{}
}

// NewRunner creates a runner in the NotStarted state.
func NewRunner(pipeline *Pipeline, source Source, logger *logging.Logger, metrics *Metrics) *Runner {
	if logger == nil {
		logger = logging.Nop()
	}
	metrics.setState(StateNotStarted)
	return &Runner{
		pipeline: pipeline,
		source:   source,
		logger:   logger.Named("runner"),
		metrics:  metrics,
		done:     make(chan struct{}),
	}
}

// Start launches the run and returns immediately. Calling Start again
// has no effect.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	if r.state != StateNotStarted {
		r.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.state = StateInProgress
	r.cancel = cancel
	r.mu.Unlock()

	r.metrics.setState(StateInProgress)
	go r.run(runCtx)
}

// Stop cancels an in-progress run and waits for it to wind down.
func (r *Runner) Stop() {
	r.mu.RLock()
	cancel := r.cancel
	r.mu.RUnlock()
	if cancel == nil {
		return
	}
	cancel()
	<-r.done
}

// Done is closed when the run completes.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run completes or ctx ends.
func (r *Runner) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-r.done:
		r.mu.RLock()
		defer r.mu.RUnlock()
		return r.result, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Result returns the completed run summary, or nil before completion.
func (r *Runner) Result() *Result {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.result
}

// Err returns the error that prevented the run from listing files.
func (r *Runner) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

func (r *Runner) run(ctx context.Context) {
	defer close(r.done)

	var (
		res *Result
		err error
	)
	paths, err := r.source(ctx)
	if err != nil {
		r.logger.Error(ctx, "listing corpus failed", zap.Error(err))
		res = &Result{Failures: []FileError{}, Cancelled: ctx.Err() != nil}
	} else {
		res = r.pipeline.IndexAll(ctx, paths)
	}

	r.mu.Lock()
	r.result = res
	r.err = err
	r.state = StateCompleted
	r.mu.Unlock()

	r.metrics.setState(StateCompleted)
}
