package indexing

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/fyrsmithlabs/docsearch/internal/logging"
	"go.uber.org/zap"
)

// DefaultDebounce coalesces bursts of writes to the same file.
const DefaultDebounce = 500 * time.Millisecond

// Watcher re-indexes corpus files when they are created or written.
// Removed files are logged only; their records stay in the store.
type Watcher struct {
	pipeline *Pipeline
	root     string
	filter   *corpusFilter
	debounce time.Duration
	logger   *logging.Logger
	fsw      *fsnotify.Watcher

	mu       sync.Mutex
	pending  map[string]*time.Timer
	running  bool
	inflight sync.WaitGroup

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewWatcher creates a watcher for root.
func NewWatcher(pipeline *Pipeline, root string, opts DiscoverOptions, debounce time.Duration, logger *logging.Logger) (*Watcher, error) {
	root = filepath.Clean(root)
	if err := checkRoot(root); err != nil {
		return nil, err
	}
	filter, err := newCorpusFilter(root, opts)
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = logging.Nop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	return &Watcher{
		pipeline: pipeline,
		root:     root,
		filter:   filter,
		debounce: debounce,
		logger:   logger.Named("watcher"),
		fsw:      fsw,
		pending:  make(map[string]*time.Timer),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start watches root and its corpus directories in the background.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addTree(w.root); err != nil {
		return err
	}
	w.logger.Info(ctx, "watching corpus",
		zap.String("root", w.root), zap.Int("directories", len(w.fsw.WatchList())))

	go w.processEvents(ctx)
	return nil
}

// Stop ends watching, cancels pending re-indexes and waits for any
// re-index already running.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	_ = w.fsw.Close()
	w.inflight.Wait()
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.root && w.filter.skipDir(p) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
		return nil
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ctx, event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn(ctx, "watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	switch {
	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			if event.Has(fsnotify.Create) && !w.filter.skipDir(event.Name) {
				if err := w.addTree(event.Name); err != nil {
					w.logger.Warn(ctx, "watching new directory failed",
						zap.String("path", event.Name), zap.Error(err))
				}
			}
			return
		}
		if w.filter.accept(event.Name) {
			w.schedule(ctx, event.Name)
		}
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		if w.filter.accept(event.Name) {
			w.logger.Info(ctx, "document removed from corpus; record retained",
				zap.String("id", w.pipeline.Identifier(event.Name)))
		}
	}
}

func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		if !w.running {
			w.mu.Unlock()
			return
		}
		delete(w.pending, path)
		w.inflight.Add(1)
		w.mu.Unlock()
		defer w.inflight.Done()

		if err := w.pipeline.IndexFile(ctx, path); err != nil {
			w.logger.Debug(ctx, "re-index failed",
				zap.String("path", path), zap.Error(err))
			return
		}
		w.logger.Debug(ctx, "document re-indexed",
			zap.String("id", w.pipeline.Identifier(path)))
	})
}
