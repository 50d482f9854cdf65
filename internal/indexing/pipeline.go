// Package indexing reads corpus files, embeds them and fills the
// document store.
package indexing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/fyrsmithlabs/docsearch/internal/embeddings"
	"github.com/fyrsmithlabs/docsearch/internal/logging"
	"github.com/fyrsmithlabs/docsearch/internal/redact"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrFileTooLarge rejects files above the configured size limit.
	ErrFileTooLarge = errors.New("file exceeds size limit")
	// ErrNotText rejects files that are not valid UTF-8.
	ErrNotText = errors.New("file is not valid UTF-8 text")
	// ErrEmptyDocument rejects files with no non-whitespace content.
	ErrEmptyDocument = errors.New("document is empty")
)

// Stage names the step at which a file failed.
type Stage string

const (
	StageRead  Stage = "read"
	StageEmbed Stage = "embed"
	StageStore Stage = "store"
)

// FileError records one file that could not be indexed.
type FileError struct {
	Path  string `json:"path"`
	ID    string `json:"id"`
	Stage Stage  `json:"stage"`
	Err   error  `json:"-"`
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Path, e.Err)
}

func (e FileError) Unwrap() error {
	return e.Err
}

// Result summarizes an indexing run.
type Result struct {
	RunID     string        `json:"run_id"`
	Total     int           `json:"total"`
	Indexed   int           `json:"indexed"`
	Skipped   int           `json:"skipped"`
	Failures  []FileError   `json:"failures"`
	Cancelled bool          `json:"cancelled"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Store receives indexed documents.
type Store interface {
	Upsert(id, content string, embedding []float32) error
}

// Redactor masks secrets in document content.
type Redactor interface {
	Redact(id, content string) (string, []redact.Finding)
}

// Options configures a Pipeline.
type Options struct {
	// Root is the corpus root used to derive identifiers.
	Root string
	// Concurrency bounds in-flight files. Defaults to 4.
	Concurrency int
	// MaxFileSize in bytes. Zero disables the check.
	MaxFileSize int64
	// EmbedTimeout bounds each embedding call once it has started,
	// including calls that outlive a cancelled run.
	EmbedTimeout time.Duration
	// Redactor, when set, runs on content before it is embedded or
	// stored.
	Redactor Redactor
	Logger   *logging.Logger
	Metrics  *Metrics
}

// Pipeline indexes files into a Store. It is safe for concurrent use.
type Pipeline struct {
	embedder embeddings.Embedder
	store    Store
	opts     Options
	logger   *logging.Logger
}

// NewPipeline creates a pipeline.
func NewPipeline(embedder embeddings.Embedder, store Store, opts Options) *Pipeline {
	if opts.Concurrency < 1 {
		opts.Concurrency = 4
	}
	if opts.EmbedTimeout <= 0 {
		opts.EmbedTimeout = embeddings.DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Pipeline{
		embedder: embedder,
		store:    store,
		opts:     opts,
		logger:   logger.Named("indexing"),
	}
}

// Identifier returns the document identifier for path.
func (p *Pipeline) Identifier(path string) string {
	return Identifier(p.opts.Root, path)
}

// IndexAll indexes paths with bounded concurrency. A file that fails is
// recorded and skipped; the run never aborts. When ctx is cancelled no
// further files are scheduled, files already in flight finish, and the
// rest are counted as skipped.
func (p *Pipeline) IndexAll(ctx context.Context, paths []string) *Result {
	res := &Result{
		RunID:     uuid.NewString(),
		Total:     len(paths),
		Failures:  []FileError{},
		StartedAt: time.Now(),
	}
	ctx = logging.WithRunID(ctx, res.RunID)

	p.logger.Info(ctx, "indexing started",
		zap.Int("files", len(paths)),
		zap.Int("concurrency", p.opts.Concurrency))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	jobs := make(chan string)

	for i := 0; i < p.opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				ferr := p.indexFile(ctx, path)
				mu.Lock()
				if ferr != nil {
					res.Failures = append(res.Failures, *ferr)
				} else {
					res.Indexed++
				}
				mu.Unlock()
			}
		}()
	}

	scheduled := 0
schedule:
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		select {
		case jobs <- path:
			scheduled++
		case <-ctx.Done():
			break schedule
		}
	}
	close(jobs)
	wg.Wait()

	res.Skipped = len(paths) - scheduled
	res.Cancelled = res.Skipped > 0
	res.Duration = time.Since(res.StartedAt)

	p.opts.Metrics.skipped(res.Skipped)
	p.opts.Metrics.runFinished(res.Duration)

	fields := []zap.Field{
		zap.Int("indexed", res.Indexed),
		zap.Int("failed", len(res.Failures)),
		zap.Int("skipped", res.Skipped),
		zap.Duration("duration", res.Duration),
	}
	if res.Cancelled {
		p.logger.Warn(ctx, "indexing cancelled", fields...)
	} else {
		p.logger.Info(ctx, "indexing completed", fields...)
	}
	return res
}

// IndexFile indexes a single file.
func (p *Pipeline) IndexFile(ctx context.Context, path string) error {
	if ferr := p.indexFile(ctx, path); ferr != nil {
		return *ferr
	}
	return nil
}

func (p *Pipeline) indexFile(ctx context.Context, path string) *FileError {
	id := p.Identifier(path)
	fail := func(stage Stage, err error) *FileError {
		p.opts.Metrics.failed(stage)
		return &FileError{Path: path, ID: id, Stage: stage, Err: err}
	}

	content, err := p.read(path)
	if err != nil {
		p.logger.Warn(ctx, "skipping unreadable document",
			zap.String("path", path), zap.Error(err))
		return fail(StageRead, err)
	}

	if p.opts.Redactor != nil {
		var findings []redact.Finding
		content, findings = p.opts.Redactor.Redact(id, content)
		for _, f := range findings {
			p.opts.Metrics.redacted(f.RuleID)
		}
		if len(findings) > 0 {
			p.logger.Info(ctx, "secrets redacted from document",
				zap.String("id", id), zap.Int("count", len(findings)))
		}
	}

	// In-flight embeddings complete even when the run is cancelled.
	embedCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.EmbedTimeout)
	defer cancel()

	vec, err := p.embedder.Embed(embedCtx, content)
	if err != nil {
		if embeddings.IsPermanent(err) {
			p.logger.Error(ctx, "embedding rejected by backend; check embedding provider configuration",
				zap.String("id", id), zap.Error(err))
		} else {
			p.logger.Warn(ctx, "embedding failed, skipping document",
				zap.String("id", id), zap.Error(err))
		}
		return fail(StageEmbed, err)
	}

	if err := p.store.Upsert(id, content, vec); err != nil {
		p.logger.Error(ctx, "storing document failed",
			zap.String("id", id), zap.Int("dimension", len(vec)), zap.Error(err))
		return fail(StageStore, err)
	}

	p.opts.Metrics.indexed()
	p.logger.Trace(ctx, "document indexed",
		zap.String("id", id), zap.Int("bytes", len(content)))
	return nil
}

func (p *Pipeline) read(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if p.opts.MaxFileSize > 0 && info.Size() > p.opts.MaxFileSize {
		return "", fmt.Errorf("%w: %d bytes", ErrFileTooLarge, info.Size())
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ErrNotText
	}
	if strings.TrimSpace(string(b)) == "" {
		return "", ErrEmptyDocument
	}
	return string(b), nil
}
