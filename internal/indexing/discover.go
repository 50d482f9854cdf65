package indexing

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/docsearch/internal/ignore"
)

// skipDirs never contain documentation worth indexing.
var skipDirs = map[string]bool{
	".git":         true,
	".svn":         true,
	".hg":          true,
	"node_modules": true,
	"vendor":       true,
	"bin":          true,
	"obj":          true,
	".vs":          true,
	".idea":        true,
	".vscode":      true,
	"packages":     true,
	"dist":         true,
	"build":        true,
}

// DiscoverOptions filters the corpus walk.
type DiscoverOptions struct {
	// Extensions lists accepted file extensions, lowercase with a dot.
	Extensions []string
	// Exclude holds gitignore-style patterns relative to the root.
	Exclude []string
	// IgnoreFiles are read from the root and added to Exclude.
	IgnoreFiles []string
}

// Discover walks root and returns matching file paths in lexical order.
func Discover(ctx context.Context, root string, opts DiscoverOptions) ([]string, error) {
	root = filepath.Clean(root)
	if err := checkRoot(root); err != nil {
		return nil, err
	}
	filter, err := newCorpusFilter(root, opts)
	if err != nil {
		return nil, err
	}

	var paths []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == root {
			return nil
		}

		if d.IsDir() {
			if filter.skipDir(p) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && filter.accept(p) {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking corpus: %w", err)
	}

	sort.Strings(paths)
	return paths, nil
}

func checkRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("corpus root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("corpus root is not a directory: %s", root)
	}
	return nil
}

// corpusFilter decides which directories and files belong to the corpus.
type corpusFilter struct {
	root    string
	exts    map[string]bool
	matcher *ignore.Matcher
}

func newCorpusFilter(root string, opts DiscoverOptions) (*corpusFilter, error) {
	patterns := append([]string(nil), opts.Exclude...)
	if len(opts.IgnoreFiles) > 0 {
		fromFiles, err := ignore.ParseProject(root, opts.IgnoreFiles)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, fromFiles...)
	}
	matcher, err := ignore.NewMatcher(patterns)
	if err != nil {
		return nil, fmt.Errorf("exclude patterns: %w", err)
	}

	exts := make(map[string]bool, len(opts.Extensions))
	for _, e := range opts.Extensions {
		exts[strings.ToLower(e)] = true
	}
	return &corpusFilter{root: root, exts: exts, matcher: matcher}, nil
}

func (f *corpusFilter) skipDir(p string) bool {
	if skipDirs[filepath.Base(p)] {
		return true
	}
	rel, ok := relativeTo(f.root, p)
	return ok && f.matcher.Match(rel, true)
}

func (f *corpusFilter) accept(p string) bool {
	if len(f.exts) > 0 && !f.exts[strings.ToLower(filepath.Ext(p))] {
		return false
	}
	rel, ok := relativeTo(f.root, p)
	if !ok {
		return false
	}
	for dir := filepath.Dir(rel); dir != "."; dir = filepath.Dir(dir) {
		if f.skipDir(filepath.Join(f.root, dir)) {
			return false
		}
	}
	return !f.matcher.Match(rel, false)
}

// Identifier derives the document identifier for path: the slash
// separated path relative to root, or the base name when path lies
// outside root.
func Identifier(root, path string) string {
	if rel, ok := relativeTo(root, path); ok {
		return filepath.ToSlash(rel)
	}
	return filepath.Base(path)
}

func relativeTo(root, path string) (string, bool) {
	if root == "" {
		return "", false
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}
