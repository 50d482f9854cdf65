// Package ignore reads gitignore-style exclusion files and matches corpus
// paths against them.
package ignore

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DefaultFiles are read from the corpus root when present.
var DefaultFiles = []string{".docsearchignore", ".gitignore"}

// ParseProject reads the named ignore files from root and returns their
// patterns in order, without duplicates. Missing files are skipped.
func ParseProject(root string, files []string) ([]string, error) {
	var patterns []string
	for _, name := range files {
		p, err := parseFile(filepath.Join(root, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		patterns = append(patterns, p...)
	}
	return deduplicate(patterns), nil
}

func parseFile(name string) ([]string, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \t")
		// Negations are not supported and are dropped.
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns, sc.Err()
}

func deduplicate(patterns []string) []string {
	seen := make(map[string]struct{}, len(patterns))
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

type rule struct {
	segments []string
	dirOnly  bool
}

// Matcher tests slash-separated paths relative to the corpus root.
//
// Pattern syntax follows gitignore: a leading "/" anchors to the root, a
// trailing "/" matches directories only, a pattern without "/" matches at
// any depth, and "**" spans any number of path segments.
type Matcher struct {
	rules []rule
}

// NewMatcher compiles patterns. It fails on malformed globs.
func NewMatcher(patterns []string) (*Matcher, error) {
	m := &Matcher{}
	for _, p := range patterns {
		r, err := compile(p)
		if err != nil {
			return nil, err
		}
		if r != nil {
			m.rules = append(m.rules, *r)
		}
	}
	return m, nil
}

func compile(pattern string) (*rule, error) {
	p := strings.TrimSpace(filepath.ToSlash(pattern))
	if p == "" {
		return nil, nil
	}

	r := &rule{}
	if strings.HasSuffix(p, "/") {
		r.dirOnly = true
		p = strings.TrimRight(p, "/")
	}
	anchored := strings.HasPrefix(p, "/")
	p = strings.TrimPrefix(p, "/")
	if !anchored && !strings.Contains(p, "/") {
		p = "**/" + p
	}

	r.segments = strings.Split(p, "/")
	for _, seg := range r.segments {
		if seg == "**" {
			continue
		}
		if _, err := path.Match(seg, ""); err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
	}
	return r, nil
}

// Match reports whether rel is excluded.
func (m *Matcher) Match(rel string, isDir bool) bool {
	if m == nil || len(m.rules) == 0 {
		return false
	}
	parts := strings.Split(strings.Trim(filepath.ToSlash(rel), "/"), "/")
	for _, r := range m.rules {
		if r.dirOnly && !isDir {
			continue
		}
		if matchSegments(r.segments, parts) {
			return true
		}
	}
	return false
}

// Len returns the number of compiled rules.
func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.rules)
}

func matchSegments(pattern, parts []string) bool {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			rest := pattern[1:]
			for i := 0; i <= len(parts); i++ {
				if matchSegments(rest, parts[i:]) {
					return true
				}
			}
			return false
		}
		if len(parts) == 0 {
			return false
		}
		if ok, _ := path.Match(pattern[0], parts[0]); !ok {
			return false
		}
		pattern, parts = pattern[1:], parts[1:]
	}
	return len(parts) == 0
}
