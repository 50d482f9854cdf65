// Package redact masks credentials in document content before it is
// embedded or stored.
package redact

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksRegexp "github.com/zricethezav/gitleaks/v8/regexp"
)

// ErrInvalidRegex indicates an allowlist pattern failed to compile.
var ErrInvalidRegex = errors.New("invalid regex pattern")

// Finding is one detected secret.
type Finding struct {
	RuleID      string
	Description string
	Line        int
	Match       string
}

// Redactor detects secrets with the gitleaks default rule set and replaces
// them with [REDACTED:rule-id] markers. It is safe for concurrent use.
type Redactor struct {
	mu       sync.Mutex
	detector *detect.Detector
	paths    []*regexp.Regexp
}

// New builds a Redactor. allow may be nil.
func New(allow *Allowlist) (*Redactor, error) {
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("loading detection rules: %w", err)
	}

	r := &Redactor{detector: detector}
	if allow == nil {
		return r, nil
	}

	global := &gitleaksConfig.Allowlist{Description: "docsearch corpus allowlist"}
	for _, pattern := range allow.Regexes {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidRegex, pattern, err)
		}
		global.Regexes = append(global.Regexes, (*gitleaksRegexp.Regexp)(re))
	}
	global.StopWords = append(global.StopWords, allow.StopWords...)
	detector.Config.Allowlists = append(detector.Config.Allowlists, global)

	for _, pattern := range allow.Paths {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidRegex, pattern, err)
		}
		r.paths = append(r.paths, re)
	}
	return r, nil
}

// Redact returns content with every detected secret masked. Files whose
// identifier matches an allowlisted path are returned unchanged.
func (r *Redactor) Redact(id, content string) (string, []Finding) {
	for _, re := range r.paths {
		if re.MatchString(id) {
			return content, nil
		}
	}

	r.mu.Lock()
	raw := r.detector.DetectString(content)
	r.mu.Unlock()

	if len(raw) == 0 {
		return content, nil
	}

	findings := make([]Finding, 0, len(raw))
	for _, f := range raw {
		if f.Secret == "" {
			continue
		}
		findings = append(findings, Finding{
			RuleID:      f.RuleID,
			Description: f.Description,
			Line:        f.StartLine,
			Match:       f.Secret,
		})
	}
	return replace(content, findings), findings
}

// replace masks longer secrets first so a secret that contains another is
// not split by the shorter marker.
func replace(content string, findings []Finding) string {
	sorted := make([]Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Match) > len(sorted[j].Match)
	})
	for _, f := range sorted {
		content = strings.ReplaceAll(content, f.Match, Marker(f.RuleID))
	}
	return content
}

// Marker is the text substituted for a secret found by rule.
func Marker(rule string) string {
	return "[REDACTED:" + rule + "]"
}
