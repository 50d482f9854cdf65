package redact

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"

	"github.com/BurntSushi/toml"
)

// AllowlistFile is read from the corpus root when present.
const AllowlistFile = ".gitleaks.toml"

// ErrInvalidTOML indicates an allowlist file could not be parsed.
var ErrInvalidTOML = errors.New("invalid TOML format")

// Allowlist exempts content and documents from redaction.
type Allowlist struct {
	// Paths are regexes matched against document identifiers.
	Paths []string
	// Regexes are matched against detected secrets.
	Regexes []string
	// StopWords suppress findings containing any of the words.
	StopWords []string
}

// LoadAllowlist reads the [allowlist] table of root/.gitleaks.toml. A
// missing file yields an empty allowlist.
func LoadAllowlist(root string) (*Allowlist, error) {
	path := filepath.Join(root, AllowlistFile)

	var doc struct {
		Allowlist struct {
			Paths     []string `toml:"paths"`
			Regexes   []string `toml:"regexes"`
			StopWords []string `toml:"stopwords"`
		} `toml:"allowlist"`
	}
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Allowlist{}, nil
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTOML, path, err)
	}

	for _, group := range [][]string{doc.Allowlist.Paths, doc.Allowlist.Regexes} {
		for _, pattern := range group {
			if _, err := regexp.Compile(pattern); err != nil {
				return nil, fmt.Errorf("%w: %q in %s: %v", ErrInvalidRegex, pattern, path, err)
			}
		}
	}

	return &Allowlist{
		Paths:     doc.Allowlist.Paths,
		Regexes:   doc.Allowlist.Regexes,
		StopWords: doc.Allowlist.StopWords,
	}, nil
}
