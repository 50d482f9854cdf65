package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix         = "DOCSEARCH_"
	maxConfigFileSize = 1024 * 1024
	dotEnvFile        = ".env"
)

// backendAliases maps conventional provider variables onto config keys.
// They apply only to the selected provider and lose to both the config
// file and DOCSEARCH_* variables.
var backendAliases = map[string]map[string]string{
	ProviderOllama: {
		"OLLAMA_HOST": "embeddings.base_url",
	},
	ProviderAzure: {
		"AZURE_OPENAI_ENDPOINT":             "embeddings.base_url",
		"AZURE_OPENAI_API_KEY":              "embeddings.api_key",
		"AZURE_OPENAI_EMBEDDING_DEPLOYMENT": "embeddings.model",
		"AZURE_OPENAI_API_VERSION":          "embeddings.api_version",
	},
	ProviderOpenAI: {
		"OPENAI_BASE_URL": "embeddings.base_url",
		"OPENAI_API_KEY":  "embeddings.api_key",
	},
}

// LoadWithFile loads configuration. An empty configPath means
// ~/.config/docsearch/config.yaml; a missing file is not an error.
//
// The file must live under ~/.config/docsearch or /etc/docsearch, be
// owner-only readable (0600 or 0400) and at most 1MB.
//
// Environment variables use the DOCSEARCH_ prefix and split the section
// at the first underscore:
//
//	DOCSEARCH_SEARCH_MIN_SCORE   -> search.min_score
//	DOCSEARCH_EMBEDDINGS_BASE_URL -> embeddings.base_url
func LoadWithFile(configPath string) (*Config, error) {
	if err := loadDotEnv(dotEnvFile); err != nil {
		return nil, err
	}

	if configPath == "" {
		dir, err := userConfigDir()
		if err != nil {
			return nil, err
		}
		configPath = filepath.Join(dir, "config.yaml")
	}

	k := koanf.New(".")

	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}
	content, err := readConfigFile(configPath)
	if err != nil {
		return nil, err
	}
	if content != nil {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
		}
	}

	if err := applyBackendAliases(k); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	normalize(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps DOCSEARCH_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

func applyBackendAliases(k *koanf.Koanf) error {
	provider := os.Getenv(envPrefix + "EMBEDDINGS_PROVIDER")
	if provider == "" {
		provider = k.String("embeddings.provider")
	}
	if provider == "" {
		provider = Default().Embeddings.Provider
	}

	for name, key := range backendAliases[provider] {
		val, ok := os.LookupEnv(name)
		if !ok || val == "" || k.Exists(key) {
			continue
		}
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("applying %s: %w", name, err)
		}
	}
	return nil
}

// loadDotEnv reads path into the process environment without overriding
// variables that are already set. A missing file is ignored.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// readConfigFile returns nil content when the file does not exist. The
// file is validated through the open descriptor.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return content, nil
}

func userConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "docsearch"), nil
}

// EnsureConfigDir creates ~/.config/docsearch with 0700 permissions.
func EnsureConfigDir() error {
	dir, err := userConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return nil
}

func validateConfigPath(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	// Symlinks are followed so a link cannot escape the allowed roots.
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	userDir, err := userConfigDir()
	if err != nil {
		return err
	}
	for _, dir := range []string{userDir, "/etc/docsearch"} {
		if abs == dir || strings.HasPrefix(abs, dir+string(filepath.Separator)) {
			return nil
		}
	}
	return fmt.Errorf("config file must be in ~/.config/docsearch/ or /etc/docsearch/: %s", path)
}

func validateConfigFileProperties(info os.FileInfo) error {
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file")
	}
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0o600 && perm != 0o400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}

// normalize canonicalizes extension lists to lowercase with a leading dot.
func normalize(cfg *Config) {
	exts := make([]string, 0, len(cfg.Corpus.Extensions))
	for _, e := range cfg.Corpus.Extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts = append(exts, e)
	}
	cfg.Corpus.Extensions = exts

	base := strings.TrimRight(cfg.Embeddings.BaseURL, "/")
	// OLLAMA_HOST is commonly host:port without a scheme.
	if cfg.Embeddings.Provider == ProviderOllama && base != "" && !strings.Contains(base, "://") {
		base = "http://" + base
	}
	cfg.Embeddings.BaseURL = base
}
