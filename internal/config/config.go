// Package config loads docsearch configuration.
//
// Values are layered: built-in defaults, then a YAML file, then
// well-known backend variables (OLLAMA_HOST, AZURE_OPENAI_*,
// OPENAI_API_KEY), then DOCSEARCH_* environment variables. A .env file
// in the working directory is read first and never overrides variables
// already present in the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Embedding providers.
const (
	ProviderOllama = "ollama"
	ProviderAzure  = "azure"
	ProviderOpenAI = "openai"
)

// Config is the complete docsearch configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Corpus     CorpusConfig     `koanf:"corpus"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Indexing   IndexingConfig   `koanf:"indexing"`
	Search     SearchConfig     `koanf:"search"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// CorpusConfig describes the document tree to index.
type CorpusConfig struct {
	Root        string   `koanf:"root"`
	Extensions  []string `koanf:"extensions"`
	Exclude     []string `koanf:"exclude"`
	MaxFileSize int64    `koanf:"max_file_size"`
	Watch       bool     `koanf:"watch"`
}

// EmbeddingsConfig selects and configures the embedding backend.
//
// For azure, BaseURL is the resource endpoint and Model the deployment
// name.
type EmbeddingsConfig struct {
	Provider   string   `koanf:"provider"`
	BaseURL    string   `koanf:"base_url"`
	Model      string   `koanf:"model"`
	APIKey     Secret   `koanf:"api_key"`
	APIVersion string   `koanf:"api_version"`
	Timeout    Duration `koanf:"timeout"`
	RateLimit  float64  `koanf:"rate_limit"`
	Burst      int      `koanf:"burst"`
}

// IndexingConfig tunes the background indexer.
type IndexingConfig struct {
	Concurrency   int      `koanf:"concurrency"`
	WatchDebounce Duration `koanf:"watch_debounce"`
	// RedactSecrets masks credentials before content leaves the host.
	RedactSecrets bool `koanf:"redact_secrets"`
}

// SearchConfig holds query defaults.
type SearchConfig struct {
	TopK         int     `koanf:"top_k"`
	MinScore     float64 `koanf:"min_score"`
	KeywordLimit int     `koanf:"keyword_limit"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	Protocol    string  `koanf:"protocol"`
	Insecure    bool    `koanf:"insecure"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// LoggingConfig is the user-facing subset of logging options.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	OTEL   bool   `koanf:"otel"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            9191,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Corpus: CorpusConfig{
			Root:        ".",
			Extensions:  []string{".md", ".cs"},
			MaxFileSize: 1 << 20,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   ProviderOllama,
			BaseURL:    "http://localhost:11434",
			Model:      "nomic-embed-text",
			APIVersion: "2024-02-01",
			Timeout:    Duration(30 * time.Second),
			RateLimit:  10,
			Burst:      4,
		},
		Indexing: IndexingConfig{
			Concurrency:   4,
			WatchDebounce: Duration(500 * time.Millisecond),
			RedactSecrets: true,
		},
		Search: SearchConfig{
			TopK:         10,
			MinScore:     0.1,
			KeywordLimit: 20,
		},
		Telemetry: TelemetryConfig{
			Endpoint:    "localhost:4317",
			Protocol:    "grpc",
			Insecure:    true,
			ServiceName: "docsearch",
			SampleRate:  1.0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate reports the first problem found.
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port out of range: %d", c.Server.Port))
	}
	if c.Corpus.Root == "" {
		problems = append(problems, "corpus.root is required")
	}
	if len(c.Corpus.Extensions) == 0 {
		problems = append(problems, "corpus.extensions must not be empty")
	}
	if c.Corpus.MaxFileSize <= 0 {
		problems = append(problems, "corpus.max_file_size must be > 0")
	}

	switch c.Embeddings.Provider {
	case ProviderOllama, ProviderOpenAI:
	case ProviderAzure:
		if !c.Embeddings.APIKey.IsSet() {
			problems = append(problems, "embeddings.api_key is required for azure")
		}
		if c.Embeddings.APIVersion == "" {
			problems = append(problems, "embeddings.api_version is required for azure")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown embeddings.provider %q", c.Embeddings.Provider))
	}
	if u, err := url.Parse(c.Embeddings.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		problems = append(problems, fmt.Sprintf("embeddings.base_url is not an absolute URL: %q", c.Embeddings.BaseURL))
	}
	if c.Embeddings.Model == "" {
		problems = append(problems, "embeddings.model is required")
	}
	if c.Embeddings.Timeout <= 0 {
		problems = append(problems, "embeddings.timeout must be > 0")
	}
	if c.Embeddings.RateLimit < 0 {
		problems = append(problems, "embeddings.rate_limit must be >= 0")
	}

	if c.Indexing.Concurrency < 1 {
		problems = append(problems, "indexing.concurrency must be >= 1")
	}
	if c.Search.TopK < 1 {
		problems = append(problems, "search.top_k must be >= 1")
	}
	if c.Search.MinScore < -1 || c.Search.MinScore >= 1 {
		problems = append(problems, fmt.Sprintf("search.min_score must be in [-1, 1): %v", c.Search.MinScore))
	}

	if c.Telemetry.Enabled && c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http" {
		problems = append(problems, fmt.Sprintf("telemetry.protocol must be grpc or http: %q", c.Telemetry.Protocol))
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		problems = append(problems, fmt.Sprintf("logging.format must be json or console: %q", c.Logging.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
