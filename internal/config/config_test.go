package config

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.1, cfg.Search.MinScore)
	assert.Equal(t, 10, cfg.Search.TopK)
	assert.Equal(t, []string{".md", ".cs"}, cfg.Corpus.Extensions)
	assert.Equal(t, "127.0.0.1:9191", cfg.Server.Addr())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown provider", func(c *Config) { c.Embeddings.Provider = "cohere" }, "unknown embeddings.provider"},
		{"azure without key", func(c *Config) { c.Embeddings.Provider = ProviderAzure }, "api_key is required"},
		{"relative base url", func(c *Config) { c.Embeddings.BaseURL = "localhost" }, "base_url"},
		{"zero concurrency", func(c *Config) { c.Indexing.Concurrency = 0 }, "indexing.concurrency"},
		{"min score too high", func(c *Config) { c.Search.MinScore = 1 }, "search.min_score"},
		{"no extensions", func(c *Config) { c.Corpus.Extensions = nil }, "corpus.extensions"},
		{"bad telemetry protocol", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.Protocol = "udp"
		}, "telemetry.protocol"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSecret_NeverPrinted(t *testing.T) {
	s := Secret("sk-live-123")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.NotContains(t, fmt.Sprintf("%#v", s), "sk-live")
	assert.Equal(t, "sk-live-123", s.Value())

	b, err := json.Marshal(struct {
		Key Secret `json:"key"`
	}{s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"[REDACTED]"}`, string(b))

	assert.Equal(t, "", Secret("").String())
	assert.False(t, Secret("").IsSet())
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-5s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
