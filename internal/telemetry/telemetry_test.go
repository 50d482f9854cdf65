package telemetry

import (
	"context"
	"testing"

	"github.com/fyrsmithlabs/docsearch/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"disabled ignores everything", func(c *Config) { c.Endpoint = "" }, false},
		{"enabled local insecure", func(c *Config) { c.Enabled = true }, false},
		{"insecure remote", func(c *Config) {
			c.Enabled = true
			c.Endpoint = "collector.example.com:4317"
		}, true},
		{"tls remote", func(c *Config) {
			c.Enabled = true
			c.Endpoint = "collector.example.com:4317"
			c.Insecure = false
		}, false},
		{"bad protocol", func(c *Config) {
			c.Enabled = true
			c.Protocol = "zipkin"
		}, true},
		{"bad sample rate", func(c *Config) {
			c.Enabled = true
			c.SampleRate = 1.5
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestIsLocalEndpoint(t *testing.T) {
	assert.True(t, isLocalEndpoint("localhost:4317"))
	assert.True(t, isLocalEndpoint("127.0.0.1:4318"))
	assert.True(t, isLocalEndpoint("[::1]:4317"))
	assert.True(t, isLocalEndpoint("http://localhost:4318"))
	assert.False(t, isLocalEndpoint("10.1.2.3:4317"))
	assert.False(t, isLocalEndpoint("otel.internal:4317"))
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.TelemetryConfig{
		Enabled:    true,
		Protocol:   "http",
		Endpoint:   "localhost:4318",
		Insecure:   true,
		SampleRate: 0.5,
	}, "1.2.3")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, ProtocolHTTP, cfg.Protocol)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.Equal(t, "docsearch", cfg.ServiceName)
	assert.NoError(t, cfg.Validate())
}

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)

	assert.False(t, tel.IsEnabled())
	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.Empty(t, tel.Degraded())
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.ServiceName = ""

	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestTestTelemetry_RecordsSpans(t *testing.T) {
	tt := NewTestTelemetry()

	_, span := tt.Tracer("test").Start(context.Background(), "search.semantic")
	span.End()

	tt.AssertSpanExists(t, "search.semantic")
}

func TestNilTelemetry(t *testing.T) {
	var tel *Telemetry
	assert.NotNil(t, tel.Tracer("x"))
	assert.False(t, tel.IsEnabled())
	assert.NoError(t, tel.Shutdown(context.Background()))
}
