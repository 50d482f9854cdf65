package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newBufferLogger(t *testing.T, mutate func(*Config)) (*Logger, *bytes.Buffer) {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.Sampling.Enabled = false
	cfg.Caller.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}
	var buf bytes.Buffer
	l, err := newLogger(cfg, &buf, nil)
	require.NoError(t, err)
	return l, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestNewLogger_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "xml"

	_, err := NewLogger(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "format")
}

func TestLogger_WritesJSONWithConstantFields(t *testing.T) {
	l, buf := newBufferLogger(t, nil)

	l.Info(context.Background(), "document indexed", zap.String("id", "docs/a.md"))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "document indexed", lines[0]["msg"])
	assert.Equal(t, "docs/a.md", lines[0]["id"])
	assert.Equal(t, "docsearch", lines[0]["service"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(t, func(c *Config) { c.Level = zapcore.WarnLevel })

	ctx := context.Background()
	l.Debug(ctx, "hidden")
	l.Info(ctx, "hidden too")
	l.Warn(ctx, "visible")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "visible", lines[0]["msg"])
	assert.False(t, l.Enabled(zapcore.InfoLevel))
}

func TestLogger_RedactsSensitiveFields(t *testing.T) {
	l, buf := newBufferLogger(t, nil)

	l.Info(context.Background(), "backend configured",
		zap.String("api_key", "abc123"),
		zap.String("header", "Bearer abc.def"),
		zap.String("endpoint", "http://localhost:11434"),
	)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "[REDACTED]", lines[0]["api_key"])
	assert.Equal(t, "[REDACTED:pattern]", lines[0]["header"])
	assert.Equal(t, "http://localhost:11434", lines[0]["endpoint"])
	assert.NotContains(t, buf.String(), "abc123")
}

func TestLogger_ContextFieldsAttached(t *testing.T) {
	l, buf := newBufferLogger(t, nil)

	ctx := WithRunID(WithRequestID(context.Background(), "req-1"), "run-9")
	l.Named("indexer").With(zap.Int("worker", 2)).Info(ctx, "started")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "req-1", lines[0]["request.id"])
	assert.Equal(t, "run-9", lines[0]["index.run_id"])
	assert.Equal(t, "indexer", lines[0]["logger"])
	assert.EqualValues(t, 2, lines[0]["worker"])
}

func TestLogger_TraceLevel(t *testing.T) {
	tl := NewTestLogger()

	tl.Trace(context.Background(), "file read", zap.Int("bytes", 10))

	tl.AssertLogged(t, TraceLevel, "file read")
	tl.AssertField(t, "file read", "bytes", int64(10))
}

func TestWrap_Nil(t *testing.T) {
	l := Wrap(nil)
	require.NotNil(t, l)
	l.Info(context.Background(), "discarded")
	assert.NoError(t, l.Sync())
}
