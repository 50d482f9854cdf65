package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "bad format", mutate: func(c *Config) { c.Format = "text" }, wantErr: "format"},
		{name: "no outputs", mutate: func(c *Config) { c.Output.Stdout = false }, wantErr: "output"},
		{name: "zero tick", mutate: func(c *Config) { c.Sampling.Tick = 0 }, wantErr: "tick"},
		{name: "bad pattern", mutate: func(c *Config) { c.Redaction.Patterns = []string{"("} }, wantErr: "invalid redaction"},
		{name: "empty field value", mutate: func(c *Config) { c.Fields["env"] = "" }, wantErr: "empty value"},
		{name: "negative skip", mutate: func(c *Config) { c.Caller.Skip = -1 }, wantErr: "caller skip"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLevelFromString(t *testing.T) {
	lvl, err := LevelFromString("trace")
	assert.NoError(t, err)
	assert.Equal(t, TraceLevel, lvl)

	lvl, err = LevelFromString(" WARN ")
	assert.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, lvl)

	_, err = LevelFromString("loud")
	assert.Error(t, err)
}
