package redact

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const openAIKey = "sk-proj-abc123def456ghi789jkl012mno345pqr678stu901xyz"

func TestRedact_NoSecrets(t *testing.T) {
	r, err := New(nil)
	require.NoError(t, err)

	content := "# Fruit\n\nApples and oranges are citrus adjacent.\n"
	out, findings := r.Redact("fruit.md", content)
	assert.Equal(t, content, out)
	assert.Empty(t, findings)
}

func TestRedact_MasksSecret(t *testing.T) {
	r, err := New(nil)
	require.NoError(t, err)

	content := "Configure the client:\n\n    const apiKey = \"" + openAIKey + "\"\n"
	out, findings := r.Redact("setup.md", content)

	require.NotEmpty(t, findings)
	assert.NotContains(t, out, openAIKey)
	assert.Contains(t, out, "[REDACTED:")
	assert.True(t, strings.HasPrefix(out, "Configure the client:"))
}

func TestRedact_AllowlistedPath(t *testing.T) {
	r, err := New(&Allowlist{Paths: []string{`^testdata/`}})
	require.NoError(t, err)

	content := "const apiKey = \"" + openAIKey + "\"\n"
	out, findings := r.Redact("testdata/fixture.md", content)
	assert.Equal(t, content, out)
	assert.Empty(t, findings)
}

func TestRedact_AllowlistedSecret(t *testing.T) {
	r, err := New(&Allowlist{Regexes: []string{`sk-proj-abc123`}})
	require.NoError(t, err)

	content := "const apiKey = \"" + openAIKey + "\"\n"
	out, _ := r.Redact("setup.md", content)
	assert.Contains(t, out, openAIKey)
}

func TestNew_InvalidPattern(t *testing.T) {
	_, err := New(&Allowlist{Paths: []string{`[`}})
	assert.ErrorIs(t, err, ErrInvalidRegex)
}

func TestReplace_LongestFirst(t *testing.T) {
	out := replace("token=abcdef short=abc", []Finding{
		{RuleID: "short", Match: "abc"},
		{RuleID: "long", Match: "abcdef"},
	})
	assert.Equal(t, "token=[REDACTED:long] short=[REDACTED:short]", out)
}

func TestLoadAllowlist(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		allow, err := LoadAllowlist(t.TempDir())
		require.NoError(t, err)
		assert.Empty(t, allow.Paths)
		assert.Empty(t, allow.Regexes)
	})

	t.Run("parses allowlist table", func(t *testing.T) {
		root := t.TempDir()
		doc := "[allowlist]\npaths = ['''^examples/''']\nregexes = ['''EXAMPLE''']\nstopwords = [\"dummy\"]\n"
		require.NoError(t, os.WriteFile(filepath.Join(root, AllowlistFile), []byte(doc), 0o600))

		allow, err := LoadAllowlist(root)
		require.NoError(t, err)
		assert.Equal(t, []string{"^examples/"}, allow.Paths)
		assert.Equal(t, []string{"EXAMPLE"}, allow.Regexes)
		assert.Equal(t, []string{"dummy"}, allow.StopWords)
	})

	t.Run("invalid toml", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(root, AllowlistFile), []byte("[allowlist\n"), 0o600))

		_, err := LoadAllowlist(root)
		assert.ErrorIs(t, err, ErrInvalidTOML)
	})

	t.Run("invalid regex", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(root, AllowlistFile), []byte("[allowlist]\nregexes = ['''(''']\n"), 0o600))

		_, err := LoadAllowlist(root)
		assert.ErrorIs(t, err, ErrInvalidRegex)
	})
}
