package indexing

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func rels(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, Identifier(root, p))
	}
	return out
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "README.md", "# readme")
	writeFile(t, root, "docs/guide.MD", "guide")
	writeFile(t, root, "src/Program.cs", "class Program {}")
	writeFile(t, root, "src/notes.txt", "not indexed")
	writeFile(t, root, "node_modules/pkg/README.md", "dependency")
	writeFile(t, root, ".git/HEAD.md", "vcs")
	writeFile(t, root, "drafts/wip.md", "draft")
	writeFile(t, root, "docs/old/legacy.md", "legacy")

	paths, err := Discover(context.Background(), root, DiscoverOptions{
		Extensions: []string{".md", ".cs"},
		Exclude:    []string{"drafts/", "old"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"README.md", "docs/guide.MD", "src/Program.cs"}, rels(t, root, paths))
}

func TestDiscover_IgnoreFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".docsearchignore", "# generated\n*.generated.md\n")
	writeFile(t, root, "a.md", "a")
	writeFile(t, root, "api.generated.md", "generated")

	paths, err := Discover(context.Background(), root, DiscoverOptions{
		Extensions:  []string{".md"},
		IgnoreFiles: []string{".docsearchignore"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md"}, rels(t, root, paths))
}

func TestDiscover_AllExtensionsWhenUnset(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b.txt", "b")
	writeFile(t, root, "a.md", "a")

	paths, err := Discover(context.Background(), root, DiscoverOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "b.txt"}, rels(t, root, paths))
}

func TestDiscover_InvalidRoot(t *testing.T) {
	_, err := Discover(context.Background(), filepath.Join(t.TempDir(), "missing"), DiscoverOptions{})
	assert.Error(t, err)

	file := writeFile(t, t.TempDir(), "f.md", "x")
	_, err = Discover(context.Background(), file, DiscoverOptions{})
	assert.ErrorContains(t, err, "not a directory")
}

func TestDiscover_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Discover(ctx, root, DiscoverOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIdentifier(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name string
		root string
		path string
		want string
	}{
		{"nested", root, filepath.Join(root, "docs", "a.md"), "docs/a.md"},
		{"top level", root, filepath.Join(root, "a.md"), "a.md"},
		{"outside root", root, filepath.Join(t.TempDir(), "x", "b.md"), "b.md"},
		{"no root", "", filepath.Join(root, "c.md"), "c.md"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Identifier(tt.root, tt.path))
		})
	}
}
