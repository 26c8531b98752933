package discovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docindex/pkg/types"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func collect(t *testing.T, ctx context.Context, root string, opts Options) ([]types.SourceDocument, error) {
	t.Helper()
	var docs []types.SourceDocument
	for doc, err := range Walk(ctx, root, opts) {
		if err != nil {
			return docs, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func TestWalk(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "index.md", "# Home")
	writeFile(t, root, "guide/intro.mdx", "# Intro")
	writeFile(t, root, "guide/notes.txt", "ignored")
	writeFile(t, root, ".git/HEAD.md", "hidden")
	writeFile(t, root, "node_modules/pkg/README.md", "excluded")
	writeFile(t, root, ".draft.md", "hidden file")

	docs, err := collect(t, context.Background(), root, Options{})
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "/guide/intro", docs[0].Path)
	assert.Equal(t, "# Intro", docs[0].Text)
	assert.Equal(t, "/index", docs[1].Path)
}

func TestWalk_IncludeHidden(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".hidden/a.md", "a")

	docs, err := collect(t, context.Background(), root, Options{IncludeHidden: true})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "/.hidden/a", docs[0].Path)
}

func TestWalk_CustomExtensions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "a")
	writeFile(t, root, "b.markdown", "b")

	docs, err := collect(t, context.Background(), root, Options{Extensions: []string{".markdown"}})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "/b.markdown", docs[0].Path)
}

func TestWalk_MissingRoot(t *testing.T) {
	_, err := collect(t, context.Background(), filepath.Join(t.TempDir(), "nope"), Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrDiscovery))
}

func TestWalk_RootIsFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "a")

	_, err := collect(t, context.Background(), filepath.Join(root, "a.md"), Options{})
	assert.True(t, errors.Is(err, types.ErrDiscovery))
}

func TestWalk_StopsEarly(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "a")
	writeFile(t, root, "b.md", "b")
	writeFile(t, root, "c.md", "c")

	count := 0
	for _, err := range Walk(context.Background(), root, Options{}) {
		require.NoError(t, err)
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestWalk_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := collect(t, ctx, root, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, types.ErrDiscovery))
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		root string
		path string
		want string
	}{
		{root: "data", path: "data/guide/intro.mdx", want: "/guide/intro"},
		{root: "data", path: "data/index.md", want: "/index"},
		{root: "data", path: "data/README.MD", want: "/README"},
		{root: "/srv/docs", path: "/srv/docs/a/b/c.md", want: "/a/b/c"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := NormalizePath(tt.root, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := NormalizePath("data", "other/x.md")
	assert.Error(t, err)
}

func TestMatchesAndExcluded(t *testing.T) {
	opts := Options{}
	assert.True(t, Matches("/r/a.md", opts))
	assert.True(t, Matches("/r/a.MDX", opts))
	assert.False(t, Matches("/r/a.txt", opts))
	assert.False(t, Matches("/r/.a.md", opts))

	assert.False(t, Excluded("/r", "/r/guide/a.md", opts))
	assert.True(t, Excluded("/r", "/r/node_modules/x/a.md", opts))
	assert.True(t, Excluded("/r", "/r/.git/a.md", opts))
	assert.False(t, Excluded("/r", "/r/a.md", opts))
}
