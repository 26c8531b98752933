package watcher

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docindex/internal/discovery"
	"github.com/dshills/docindex/internal/indexer"
	"github.com/dshills/docindex/pkg/types"
)

type recordingHandler struct {
	mu      sync.Mutex
	indexed map[string]string
	removed []string
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{indexed: make(map[string]string)}
}

func (h *recordingHandler) IndexDocument(_ context.Context, doc types.SourceDocument) indexer.DocumentResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.indexed[doc.Path] = doc.Text
	return indexer.DocumentResult{Path: doc.Path, Status: indexer.StatusIndexed}
}

func (h *recordingHandler) RemoveDocument(_ context.Context, path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removed = append(h.removed, path)
	return nil
}

func (h *recordingHandler) text(path string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	text, ok := h.indexed[path]
	return text, ok
}

func (h *recordingHandler) wasRemoved(path string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Contains(h.removed, path)
}

func startWatcher(t *testing.T, root string, h Handler) {
	t.Helper()

	w, err := New(root, h, Options{Debounce: 20 * time.Millisecond}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("watcher did not stop")
		}
	})

	// Give Run time to register the directories
	time.Sleep(100 * time.Millisecond)
}

func TestWatcher_IndexesChangedDocuments(t *testing.T) {
	root := t.TempDir()
	h := newRecordingHandler()
	startWatcher(t, root, h)

	require.NoError(t, os.WriteFile(filepath.Join(root, "intro.md"), []byte("# Intro\n\nv1"), 0o600))
	require.Eventually(t, func() bool {
		text, ok := h.text("/intro")
		return ok && text == "# Intro\n\nv1"
	}, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "intro.md"), []byte("# Intro\n\nv2"), 0o600))
	require.Eventually(t, func() bool {
		text, _ := h.text("/intro")
		return text == "# Intro\n\nv2"
	}, 3*time.Second, 20*time.Millisecond)
}

func TestWatcher_RemovesDeletedDocuments(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "old.mdx")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o600))

	h := newRecordingHandler()
	startWatcher(t, root, h)

	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool {
		return h.wasRemoved("/old")
	}, 3*time.Second, 20*time.Millisecond)
}

func TestWatcher_NewDirectory(t *testing.T) {
	root := t.TempDir()
	h := newRecordingHandler()
	startWatcher(t, root, h)

	dir := filepath.Join(root, "guide")
	require.NoError(t, os.Mkdir(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "setup.md"), []byte("setup"), 0o600))

	require.Eventually(t, func() bool {
		_, ok := h.text("/guide/setup")
		return ok
	}, 3*time.Second, 20*time.Millisecond)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	root := t.TempDir()
	excluded := filepath.Join(root, "node_modules")
	require.NoError(t, os.Mkdir(excluded, 0o755))

	h := newRecordingHandler()
	startWatcher(t, root, h)

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(excluded, "pkg.md"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "real.md"), []byte("x"), 0o600))

	require.Eventually(t, func() bool {
		_, ok := h.text("/real")
		return ok
	}, 3*time.Second, 20*time.Millisecond)

	_, ok := h.text("/notes")
	assert.False(t, ok)
	_, ok = h.text("/node_modules/pkg")
	assert.False(t, ok)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), newRecordingHandler(), Options{}, nil)
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "file.md")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	_, err = New(file, newRecordingHandler(), Options{}, nil)
	assert.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	w, err := New(t.TempDir(), newRecordingHandler(), Options{Discovery: discovery.Options{}}, nil)
	require.NoError(t, err)
	defer func() { _ = w.fsWatcher.Close() }()

	assert.Equal(t, DefaultDebounce, w.opts.Debounce)
	assert.True(t, filepath.IsAbs(w.root))
}
