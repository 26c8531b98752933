package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docindex/internal/embedder"
	"github.com/dshills/docindex/internal/indexer"
	"github.com/dshills/docindex/internal/storage"
)

func setupServer(t *testing.T) (*Server, string) {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	emb, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "intro.md"), []byte("# Intro\n\nWelcome."), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "guide"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "guide", "setup.mdx"), []byte("# Setup\n\nInstall it.\n\n# Run\n\nRun it."), 0o600))

	idx := indexer.New(store, emb, indexer.Config{Workers: 2})
	return NewServer(store, idx, Options{Root: root}, nil), root
}

func callTool(name string, args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func decodeResult(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)

	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &decoded))
	return decoded
}

func TestHandleIndexDocuments(t *testing.T) {
	s, root := setupServer(t)
	ctx := context.Background()

	t.Run("indexes configured root", func(t *testing.T) {
		result, err := s.handleIndexDocuments(ctx, callTool("index_documents", nil))
		require.NoError(t, err)

		resp := decodeResult(t, result)
		assert.EqualValues(t, 2, resp["discovered"])
		assert.EqualValues(t, 2, resp["indexed"])
		assert.EqualValues(t, 3, resp["sections_stored"])
		assert.NotEmpty(t, resp["run_id"])
	})

	t.Run("unchanged documents are skipped", func(t *testing.T) {
		result, err := s.handleIndexDocuments(ctx, callTool("index_documents", map[string]interface{}{"root": root}))
		require.NoError(t, err)

		resp := decodeResult(t, result)
		assert.EqualValues(t, 2, resp["skipped"])
		assert.EqualValues(t, 0, resp["indexed"])
	})

	t.Run("force re-indexes", func(t *testing.T) {
		result, err := s.handleIndexDocuments(ctx, callTool("index_documents", map[string]interface{}{"force": true}))
		require.NoError(t, err)

		resp := decodeResult(t, result)
		assert.EqualValues(t, 2, resp["indexed"])
	})
}

func TestHandleIndexDocuments_InvalidRoot(t *testing.T) {
	s, root := setupServer(t)

	tests := []struct {
		name string
		root string
	}{
		{"missing", filepath.Join(root, "missing")},
		{"file", filepath.Join(root, "intro.md")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.handleIndexDocuments(context.Background(), callTool("index_documents", map[string]interface{}{"root": tt.root}))
			require.Error(t, err)

			var mcpErr *MCPError
			require.True(t, errors.As(err, &mcpErr))
			assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
		})
	}
}

func TestHandleIndexDocuments_AlreadyRunning(t *testing.T) {
	s, _ := setupServer(t)

	require.True(t, s.runLock.TryAcquire())
	defer s.runLock.Release()

	_, err := s.handleIndexDocuments(context.Background(), callTool("index_documents", nil))
	require.Error(t, err)

	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr))
	assert.Equal(t, ErrorCodeIndexingInProgress, mcpErr.Code)
	assert.Contains(t, err.Error(), "already running")
}

func TestHandleGetStatus(t *testing.T) {
	s, _ := setupServer(t)
	ctx := context.Background()

	t.Run("empty index", func(t *testing.T) {
		result, err := s.handleGetStatus(ctx, callTool("get_status", nil))
		require.NoError(t, err)

		resp := decodeResult(t, result)
		assert.Equal(t, storage.BackendSQLite, resp["backend"])
		stats := resp["statistics"].(map[string]interface{})
		assert.EqualValues(t, 0, stats["documents_count"])
		assert.NotContains(t, resp, "last_run")
	})

	t.Run("after a run", func(t *testing.T) {
		_, err := s.handleIndexDocuments(ctx, callTool("index_documents", nil))
		require.NoError(t, err)

		result, err := s.handleGetStatus(ctx, callTool("get_status", nil))
		require.NoError(t, err)

		resp := decodeResult(t, result)
		stats := resp["statistics"].(map[string]interface{})
		assert.EqualValues(t, 2, stats["documents_count"])
		assert.EqualValues(t, 2, stats["complete_count"])
		assert.EqualValues(t, 0, stats["pending_count"])
		assert.EqualValues(t, 3, stats["sections_count"])

		lastRun := resp["last_run"].(map[string]interface{})
		assert.EqualValues(t, 2, lastRun["indexed"])
	})
}

func TestStatisticsResponse_TruncatesErrors(t *testing.T) {
	stats := &indexer.Statistics{
		ErrorMessages: []string{"a", "b", "c", "d", "e", "f", "g"},
	}
	resp := statisticsResponse(stats)
	assert.Len(t, resp["errors"], maxReportedErrors)
	assert.Equal(t, 7, resp["error_count"])

	assert.Nil(t, statisticsResponse(nil))
}

func TestValidateRoot(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.md")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	assert.ErrorIs(t, validateRoot(""), ErrRootRequired)
	assert.ErrorIs(t, validateRoot(filepath.Join(dir, "nope")), ErrRootNotFound)
	assert.ErrorIs(t, validateRoot(file), ErrNotDirectory)
	assert.NoError(t, validateRoot(dir))
}

func TestToolDefinitions(t *testing.T) {
	index := indexDocumentsTool()
	assert.Equal(t, "index_documents", index.Name)
	assert.Contains(t, index.InputSchema.Properties, "root")
	assert.Contains(t, index.InputSchema.Properties, "force")
	assert.Empty(t, index.InputSchema.Required)

	assert.Equal(t, "get_status", getStatusTool().Name)
}
