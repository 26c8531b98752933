package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/dshills/docindex/internal/discovery"
	"github.com/dshills/docindex/internal/indexer"
	"github.com/dshills/docindex/internal/storage"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeDiscoveryFailed    = -32005 // The document root could not be walked
)

// maxReportedErrors caps the per-document errors included in a response
const maxReportedErrors = 5

// handleIndexDocuments handles the index_documents tool invocation
func (s *Server) handleIndexDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok && request.Params.Arguments != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	root := getStringDefault(args, "root", s.opts.Root)
	if err := validateRoot(root); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid root", map[string]interface{}{
			"param":  "root",
			"reason": err.Error(),
		})
	}
	force := getBoolDefault(args, "force", false)

	if !s.runLock.TryAcquire() {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already running", nil)
	}
	defer s.runLock.Release()

	s.logger.Info("index_documents", zap.String("root", root), zap.Bool("force", force))

	stats, err := s.indexer.WithForce(force).Run(ctx, discovery.Walk(ctx, root, s.opts.Discovery))
	if err != nil {
		return nil, newMCPError(ErrorCodeDiscoveryFailed, "document discovery failed", map[string]interface{}{
			"error":      err.Error(),
			"statistics": statisticsResponse(stats),
		})
	}

	return mcp.NewToolResultText(formatJSON(statisticsResponse(stats))), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.storage.GetStatus(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(statusResponse(status))), nil
}

func statisticsResponse(stats *indexer.Statistics) map[string]interface{} {
	if stats == nil {
		return nil
	}

	response := map[string]interface{}{
		"run_id":          stats.RunID,
		"discovered":      stats.Discovered,
		"indexed":         stats.Indexed,
		"skipped":         stats.Skipped,
		"failed":          stats.Failed,
		"cancelled":       stats.Cancelled,
		"sections_stored": stats.SectionsStored,
		"tokens_used":     stats.TokensUsed,
		"duration_ms":     stats.Duration.Milliseconds(),
	}

	if errorCount := len(stats.ErrorMessages); errorCount > 0 {
		if errorCount > maxReportedErrors {
			response["errors"] = stats.ErrorMessages[:maxReportedErrors]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return response
}

func statusResponse(status *storage.Status) map[string]interface{} {
	response := map[string]interface{}{
		"backend":        status.Backend,
		"schema_version": status.SchemaVersion,
		"statistics": map[string]interface{}{
			"documents_count": status.DocumentsCount,
			"complete_count":  status.CompleteCount,
			"pending_count":   status.PendingCount,
			"sections_count":  status.SectionsCount,
			"index_size_mb":   fmt.Sprintf("%.2f", status.IndexSizeMB),
		},
	}

	if !status.LastIndexedAt.IsZero() {
		response["last_indexed_at"] = status.LastIndexedAt.Format(time.RFC3339)
	}

	if run := status.LastRun; run != nil {
		response["last_run"] = map[string]interface{}{
			"id":              run.ID,
			"started_at":      run.StartedAt.Format(time.RFC3339),
			"finished_at":     run.FinishedAt.Format(time.RFC3339),
			"discovered":      run.Discovered,
			"indexed":         run.Indexed,
			"skipped":         run.Skipped,
			"failed":          run.Failed,
			"cancelled":       run.Cancelled,
			"sections_stored": run.SectionsStored,
			"tokens_used":     run.TokensUsed,
		}
	}

	return response
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validateRoot checks that root is a readable directory
func validateRoot(root string) error {
	if root == "" {
		return ErrRootRequired
	}

	info, err := os.Stat(root)
	if errors.Is(err, os.ErrNotExist) {
		return ErrRootNotFound
	}
	if err != nil {
		return ErrRootNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(root)
	if err != nil {
		return ErrRootNotReadable
	}
	_ = f.Close()

	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a non-empty string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}

// Validation errors

var (
	ErrRootRequired    = errors.New("root is required")
	ErrRootNotFound    = errors.New("root does not exist")
	ErrRootNotReadable = errors.New("root is not readable")
	ErrNotDirectory    = errors.New("root is not a directory")
)
