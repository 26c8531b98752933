package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// indexDocumentsTool returns the tool definition for index_documents
func indexDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_documents",
		Description: "Index the markdown documents under a directory, embedding every section",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"root": map[string]interface{}{
					"type":        "string",
					"description": "Directory containing .md/.mdx documents (defaults to the configured root)",
				},
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, re-index documents even when their content is unchanged",
					"default":     false,
				},
			},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report stored documents, pending documents, sections and the last indexing run",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
