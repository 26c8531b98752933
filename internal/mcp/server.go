package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dshills/docindex/internal/discovery"
	"github.com/dshills/docindex/internal/indexer"
	"github.com/dshills/docindex/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "docindex"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Options configures the tools
type Options struct {
	Root      string // Document root used when index_documents omits one
	Discovery discovery.Options
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp     *server.MCPServer
	storage storage.Storage
	indexer *indexer.Indexer
	opts    Options
	logger  *zap.Logger

	// Serializes index_documents calls
	runLock indexer.RunLock
}

// NewServer creates a new MCP server instance. The caller owns store and
// closes it after Serve returns.
func NewServer(store storage.Storage, idx *indexer.Indexer, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		mcp:     server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		storage: store,
		indexer: idx,
		opts:    opts,
		logger:  logger.Named("mcp"),
	}
	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio and blocks until the client disconnects
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("serving MCP on stdio", zap.String("root", s.opts.Root))
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexDocumentsTool(), s.handleIndexDocuments)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
