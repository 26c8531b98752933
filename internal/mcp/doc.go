// Package mcp implements the Model Context Protocol (MCP) server for docindex.
//
// The server exposes two tools to MCP clients:
//   - index_documents: run the indexing pipeline over a document root
//   - get_status: report what the store holds and how the last run went
//
// MCP is JSON-RPC 2.0 over stdio. Logs go to stderr because stdout carries
// the protocol.
//
// # Tool: index_documents
//
//	Request:
//	{
//	  "name": "index_documents",
//	  "arguments": {
//	    "root": "/srv/docs",
//	    "force": false
//	  }
//	}
//
//	Response:
//	{
//	  "run_id": "0b6f...",
//	  "discovered": 42,
//	  "indexed": 3,
//	  "skipped": 39,
//	  "failed": 0,
//	  "cancelled": 0,
//	  "sections_stored": 17,
//	  "tokens_used": 5120,
//	  "duration_ms": 2140
//	}
//
// root defaults to the configured discovery root. Only one index_documents
// call runs at a time; a second call fails with -32002 instead of queueing.
//
// # Tool: get_status
//
//	Response:
//	{
//	  "backend": "sqlite",
//	  "schema_version": "1.1.0",
//	  "statistics": {
//	    "documents_count": 42,
//	    "complete_count": 41,
//	    "pending_count": 1,
//	    "sections_count": 310,
//	    "index_size_mb": "4.21"
//	  },
//	  "last_run": {...}
//	}
//
// pending_count counts documents without a completeness marker, i.e. ones a
// failed or interrupted pass left behind. The next run picks them up.
//
// # Error codes
//
//   - -32602: invalid params (root missing or not a directory)
//   - -32603: internal error (store unavailable)
//   - -32002: indexing already running
//   - -32005: discovery failed; data carries the partial statistics
package mcp
