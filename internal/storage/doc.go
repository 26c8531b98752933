// Package storage persists indexed documents and their embedded sections.
//
// Two backends implement Storage:
//   - SQLiteStorage: a single-file database, the default
//   - PostgresStorage: Postgres with the pgvector extension, sections stored in a
//     vector column
//
// # Database Schema
//
// Tables:
//   - documents: one row per corpus path; checksum is the completeness marker
//   - sections: embedded sections keyed by (document_id, position)
//   - index_runs: one row per indexing run
//   - schema_version: applied migrations
//
// # Completeness Marker
//
// A document pass is bracketed by two writes:
//
//	id, err := store.UpsertDocument(ctx, "/guide/intro") // clears the marker
//	...
//	err = store.ReplaceSections(ctx, id, sections) // one transaction
//	...
//	err = store.FinalizeDocument(ctx, id, checksum) // marks the pass complete
//
// A crash between the two leaves checksum NULL, which the next run detects.
//
// # Build Tags
//
// The SQLite driver is chosen at build time:
//
//	CGO_ENABLED=0 go build ./...                    # modernc.org/sqlite
//	CGO_ENABLED=1 go build -tags sqlite_cgo ./...   # github.com/mattn/go-sqlite3
package storage
