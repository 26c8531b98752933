// Package types provides shared type definitions for docindex.
//
// The indexing pipeline moves a corpus entry through three shapes:
//
//	SourceDocument  -> discovered path and raw text
//	SectionDraft    -> ordered chunk produced by the chunker
//	Section         -> chunk plus embedding, persisted under (document, position)
//
// Document is the stored per-path record. Its Checksum field is the completeness
// marker: it is cleared when a pass starts and written only after every section of
// that pass is stored, so an empty Checksum always means "index this again".
//
// # Errors
//
// Failures are classified so the pipeline can report them per document:
//
//	*ChunkingError  // text could not be split
//	*ProviderError  // embedding request failed (Retryable marks transient ones)
//	*StoreError     // persistence failed
//
// ErrDiscovery is the only condition that aborts a whole run.
package types
