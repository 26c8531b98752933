package types

import (
	"errors"
	"fmt"
)

// ErrDiscovery marks failures of the document source itself. It is the only
// error that aborts an indexing run.
var ErrDiscovery = errors.New("document discovery failed")

// ChunkingError is returned when a document's text cannot be split into sections
type ChunkingError struct {
	Path string
	Err  error
}

func (e *ChunkingError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("chunking failed: %v", e.Err)
	}
	return fmt.Sprintf("chunking %s: %v", e.Path, e.Err)
}

func (e *ChunkingError) Unwrap() error {
	return e.Err
}

// ProviderError is returned when the embedding provider fails to produce a vector
type ProviderError struct {
	Provider   string
	StatusCode int  // HTTP status, 0 for transport or payload errors
	Retryable  bool // Transient failure (rate limit, 5xx, network)
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("embedding provider %s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("embedding provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// StoreError is returned when persisting a document or its sections fails
type StoreError struct {
	Op  string // upsert_document, replace_sections, finalize_document, ...
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a transient provider failure
func IsRetryable(err error) bool {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Retryable
	}
	return false
}
