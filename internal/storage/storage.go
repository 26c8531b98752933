package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/docindex/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidSections is returned when a section set cannot be stored as given
	ErrInvalidSections = errors.New("invalid sections")
)

// Storage persists documents, their embedded sections and the completeness marker.
//
// A document's marker (Checksum) is cleared by UpsertDocument and written by
// FinalizeDocument. Between the two calls the document is "open" and readers must
// treat its sections as incomplete.
type Storage interface {
	// UpsertDocument creates the document row for path if needed, clears its
	// marker and returns its id.
	UpsertDocument(ctx context.Context, path string) (int64, error)

	// ReplaceSections makes sections the complete section set of the document in
	// one transaction. Sections must carry positions 0..len-1; stored positions
	// beyond the new count are removed.
	ReplaceSections(ctx context.Context, documentID int64, sections []*types.Section) error

	// FinalizeDocument writes the marker. It returns ErrNotFound if the document
	// no longer exists.
	FinalizeDocument(ctx context.Context, documentID int64, checksum string) error

	GetDocument(ctx context.Context, path string) (*types.Document, error)
	ListDocuments(ctx context.Context) ([]*types.Document, error)
	ListSections(ctx context.Context, documentID int64) ([]*types.Section, error)

	// DeleteDocument removes the document and its sections
	DeleteDocument(ctx context.Context, path string) error

	// Run history
	RecordRun(ctx context.Context, run *RunRecord) error
	GetStatus(ctx context.Context) (*Status, error)

	Close() error
}

// RunRecord summarizes one indexing run
type RunRecord struct {
	ID             string    `json:"id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Discovered     int       `json:"discovered"`
	Indexed        int       `json:"indexed"`
	Skipped        int       `json:"skipped"`
	Failed         int       `json:"failed"`
	Cancelled      int       `json:"cancelled"`
	SectionsStored int       `json:"sections_stored"`
	TokensUsed     int       `json:"tokens_used"`
}

// Status contains statistics about the stored index
type Status struct {
	Backend        string     `json:"backend"`
	SchemaVersion  string     `json:"schema_version"`
	DocumentsCount int        `json:"documents_count"`
	CompleteCount  int        `json:"complete_count"`
	PendingCount   int        `json:"pending_count"` // Documents whose marker is empty
	SectionsCount  int        `json:"sections_count"`
	LastIndexedAt  time.Time  `json:"last_indexed_at"`
	LastRun        *RunRecord `json:"last_run,omitempty"`
	IndexSizeMB    float64    `json:"index_size_mb"`
}

// Backend names
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config selects and configures a storage backend
type Config struct {
	Backend string // sqlite (default) or postgres
	Path    string // SQLite database file, ":memory:" for tests
	DSN     string // Postgres connection string
}

// Open creates the configured backend and applies pending migrations
func Open(ctx context.Context, cfg Config) (Storage, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendSQLite:
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite backend requires a database path")
		}
		s, err := NewSQLiteStorage(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres backend requires a DSN")
		}
		s, err := NewPostgresStorage(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// validateSections checks a section set before any write happens
func validateSections(documentID int64, sections []*types.Section) error {
	for i, section := range sections {
		if section == nil {
			return fmt.Errorf("%w: section %d is nil", ErrInvalidSections, i)
		}
		if section.Position != i {
			return fmt.Errorf("%w: section %d has position %d", ErrInvalidSections, i, section.Position)
		}
		if err := section.Validate(); err != nil {
			return fmt.Errorf("%w: section %d: %v", ErrInvalidSections, i, err)
		}
		section.DocumentID = documentID
		if section.Dimension == 0 {
			section.Dimension = len(section.Embedding)
		}
	}
	return nil
}
