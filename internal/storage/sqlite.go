package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/docindex/pkg/types"
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Single connection: SQLite has one writer, and ":memory:" databases are
	// per-connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// withTx runs fn inside a transaction, committing only if fn succeeds
func (s *SQLiteStorage) withTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Document operations

func (s *SQLiteStorage) UpsertDocument(ctx context.Context, path string) (int64, error) {
	if path == "" {
		return 0, fmt.Errorf("document path cannot be empty")
	}

	query := `
		INSERT INTO documents (path, checksum, created_at, updated_at)
		VALUES (?, NULL, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			checksum = NULL,
			updated_at = excluded.updated_at
		RETURNING id
	`
	now := time.Now()
	var id int64
	if err := s.db.QueryRowContext(ctx, query, path, now, now).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to upsert document: %w", err)
	}
	return id, nil
}

func (s *SQLiteStorage) ReplaceSections(ctx context.Context, documentID int64, sections []*types.Section) error {
	if err := validateSections(documentID, sections); err != nil {
		return err
	}

	return s.withTx(ctx, func(q querier) error {
		now := time.Now()

		result, err := q.ExecContext(ctx,
			`UPDATE documents SET section_count = ?, updated_at = ? WHERE id = ?`,
			len(sections), now, documentID)
		if err != nil {
			return fmt.Errorf("failed to update document: %w", err)
		}
		if n, err := result.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}

		if _, err := q.ExecContext(ctx,
			`DELETE FROM sections WHERE document_id = ? AND position >= ?`,
			documentID, len(sections)); err != nil {
			return fmt.Errorf("failed to delete stale sections: %w", err)
		}

		for _, section := range sections {
			if err := s.upsertSectionWithQuerier(ctx, q, section, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// upsertSectionWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) upsertSectionWithQuerier(ctx context.Context, q querier, section *types.Section, now time.Time) error {
	query := `
		INSERT INTO sections (document_id, position, content, heading, token_count, embedding, dimension, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id, position) DO UPDATE SET
			content = excluded.content,
			heading = excluded.heading,
			token_count = excluded.token_count,
			embedding = excluded.embedding,
			dimension = excluded.dimension,
			updated_at = excluded.updated_at
		RETURNING id
	`
	err := q.QueryRowContext(ctx, query,
		section.DocumentID, section.Position, section.Content, section.Heading,
		section.TokenCount, encodeEmbedding(section.Embedding), section.Dimension,
		now, now).Scan(&section.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert section %d: %w", section.Position, err)
	}
	section.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) FinalizeDocument(ctx context.Context, documentID int64, checksum string) error {
	if checksum == "" {
		return fmt.Errorf("checksum cannot be empty")
	}

	now := time.Now()
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET checksum = ?, last_indexed_at = ?, updated_at = ? WHERE id = ?`,
		checksum, now, now, documentID)
	if err != nil {
		return fmt.Errorf("failed to finalize document: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const documentColumns = `id, path, checksum, section_count, last_indexed_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*types.Document, error) {
	var doc types.Document
	var checksum sql.NullString
	var lastIndexedAt sql.NullTime
	err := row.Scan(&doc.ID, &doc.Path, &checksum, &doc.SectionCount,
		&lastIndexedAt, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if checksum.Valid {
		doc.Checksum = checksum.String
	}
	if lastIndexedAt.Valid {
		doc.LastIndexedAt = lastIndexedAt.Time
	}
	return &doc, nil
}

func (s *SQLiteStorage) GetDocument(ctx context.Context, path string) (*types.Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE path = ?`, path)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *SQLiteStorage) ListDocuments(ctx context.Context) ([]*types.Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY path`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	docs := make([]*types.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *SQLiteStorage) ListSections(ctx context.Context, documentID int64) ([]*types.Section, error) {
	query := `
		SELECT id, document_id, position, content, heading, token_count,
		       embedding, dimension, created_at, updated_at
		FROM sections
		WHERE document_id = ?
		ORDER BY position
	`
	rows, err := s.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	sections := make([]*types.Section, 0)
	for rows.Next() {
		var section types.Section
		var heading sql.NullString
		var blob []byte
		err := rows.Scan(&section.ID, &section.DocumentID, &section.Position,
			&section.Content, &heading, &section.TokenCount, &blob,
			&section.Dimension, &section.CreatedAt, &section.UpdatedAt)
		if err != nil {
			return nil, err
		}
		section.Heading = heading.String
		if section.Embedding, err = decodeEmbedding(blob); err != nil {
			return nil, fmt.Errorf("section %d: %w", section.ID, err)
		}
		sections = append(sections, &section)
	}
	return sections, rows.Err()
}

func (s *SQLiteStorage) DeleteDocument(ctx context.Context, path string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Run operations

func (s *SQLiteStorage) RecordRun(ctx context.Context, run *RunRecord) error {
	query := `
		INSERT INTO index_runs (id, started_at, finished_at, discovered, indexed, skipped,
		                        failed, cancelled, sections_stored, tokens_used)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.StartedAt, run.FinishedAt, run.Discovered, run.Indexed, run.Skipped,
		run.Failed, run.Cancelled, run.SectionsStored, run.TokensUsed)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) lastRun(ctx context.Context) (*RunRecord, error) {
	query := `
		SELECT id, started_at, finished_at, discovered, indexed, skipped,
		       failed, cancelled, sections_stored, tokens_used
		FROM index_runs
		ORDER BY finished_at DESC
		LIMIT 1
	`
	var run RunRecord
	err := s.db.QueryRowContext(ctx, query).Scan(
		&run.ID, &run.StartedAt, &run.FinishedAt, &run.Discovered, &run.Indexed,
		&run.Skipped, &run.Failed, &run.Cancelled, &run.SectionsStored, &run.TokensUsed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// Status operations

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*Status, error) {
	status := &Status{Backend: BackendSQLite}

	version, err := schemaVersion(ctx, s.db)
	if err != nil {
		return nil, err
	}
	status.SchemaVersion = version

	var lastIndexed sql.NullString
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(checksum),
		       MAX(last_indexed_at)
		FROM documents
	`).Scan(&status.DocumentsCount, &status.CompleteCount, &lastIndexed)
	if err != nil {
		return nil, err
	}
	status.PendingCount = status.DocumentsCount - status.CompleteCount

	// MAX() loses the column type, so the timestamp comes back as text
	if lastIndexed.Valid {
		status.LastIndexedAt = parseSQLiteTime(lastIndexed.String)
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sections").Scan(&status.SectionsCount); err != nil {
		return nil, err
	}

	status.LastRun, err = s.lastRun(ctx)
	if err != nil {
		return nil, err
	}

	// Calculate database size
	var pageCount, pageSize int
	err = s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	if err == nil {
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	return status, nil
}

// sqliteTimeFormats are the layouts the SQLite drivers write time.Time values in
var sqliteTimeFormats = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

func parseSQLiteTime(value string) time.Time {
	// time.Time.String appends the monotonic clock reading
	if i := strings.Index(value, " m="); i > 0 {
		value = value[:i]
	}
	for _, layout := range sqliteTimeFormats {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
