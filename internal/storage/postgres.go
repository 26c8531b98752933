package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/dshills/docindex/pkg/types"
)

// PostgresMigrations contains the Postgres schema in order. Sections carry a
// pgvector column so the same tables can serve similarity queries.
var PostgresMigrations = []Migration{
	{
		Version: "1.0.0",
		Up: `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ DEFAULT now()
);

CREATE TABLE IF NOT EXISTS documents (
    id BIGSERIAL PRIMARY KEY,
    path TEXT NOT NULL UNIQUE,
    checksum TEXT,
    section_count INTEGER NOT NULL DEFAULT 0,
    last_indexed_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sections (
    id BIGSERIAL PRIMARY KEY,
    document_id BIGINT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    content TEXT NOT NULL,
    heading TEXT,
    token_count INTEGER NOT NULL DEFAULT 0,
    embedding vector NOT NULL,
    dimension INTEGER NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE(document_id, position)
);
`,
		Down: `
DROP TABLE IF EXISTS sections;
DROP TABLE IF EXISTS documents;
DROP TABLE IF EXISTS schema_version;
`,
	},
	{
		Version: "1.1.0",
		Up: `
CREATE TABLE IF NOT EXISTS index_runs (
    id TEXT PRIMARY KEY,
    started_at TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL,
    discovered INTEGER NOT NULL DEFAULT 0,
    indexed INTEGER NOT NULL DEFAULT 0,
    skipped INTEGER NOT NULL DEFAULT 0,
    failed INTEGER NOT NULL DEFAULT 0,
    cancelled INTEGER NOT NULL DEFAULT 0,
    sections_stored INTEGER NOT NULL DEFAULT 0,
    tokens_used INTEGER NOT NULL DEFAULT 0
);
`,
		Down: `DROP TABLE IF EXISTS index_runs;`,
	},
}

// PostgresStorage implements the Storage interface on Postgres with pgvector
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage connects to dsn, applies pending migrations and returns a
// pooled store.
func NewPostgresStorage(ctx context.Context, dsn string) (*PostgresStorage, error) {
	// The vector type must exist before the pool registers it on connect
	if err := migratePostgres(ctx, dsn); err != nil {
		return nil, err
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

func migratePostgres(ctx context.Context, dsn string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer func() { _ = conn.Close(ctx) }()

	current, err := postgresSchemaVersion(ctx, conn)
	if err != nil {
		return err
	}

	pending, err := pendingMigrations(current, PostgresMigrations)
	if err != nil {
		return err
	}

	for _, migration := range pending {
		if _, err := conn.Exec(ctx, migration.Up); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}
		if _, err := conn.Exec(ctx, "INSERT INTO schema_version (version) VALUES ($1)", migration.Version); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}
	}
	return nil
}

type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func postgresSchemaVersion(ctx context.Context, q pgQuerier) (string, error) {
	rows, err := q.Query(ctx, "SELECT version FROM schema_version")
	if err != nil {
		// Fresh database: the table does not exist yet
		if isUndefinedTable(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read schema_version: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		if isUndefinedTable(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read schema_version: %w", err)
	}
	return latestVersion(versions)
}

func isUndefinedTable(err error) bool {
	var pgErr interface{ SQLState() string }
	return errors.As(err, &pgErr) && pgErr.SQLState() == "42P01"
}

func (p *PostgresStorage) Close() error {
	p.pool.Close()
	return nil
}

func (p *PostgresStorage) UpsertDocument(ctx context.Context, path string) (int64, error) {
	if path == "" {
		return 0, fmt.Errorf("document path cannot be empty")
	}

	var id int64
	err := p.pool.QueryRow(ctx, `
		INSERT INTO documents (path, checksum)
		VALUES ($1, NULL)
		ON CONFLICT (path) DO UPDATE SET
			checksum = NULL,
			updated_at = now()
		RETURNING id
	`, path).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert document: %w", err)
	}
	return id, nil
}

func (p *PostgresStorage) ReplaceSections(ctx context.Context, documentID int64, sections []*types.Section) error {
	if err := validateSections(documentID, sections); err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE documents SET section_count = $1, updated_at = now() WHERE id = $2`,
			len(sections), documentID)
		if err != nil {
			return fmt.Errorf("failed to update document: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM sections WHERE document_id = $1 AND position >= $2`,
			documentID, len(sections)); err != nil {
			return fmt.Errorf("failed to delete stale sections: %w", err)
		}

		batch := &pgx.Batch{}
		for _, section := range sections {
			batch.Queue(`
				INSERT INTO sections (document_id, position, content, heading, token_count, embedding, dimension)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (document_id, position) DO UPDATE SET
					content = excluded.content,
					heading = excluded.heading,
					token_count = excluded.token_count,
					embedding = excluded.embedding,
					dimension = excluded.dimension,
					updated_at = now()
				RETURNING id
			`, section.DocumentID, section.Position, section.Content, section.Heading,
				section.TokenCount, pgvector.NewVector(section.Embedding), section.Dimension)
		}

		results := tx.SendBatch(ctx, batch)
		for _, section := range sections {
			if err := results.QueryRow().Scan(&section.ID); err != nil {
				_ = results.Close()
				return fmt.Errorf("failed to upsert section %d: %w", section.Position, err)
			}
		}
		return results.Close()
	})
}

func (p *PostgresStorage) FinalizeDocument(ctx context.Context, documentID int64, checksum string) error {
	if checksum == "" {
		return fmt.Errorf("checksum cannot be empty")
	}

	tag, err := p.pool.Exec(ctx,
		`UPDATE documents SET checksum = $1, last_indexed_at = now(), updated_at = now() WHERE id = $2`,
		checksum, documentID)
	if err != nil {
		return fmt.Errorf("failed to finalize document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPgDocument(row pgx.Row) (*types.Document, error) {
	var doc types.Document
	var checksum *string
	var lastIndexedAt *time.Time
	err := row.Scan(&doc.ID, &doc.Path, &checksum, &doc.SectionCount,
		&lastIndexedAt, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if checksum != nil {
		doc.Checksum = *checksum
	}
	if lastIndexedAt != nil {
		doc.LastIndexedAt = *lastIndexedAt
	}
	return &doc, nil
}

func (p *PostgresStorage) GetDocument(ctx context.Context, path string) (*types.Document, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE path = $1`, path)
	doc, err := scanPgDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (p *PostgresStorage) ListDocuments(ctx context.Context) ([]*types.Document, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]*types.Document, 0)
	for rows.Next() {
		doc, err := scanPgDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (p *PostgresStorage) ListSections(ctx context.Context, documentID int64) ([]*types.Section, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, document_id, position, content, heading, token_count,
		       embedding, dimension, created_at, updated_at
		FROM sections
		WHERE document_id = $1
		ORDER BY position
	`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sections := make([]*types.Section, 0)
	for rows.Next() {
		var section types.Section
		var heading *string
		var vec pgvector.Vector
		err := rows.Scan(&section.ID, &section.DocumentID, &section.Position,
			&section.Content, &heading, &section.TokenCount, &vec,
			&section.Dimension, &section.CreatedAt, &section.UpdatedAt)
		if err != nil {
			return nil, err
		}
		if heading != nil {
			section.Heading = *heading
		}
		section.Embedding = vec.Slice()
		sections = append(sections, &section)
	}
	return sections, rows.Err()
}

func (p *PostgresStorage) DeleteDocument(ctx context.Context, path string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM documents WHERE path = $1`, path)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStorage) RecordRun(ctx context.Context, run *RunRecord) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO index_runs (id, started_at, finished_at, discovered, indexed, skipped,
		                        failed, cancelled, sections_stored, tokens_used)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, run.ID, run.StartedAt, run.FinishedAt, run.Discovered, run.Indexed, run.Skipped,
		run.Failed, run.Cancelled, run.SectionsStored, run.TokensUsed)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

func (p *PostgresStorage) GetStatus(ctx context.Context) (*Status, error) {
	status := &Status{Backend: BackendPostgres}

	version, err := postgresSchemaVersion(ctx, p.pool)
	if err != nil {
		return nil, err
	}
	status.SchemaVersion = version

	var lastIndexed *time.Time
	err = p.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(checksum), MAX(last_indexed_at) FROM documents
	`).Scan(&status.DocumentsCount, &status.CompleteCount, &lastIndexed)
	if err != nil {
		return nil, err
	}
	status.PendingCount = status.DocumentsCount - status.CompleteCount
	if lastIndexed != nil {
		status.LastIndexedAt = *lastIndexed
	}

	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sections`).Scan(&status.SectionsCount); err != nil {
		return nil, err
	}

	var run RunRecord
	err = p.pool.QueryRow(ctx, `
		SELECT id, started_at, finished_at, discovered, indexed, skipped,
		       failed, cancelled, sections_stored, tokens_used
		FROM index_runs
		ORDER BY finished_at DESC
		LIMIT 1
	`).Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.Discovered, &run.Indexed,
		&run.Skipped, &run.Failed, &run.Cancelled, &run.SectionsStored, &run.TokensUsed)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return nil, err
	default:
		status.LastRun = &run
	}

	var sizeBytes int64
	if err := p.pool.QueryRow(ctx, `SELECT pg_database_size(current_database())`).Scan(&sizeBytes); err == nil {
		status.IndexSizeMB = float64(sizeBytes) / (1024 * 1024)
	}

	return status, nil
}
