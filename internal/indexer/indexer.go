package indexer

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/docindex/internal/chunker"
	"github.com/dshills/docindex/internal/embedder"
	"github.com/dshills/docindex/internal/fingerprint"
	"github.com/dshills/docindex/internal/storage"
	"github.com/dshills/docindex/pkg/types"
)

// sectionPrefixLen is how much of a failing section is quoted in logs
const sectionPrefixLen = 40

// Indexer coordinates the indexing pipeline: fingerprint -> chunk -> embed -> store
type Indexer struct {
	chunker  *chunker.Chunker
	embedder embedder.Embedder
	storage  storage.Storage
	logger   *zap.Logger
	locks    *pathLocks

	workers       int
	skipUnchanged bool
}

// Config contains configuration for the indexer
type Config struct {
	Workers int  // Number of concurrent document passes (default: 1)
	Force   bool // Re-index documents whose marker matches their checksum
	Chunker chunker.Options
}

// Option customizes an Indexer
type Option func(*Indexer)

// WithLogger sets the logger; the default discards output
func WithLogger(logger *zap.Logger) Option {
	return func(idx *Indexer) {
		if logger != nil {
			idx.logger = logger
		}
	}
}

// New creates a new Indexer instance
func New(store storage.Storage, emb embedder.Embedder, cfg Config, opts ...Option) *Indexer {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	idx := &Indexer{
		chunker:       chunker.NewWithOptions(cfg.Chunker),
		embedder:      emb,
		storage:       store,
		logger:        zap.NewNop(),
		locks:         newPathLocks(),
		workers:       workers,
		skipUnchanged: !cfg.Force,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// WithForce returns an indexer that shares idx's store, embedder and path
// locks, with the skip-unchanged check disabled when force is set.
func (idx *Indexer) WithForce(force bool) *Indexer {
	c := *idx
	c.skipUnchanged = !force
	return &c
}

// Run indexes every document yielded by docs and returns the run statistics.
//
// Document failures never abort the run; they are reported in the statistics.
// The only error returned is a discovery failure, together with the statistics of
// the documents processed before it. Once ctx is cancelled no further documents
// are scheduled.
func (idx *Indexer) Run(ctx context.Context, docs iter.Seq2[types.SourceDocument, error]) (*Statistics, error) {
	stats := &Statistics{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	logger := idx.logger.With(zap.String("run_id", stats.RunID))
	logger.Info("indexing run started", zap.Int("workers", idx.workers))

	var (
		mu      sync.Mutex
		results []DocumentResult
		runErr  error
	)

	g := new(errgroup.Group)
	g.SetLimit(idx.workers)

	for doc, err := range docs {
		if err != nil {
			if ctx.Err() == nil {
				if !errors.Is(err, types.ErrDiscovery) {
					err = fmt.Errorf("%w: %w", types.ErrDiscovery, err)
				}
				runErr = err
			}
			break
		}
		if ctx.Err() != nil {
			break
		}

		mu.Lock()
		i := len(results)
		results = append(results, DocumentResult{Path: doc.Path})
		mu.Unlock()

		g.Go(func() error {
			r := idx.IndexDocument(ctx, doc)
			mu.Lock()
			results[i] = r
			mu.Unlock()
			return nil
		})
	}

	// Workers never return errors; failures live in the results
	_ = g.Wait()

	stats.Discovered = len(results)
	for _, r := range results {
		stats.add(r)
	}
	stats.Duration = time.Since(stats.StartedAt)

	idx.recordRun(ctx, logger, stats)

	if runErr != nil {
		RunsTotal.WithLabelValues("discovery_error").Inc()
		logger.Error("indexing run aborted", zap.Error(runErr), zap.String("summary", stats.Summary()))
		return stats, runErr
	}

	RunsTotal.WithLabelValues("success").Inc()
	logger.Info("indexing run finished",
		zap.Int("discovered", stats.Discovered),
		zap.Int("indexed", stats.Indexed),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
		zap.Int("cancelled", stats.Cancelled),
		zap.Int("sections", stats.SectionsStored),
		zap.Int("tokens", stats.TokensUsed),
		zap.Duration("duration", stats.Duration))
	return stats, nil
}

// recordRun persists the run summary. It runs even after cancellation so an
// interrupted run still leaves a record.
func (idx *Indexer) recordRun(ctx context.Context, logger *zap.Logger, stats *Statistics) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	err := idx.storage.RecordRun(ctx, &storage.RunRecord{
		ID:             stats.RunID,
		StartedAt:      stats.StartedAt,
		FinishedAt:     stats.StartedAt.Add(stats.Duration),
		Discovered:     stats.Discovered,
		Indexed:        stats.Indexed,
		Skipped:        stats.Skipped,
		Failed:         stats.Failed,
		Cancelled:      stats.Cancelled,
		SectionsStored: stats.SectionsStored,
		TokensUsed:     stats.TokensUsed,
	})
	if err != nil {
		logger.Warn("failed to record run", zap.Error(err))
	}
}

// IndexDocument runs one complete pass for doc. Every failure, including a panic,
// is converted into the returned result.
func (idx *Indexer) IndexDocument(ctx context.Context, doc types.SourceDocument) (result DocumentResult) {
	start := time.Now()
	unlock := idx.locks.lock(doc.Path)
	defer unlock()

	p := &pass{idx: idx, doc: doc}
	defer func() {
		if r := recover(); r != nil {
			result = p.failed(ReasonInternal, fmt.Errorf("panic during indexing: %v", r))
		}
		result.Duration = time.Since(start)
		observe(result)
		idx.log(result, p.prefix)
	}()

	return p.run(ctx)
}

// RemoveDocument deletes path and its sections, waiting for any open pass on
// the same path to finish first. A missing document is not an error.
func (idx *Indexer) RemoveDocument(ctx context.Context, path string) error {
	unlock := idx.locks.lock(path)
	defer unlock()

	err := idx.storage.DeleteDocument(ctx, path)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return &types.StoreError{Op: "delete_document", Err: err}
	}
	if err == nil {
		idx.logger.Info("document removed", zap.String("path", path))
	}
	return nil
}

// pass is the state of one document pass
type pass struct {
	idx    *Indexer
	doc    types.SourceDocument
	tokens int
	prefix string // Section being embedded when the pass stopped
}

func (p *pass) run(ctx context.Context) DocumentResult {
	if ctx.Err() != nil {
		return p.cancelled(ctx.Err())
	}

	checksum := fingerprint.Checksum(p.doc.Text)

	if p.idx.skipUnchanged {
		existing, err := p.idx.storage.GetDocument(ctx, p.doc.Path)
		switch {
		case err == nil && existing.Checksum == checksum:
			return DocumentResult{Path: p.doc.Path, Status: StatusSkipped}
		case err != nil && !errors.Is(err, storage.ErrNotFound):
			return p.storeFailed(ctx, "get_document", err)
		}
	}

	// Opening the pass clears the marker before anything else is written
	id, err := p.idx.storage.UpsertDocument(ctx, p.doc.Path)
	if err != nil {
		return p.storeFailed(ctx, "upsert_document", err)
	}

	drafts, err := p.idx.chunker.Split(p.doc.Text)
	if err != nil {
		var cerr *types.ChunkingError
		if errors.As(err, &cerr) {
			cerr.Path = p.doc.Path
		} else {
			err = &types.ChunkingError{Path: p.doc.Path, Err: err}
		}
		return p.failed(ReasonChunking, err)
	}

	// Embed everything before the first section write so a provider failure
	// leaves the previous section set untouched.
	sections := make([]*types.Section, 0, len(drafts))
	for _, draft := range drafts {
		input := embedder.NormalizeInput(draft.Content)
		p.prefix = truncate(input, sectionPrefixLen)

		emb, err := p.idx.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: input})
		if err != nil {
			if ctx.Err() != nil {
				return p.cancelled(err)
			}
			var perr *types.ProviderError
			if !errors.As(err, &perr) {
				err = &types.ProviderError{Provider: p.idx.embedder.Provider(), Err: err}
			}
			return p.failed(ReasonProvider, err)
		}

		tokens := emb.Usage.TotalTokens
		if tokens == 0 {
			tokens = types.EstimateTokens(draft.Content)
		}
		p.tokens += tokens

		sections = append(sections, &types.Section{
			Position:   draft.Index,
			Content:    draft.Content,
			Heading:    draft.Heading,
			TokenCount: tokens,
			Embedding:  emb.Vector,
			Dimension:  len(emb.Vector),
		})
	}
	p.prefix = ""

	if ctx.Err() != nil {
		return p.cancelled(ctx.Err())
	}
	if err := p.idx.storage.ReplaceSections(ctx, id, sections); err != nil {
		return p.storeFailed(ctx, "replace_sections", err)
	}

	if ctx.Err() != nil {
		return p.cancelled(ctx.Err())
	}
	if err := p.idx.storage.FinalizeDocument(ctx, id, checksum); err != nil {
		return p.storeFailed(ctx, "finalize_document", err)
	}

	return DocumentResult{
		Path:     p.doc.Path,
		Status:   StatusIndexed,
		Sections: len(sections),
		Tokens:   p.tokens,
	}
}

func (p *pass) failed(reason Reason, err error) DocumentResult {
	return DocumentResult{
		Path:   p.doc.Path,
		Status: StatusFailed,
		Reason: reason,
		Tokens: p.tokens,
		Err:    err,
	}
}

func (p *pass) cancelled(err error) DocumentResult {
	return DocumentResult{
		Path:   p.doc.Path,
		Status: StatusCancelled,
		Tokens: p.tokens,
		Err:    err,
	}
}

func (p *pass) storeFailed(ctx context.Context, op string, err error) DocumentResult {
	if ctx.Err() != nil {
		return p.cancelled(err)
	}
	return p.failed(ReasonStore, &types.StoreError{Op: op, Err: err})
}

func (idx *Indexer) log(result DocumentResult, prefix string) {
	fields := []zap.Field{
		zap.String("path", result.Path),
		zap.String("status", string(result.Status)),
		zap.Duration("duration", result.Duration),
	}

	switch result.Status {
	case StatusFailed:
		fields = append(fields, zap.String("reason", string(result.Reason)), zap.Error(result.Err))
		if prefix != "" {
			fields = append(fields, zap.String("section_prefix", prefix))
		}
		idx.logger.Error("document indexing failed", fields...)
	case StatusCancelled:
		idx.logger.Warn("document indexing cancelled", fields...)
	case StatusSkipped:
		idx.logger.Debug("document unchanged", fields...)
	default:
		fields = append(fields, zap.Int("sections", result.Sections), zap.Int("tokens", result.Tokens))
		idx.logger.Info("document indexed", fields...)
	}
}

// truncate returns the first n runes of s
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
