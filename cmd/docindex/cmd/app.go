package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dshills/docindex/internal/chunker"
	"github.com/dshills/docindex/internal/config"
	"github.com/dshills/docindex/internal/discovery"
	"github.com/dshills/docindex/internal/embedder"
	"github.com/dshills/docindex/internal/indexer"
	"github.com/dshills/docindex/internal/logging"
	"github.com/dshills/docindex/internal/storage"
)

// app holds the wired dependencies shared by the commands
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   storage.Storage
	emb     embedder.Embedder
	indexer *indexer.Indexer
}

// loadConfig loads the configuration and applies command-line overrides
func loadConfig(configPath string, override func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if override != nil {
		override(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid flags: %w", err)
		}
	}
	return cfg, nil
}

// newApp wires config -> logger -> storage -> embedder -> indexer
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	emb, err := embedder.New(embedder.Config{
		Provider:          cfg.Embedder.Provider,
		APIKey:            cfg.Embedder.APIKey,
		Model:             cfg.Embedder.Model,
		BaseURL:           cfg.Embedder.BaseURL,
		Dimension:         cfg.Embedder.Dimension,
		Timeout:           cfg.Embedder.Timeout,
		CacheSize:         cfg.Embedder.CacheSize,
		RequestsPerSecond: cfg.Embedder.RequestsPerSecond,
		Burst:             cfg.Embedder.Burst,
		MaxConcurrent:     cfg.Embedder.MaxConcurrent,
		Retry:             embedder.RetryConfig{MaxRetries: cfg.Embedder.MaxRetries},
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	idx := indexer.New(store, emb, indexer.Config{
		Workers: cfg.Indexer.Workers,
		Force:   cfg.Indexer.Force,
		Chunker: chunker.Options{
			MaxSectionChars: cfg.Indexer.MaxSectionChars,
			SectionOverlap:  cfg.Indexer.SectionOverlap,
		},
	}, indexer.WithLogger(logger))

	logger.Debug("docindex initialized",
		zap.String("backend", cfg.Storage.Backend),
		zap.String("provider", emb.Provider()),
		zap.String("model", emb.Model()),
		zap.Int("workers", cfg.Indexer.Workers))

	return &app{cfg: cfg, logger: logger, store: store, emb: emb, indexer: idx}, nil
}

// openStore opens the configured backend, creating the SQLite directory
func openStore(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	if cfg.Storage.Backend == storage.BackendSQLite {
		if dir := filepath.Dir(cfg.Storage.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	store, err := storage.Open(ctx, storage.Config{
		Backend: cfg.Storage.Backend,
		Path:    cfg.Storage.Path,
		DSN:     cfg.Storage.DSN,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}

func (a *app) discoveryOptions() discovery.Options {
	return discovery.Options{
		Extensions:    a.cfg.Discovery.Extensions,
		ExcludeDirs:   a.cfg.Discovery.ExcludeDirs,
		IncludeHidden: a.cfg.Discovery.IncludeHidden,
	}
}

// Close releases the embedder and store and flushes the logger
func (a *app) Close() error {
	err := errors.Join(a.emb.Close(), a.store.Close())
	_ = logging.Sync(a.logger)
	return err
}

// startMetricsServer serves /metrics on addr. An empty addr disables it. The
// returned function shuts the server down.
func startMetricsServer(addr string, logger *zap.Logger) (stop func()) {
	if addr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		<-done
	}
}
