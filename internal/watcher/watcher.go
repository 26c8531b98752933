package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/dshills/docindex/internal/discovery"
	"github.com/dshills/docindex/internal/indexer"
	"github.com/dshills/docindex/pkg/types"
)

// DefaultDebounce is used when Options.Debounce is zero
const DefaultDebounce = 500 * time.Millisecond

// Handler applies document changes. *indexer.Indexer satisfies it.
type Handler interface {
	IndexDocument(ctx context.Context, doc types.SourceDocument) indexer.DocumentResult
	RemoveDocument(ctx context.Context, path string) error
}

// Options configures a Watcher
type Options struct {
	Debounce  time.Duration
	Discovery discovery.Options
}

// Watcher re-indexes documents under a root as they change
type Watcher struct {
	root      string
	handler   Handler
	opts      Options
	logger    *zap.Logger
	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer
}

// New creates a watcher for root. Run starts it.
func New(root string, handler Handler, opts Options, logger *zap.Logger) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve absolute path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", root)
	}

	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		root:      absRoot,
		handler:   handler,
		opts:      opts,
		logger:    logger.Named("watcher"),
		fsWatcher: fsw,
		debouncer: NewDebouncer(opts.Debounce),
	}, nil
}

// Run watches until ctx is cancelled. Changes already handed to the handler
// finish before Run returns; changes still inside the debounce window are
// dropped and picked up by the next full pass.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fsWatcher.Close() }()

	if err := w.addRecursive(w.root); err != nil {
		w.debouncer.Stop()
		return fmt.Errorf("add directories to watcher: %w", err)
	}
	w.logger.Info("watching for changes", zap.String("root", w.root), zap.Duration("debounce", w.opts.Debounce))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for batch := range w.debouncer.Output() {
			w.apply(ctx, batch)
		}
	}()
	defer wg.Wait()
	defer w.debouncer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

// handleEvent filters an fsnotify event and queues it for debouncing
func (w *Watcher) handleEvent(event fsnotify.Event) {
	info, statErr := os.Stat(event.Name)
	if statErr == nil && info.IsDir() {
		if event.Op&fsnotify.Create != 0 && !w.ignoredDir(event.Name) {
			w.addDirectory(event.Name)
		}
		return
	}

	if !discovery.Matches(event.Name, w.opts.Discovery) || discovery.Excluded(w.root, event.Name, w.opts.Discovery) {
		return
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0:
		op = OpDelete
	case event.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		return
	}

	w.debouncer.Add(FileEvent{Path: event.Name, Operation: op})
}

// addDirectory starts watching a new directory and queues the documents it
// already holds, since files written before the watch was added emit no event.
func (w *Watcher) addDirectory(dir string) {
	if err := w.addRecursive(dir); err != nil {
		w.logger.Warn("failed to watch directory", zap.String("dir", dir), zap.Error(err))
		return
	}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if discovery.Matches(path, w.opts.Discovery) && !discovery.Excluded(w.root, path, w.opts.Discovery) {
			w.debouncer.Add(FileEvent{Path: path, Operation: OpCreate})
		}
		return nil
	})
	if err != nil {
		w.logger.Warn("failed to scan directory", zap.String("dir", dir), zap.Error(err))
	}
}

// apply hands one debounced batch to the handler
func (w *Watcher) apply(ctx context.Context, batch []FileEvent) {
	for _, event := range batch {
		if ctx.Err() != nil {
			return
		}

		docPath, err := discovery.NormalizePath(w.root, event.Path)
		if err != nil {
			w.logger.Warn("skipping event outside root", zap.String("file", event.Path), zap.Error(err))
			continue
		}

		if !event.Operation.Removes() {
			doc, err := discovery.Load(w.root, event.Path)
			switch {
			case err == nil:
				result := w.handler.IndexDocument(ctx, doc)
				w.logger.Debug("applied change",
					zap.String("path", docPath),
					zap.Stringer("operation", event.Operation),
					zap.String("status", string(result.Status)),
				)
				continue
			case errors.Is(err, fs.ErrNotExist):
				// Gone before the window closed
			default:
				w.logger.Warn("failed to load document", zap.String("path", docPath), zap.Error(err))
				continue
			}
		}

		if err := w.handler.RemoveDocument(ctx, docPath); err != nil {
			w.logger.Error("failed to remove document", zap.String("path", docPath), zap.Error(err))
		}
	}
}

// addRecursive adds dir and every non-excluded directory below it
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.ignoredDir(path) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

// ignoredDir reports whether dir itself or one of its parents is excluded
func (w *Watcher) ignoredDir(dir string) bool {
	return discovery.Excluded(w.root, filepath.Join(dir, "x"), w.opts.Discovery)
}
