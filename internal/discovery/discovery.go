package discovery

import (
	"context"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dshills/docindex/pkg/types"
)

// DefaultExtensions are the markdown extensions discovered when none are configured
var DefaultExtensions = []string{".md", ".mdx"}

// DefaultExcludeDirs are directory names never descended into
var DefaultExcludeDirs = []string{"node_modules", "vendor"}

// Options controls which files are discovered
type Options struct {
	Extensions    []string // File extensions to include (default: .md, .mdx)
	ExcludeDirs   []string // Directory names to skip (default: node_modules, vendor)
	IncludeHidden bool     // Descend into dot-directories and read dot-files
}

func (o Options) withDefaults() Options {
	if len(o.Extensions) == 0 {
		o.Extensions = DefaultExtensions
	}
	if o.ExcludeDirs == nil {
		o.ExcludeDirs = DefaultExcludeDirs
	}
	return o
}

// Walk yields every document under root in lexical order. The sequence is lazy:
// files are read only as the consumer advances. Failures to walk or read are
// yielded as errors wrapping types.ErrDiscovery; iteration stops after the first.
func Walk(ctx context.Context, root string, opts Options) iter.Seq2[types.SourceDocument, error] {
	opts = opts.withDefaults()

	return func(yield func(types.SourceDocument, error) bool) {
		info, err := os.Stat(root)
		if err != nil {
			yield(types.SourceDocument{}, fmt.Errorf("%w: %v", types.ErrDiscovery, err))
			return
		}
		if !info.IsDir() {
			yield(types.SourceDocument{}, fmt.Errorf("%w: %s is not a directory", types.ErrDiscovery, root))
			return
		}

		stopped := false
		walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			if d.IsDir() {
				if path != root && skipDir(d.Name(), opts) {
					return filepath.SkipDir
				}
				return nil
			}

			if !d.Type().IsRegular() || !Matches(path, opts) {
				return nil
			}

			doc, err := Load(root, path)
			if err != nil {
				return err
			}
			if !yield(doc, nil) {
				stopped = true
				return filepath.SkipAll
			}
			return nil
		})

		if walkErr != nil && !stopped {
			if ctx.Err() != nil && walkErr == ctx.Err() {
				yield(types.SourceDocument{}, walkErr)
				return
			}
			yield(types.SourceDocument{}, fmt.Errorf("%w: %v", types.ErrDiscovery, walkErr))
		}
	}
}

// Load reads a single file under root into a SourceDocument
func Load(root, path string) (types.SourceDocument, error) {
	docPath, err := NormalizePath(root, path)
	if err != nil {
		return types.SourceDocument{}, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return types.SourceDocument{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return types.SourceDocument{Path: docPath, Text: string(content)}, nil
}

// NormalizePath converts a file path into the stable document path: relative to
// root, slash-separated, with a leading slash and the markdown extension removed.
// "data/guide/intro.mdx" under root "data" becomes "/guide/intro".
func NormalizePath(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("failed to relativize %s: %w", path, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside %s", path, root)
	}

	rel = filepath.ToSlash(rel)
	for _, ext := range []string{".mdx", ".md"} {
		if strings.HasSuffix(strings.ToLower(rel), ext) {
			rel = rel[:len(rel)-len(ext)]
			break
		}
	}
	return "/" + rel, nil
}

// Matches reports whether path names a file Walk would yield
func Matches(path string, opts Options) bool {
	opts = opts.withDefaults()

	name := filepath.Base(path)
	if !opts.IncludeHidden && strings.HasPrefix(name, ".") {
		return false
	}

	ext := strings.ToLower(filepath.Ext(name))
	return slices.Contains(opts.Extensions, ext)
}

// Excluded reports whether any directory between root and path is skipped by opts
func Excluded(root, path string, opts Options) bool {
	opts = opts.withDefaults()

	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil || rel == "." {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if skipDir(part, opts) {
			return true
		}
	}
	return false
}

func skipDir(name string, opts Options) bool {
	if !opts.IncludeHidden && strings.HasPrefix(name, ".") && name != "." && name != ".." {
		return true
	}
	return slices.Contains(opts.ExcludeDirs, name)
}
