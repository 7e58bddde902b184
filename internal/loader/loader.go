// Package loader is the bundle-loading collaborator of the engine.
//
// It reads bundle files from disk (JSON, YAML or CUE), resolves $include
// directives, and hands the engine a self-contained document. The engine
// itself never performs I/O.
package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/roach88/promptforge/internal/ir"
)

// DefaultMaxIncludeDepth caps nested $include resolution.
const DefaultMaxIncludeDepth = 20

// Document is a decoded, include-resolved bundle file.
type Document struct {
	Path string
	Data any

	// Name is metadata.name, empty when absent.
	Name string

	// Hash is the content hash of Data (see ir.BundleHash).
	Hash string
}

// Loader reads bundle files.
type Loader struct {
	logger   *slog.Logger
	maxDepth int
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger used for include diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(ld *Loader) {
		ld.logger = l
	}
}

// WithMaxIncludeDepth overrides DefaultMaxIncludeDepth.
func WithMaxIncludeDepth(depth int) Option {
	return func(ld *Loader) {
		ld.maxDepth = depth
	}
}

// New creates a Loader.
func New(opts ...Option) *Loader {
	ld := &Loader{
		logger:   slog.Default(),
		maxDepth: DefaultMaxIncludeDepth,
	}
	for _, opt := range opts {
		opt(ld)
	}
	return ld
}

// LoadFile reads, decodes and include-resolves one bundle file.
// Include paths resolve relative to the including file.
func (ld *Loader) LoadFile(path string) (*Document, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	raw, err := Decode(path, data)
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	r := &includeResolver{loader: ld, active: map[string]bool{abs: true}}
	resolved := r.resolve(raw, filepath.Dir(abs), 0)

	doc := &Document{Path: path, Data: resolved}
	if root, ok := ir.AsObject(resolved); ok {
		if metaNode, ok := root.Get("metadata"); ok {
			if meta, ok := ir.AsObject(metaNode); ok {
				if name, ok := meta.Get("name"); ok {
					doc.Name, _ = name.(string)
				}
			}
		}
	}
	if hash, err := ir.BundleHash(resolved); err == nil {
		doc.Hash = hash
	} else {
		ld.logger.Debug("bundle hash unavailable", "path", path, "error", err)
	}
	return doc, nil
}

// LoadDir loads every bundle file directly inside dir, in file-name order.
// Subdirectories hold include fragments and are not scanned. Files that
// fail to load are logged and skipped; the returned error is non-nil only
// when dir itself cannot be read.
func (ld *Loader) LoadDir(dir string) ([]*Document, error) {
	paths, err := FindBundleFiles(dir)
	if err != nil {
		return nil, err
	}
	var docs []*Document
	for _, p := range paths {
		doc, err := ld.LoadFile(p)
		if err != nil {
			ld.logger.Error("failed to load bundle", "path", p, "error", err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// FindBundleFiles lists bundle files directly inside dir, sorted.
func FindBundleFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &LoadError{Code: ErrCodeNotFound, Path: dir, Message: "bundle directory not found", Err: err}
		}
		return nil, &LoadError{Code: ErrCodeReadFailed, Path: dir, Message: err.Error(), Err: err}
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !IsBundleFile(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	slices.Sort(paths)
	return paths, nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &LoadError{Code: ErrCodeNotFound, Path: path, Message: "file not found", Err: err}
		}
		return nil, &LoadError{Code: ErrCodeReadFailed, Path: path, Message: fmt.Sprintf("read failed: %v", err), Err: err}
	}
	return data, nil
}
