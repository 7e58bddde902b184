package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/promptforge/internal/engine"
	"github.com/roach88/promptforge/internal/loader"
	"github.com/roach88/promptforge/internal/store"
)

// Error code constants - unified across all CLI commands. Load codes are
// shared with the loader package.
const (
	ErrCodeGeneric        = "E001"                     // Generic/unknown error
	ErrCodeInvalidArgs    = "E002"                     // Malformed flag or argument
	ErrCodeNoBundles      = "E003"                     // Bundle directory holds no loadable bundle
	ErrCodeUnknownBundle  = "E004"                     // Named bundle is not loaded
	ErrCodeNotFound       = loader.ErrCodeNotFound     // Path not found
	ErrCodeStore          = "E006"                     // Database error
	ErrCodeReadFailed     = loader.ErrCodeReadFailed   // File read error
	ErrCodeUnsupported    = loader.ErrCodeUnsupported  // Unknown bundle file extension
	ErrCodeDecodeFailed   = loader.ErrCodeDecodeFailed // JSON/YAML/CUE decode error
	ErrCodeGenerateFailed = "E010"                     // Generation request rejected
	ErrCodeTargetNotFound = "E011"                     // Targeting entry not found
	ErrCodeCompileFailed  = "E012"                     // Bundle document failed to compile
)

// session is the state shared by the bundle commands: every bundle in the
// bundle directory loaded into one engine, plus the persistence store.
type session struct {
	engine *engine.Engine
	store  *store.Store
	docs   map[string]*loader.Document
}

// openSession loads the bundle directory and opens the database. Callers
// must Close the session.
func openSession(opts *RootOptions, f *OutputFormatter) (*session, error) {
	logger := opts.logger()

	ld := loader.New(loader.WithLogger(logger))
	docs, err := ld.LoadDir(opts.bundleDir())
	if err != nil {
		return nil, failLoad(f, err)
	}

	var engOpts []engine.EngineOption
	engOpts = append(engOpts, engine.WithLogger(logger))
	if opts.Config.CycleLimit > 0 {
		engOpts = append(engOpts, engine.WithCycleLimit(opts.Config.CycleLimit))
	}
	if opts.Config.PassLimit > 0 {
		engOpts = append(engOpts, engine.WithPassLimit(opts.Config.PassLimit))
	}
	eng := engine.New(engOpts...)

	s := &session{engine: eng, docs: make(map[string]*loader.Document, len(docs))}
	for _, doc := range docs {
		name, err := eng.LoadBundle(doc.Data, "")
		if err != nil {
			f.VerboseLog("skipping %s: %v", doc.Path, err)
			continue
		}
		s.docs[name] = doc
	}
	if len(s.docs) == 0 {
		return nil, f.Fail(ExitCommandError, ErrCodeNoBundles, fmt.Sprintf("no loadable bundles in %s", opts.bundleDir()), nil)
	}
	f.VerboseLog("Loaded %d bundle(s) from %s", len(s.docs), opts.bundleDir())

	st, err := store.Open(opts.dbPath())
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	s.store = st
	return s, nil
}

// Close releases the database.
func (s *session) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

// use selects bundle in the engine and restores its persisted locks.
func (s *session) use(ctx context.Context, f *OutputFormatter, bundle string) error {
	if _, ok := s.engine.Bundle(bundle); !ok {
		return f.Fail(ExitCommandError, ErrCodeUnknownBundle,
			fmt.Sprintf("bundle %q not found (loaded: %v)", bundle, s.engine.Bundles()), nil)
	}
	s.engine.SelectBundle(bundle)

	overrides, err := s.store.LoadOverrides(ctx, bundle)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to load locks", err)
	}
	s.engine.ReplaceOverrides(overrides)

	if err := s.store.SetSelected(ctx, bundle); err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to record selection", err)
	}
	return nil
}

// hash returns the content hash of the file bundle was loaded from.
func (s *session) hash(bundle string) string {
	if doc, ok := s.docs[bundle]; ok {
		return doc.Hash
	}
	return ""
}

// sortedBundles lists loaded bundle names alphabetically.
func (s *session) sortedBundles() []string {
	names := s.engine.Bundles()
	slices.Sort(names)
	return names
}

// failLoad reports a loader failure, keeping the loader's error code.
func failLoad(f *OutputFormatter, err error) error {
	var loadErr *loader.LoadError
	if errors.As(err, &loadErr) {
		return f.Fail(ExitCommandError, loadErr.Code, loadErr.Message, err)
	}
	return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
}

func (o *RootOptions) bundleDir() string {
	if o.BundleDir != "" {
		return o.BundleDir
	}
	if o.Config.BundleDir != "" {
		return o.Config.BundleDir
	}
	return "bundles"
}

func (o *RootOptions) dbPath() string {
	if o.DBPath != "" {
		return o.DBPath
	}
	if o.Config.DBPath != "" {
		return o.Config.DBPath
	}
	return "promptforge.db"
}
