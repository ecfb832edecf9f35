// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package symbols provides the symbol index HTTP service.
//
// The service maintains a per-file symbol table fed by extraction and
// serves queries from an immutable merged view that is rebuilt after
// every batch of updates:
//   - Updating and removing files, one at a time or by tree walk
//   - Fuzzy name queries, ID lookup, and occurrence queries
//   - Offline export and import of the symbol corpus
package symbols

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianIndex/pkg/validation"
	"github.com/AleutianAI/AleutianIndex/services/symbols/extract"
	"github.com/AleutianAI/AleutianIndex/services/symbols/filetable"
	"github.com/AleutianAI/AleutianIndex/services/symbols/index"
	"github.com/AleutianAI/AleutianIndex/services/symbols/interchange"
	"github.com/AleutianAI/AleutianIndex/services/symbols/locator"
	"github.com/AleutianAI/AleutianIndex/services/symbols/slab"
)

// Config configures the symbol index service.
type Config struct {
	// MaxFileSize is the largest single file extraction accepts.
	// Default: 10MB
	MaxFileSize int64

	// MaxTreeFiles caps how many files one tree walk may index.
	// Default: 10000
	MaxTreeFiles int

	// MaxTreeSize caps the total bytes one tree walk may read.
	// Default: 100MB
	MaxTreeSize int64

	// QueryCacheSize is the fuzzy query cache capacity in entries.
	// Default: 256
	QueryCacheSize int

	// DefaultQueryLimit bounds fuzzy results when a request does not.
	// Default: 100
	DefaultQueryLimit int

	// Parallelism is the tree walk worker count.
	// Default: GOMAXPROCS
	Parallelism int

	// URISchemes is the scheme preference order for location URIs.
	URISchemes []string

	// AllowedRoots is an optional allowlist of path prefixes for
	// update and tree operations. Empty allows all absolute paths.
	AllowedRoots []string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxFileSize:       extract.DefaultMaxFileSize,
		MaxTreeFiles:      10000,
		MaxTreeSize:       100 * 1024 * 1024,
		QueryCacheSize:    256,
		DefaultQueryLimit: 100,
		Parallelism:       runtime.GOMAXPROCS(0),
	}
}

// Service coordinates extraction, the file table, and the merged view.
//
// Description:
//
//	Updates flow through the file table, which serializes handle
//	swaps; extraction runs outside any lock. After every update batch
//	the service rebuilds an immutable merged view and publishes it
//	with an atomic pointer swap, so queries always see a consistent
//	snapshot and never block on writers.
//
// Thread Safety:
//
//	Service is safe for concurrent use. Any combination of updates
//	and queries may run simultaneously.
type Service struct {
	config    Config
	extractor *extract.Extractor
	registry  *locator.Registry
	table     *filetable.Table
	cache     *queryCache
	logger    *slog.Logger

	current    atomic.Pointer[index.MemIndex]
	generation atomic.Uint64

	// rebuildMu serializes snapshot-build-swap so a stale view can
	// never overwrite a fresher one.
	rebuildMu sync.Mutex
}

// NewService creates a symbol index service.
func NewService(config Config) (*Service, error) {
	if config.MaxFileSize <= 0 {
		config.MaxFileSize = extract.DefaultMaxFileSize
	}
	if config.MaxTreeFiles <= 0 {
		config.MaxTreeFiles = 10000
	}
	if config.MaxTreeSize <= 0 {
		config.MaxTreeSize = 100 * 1024 * 1024
	}
	if config.QueryCacheSize <= 0 {
		config.QueryCacheSize = 256
	}
	if config.DefaultQueryLimit <= 0 {
		config.DefaultQueryLimit = 100
	}
	if config.Parallelism <= 0 {
		config.Parallelism = runtime.GOMAXPROCS(0)
	}

	cache, err := newQueryCache(config.QueryCacheSize)
	if err != nil {
		return nil, err
	}

	registry := locator.NewRegistry()
	svc := &Service{
		config:   config,
		registry: registry,
		extractor: extract.New(
			extract.WithMaxFileSize(config.MaxFileSize),
			extract.WithRegistry(registry),
			extract.WithURISchemes(config.URISchemes...),
		),
		table:  filetable.New(),
		cache:  cache,
		logger: slog.Default().With(slog.String("service", "symbols")),
	}
	svc.current.Store(index.Empty())
	return svc, nil
}

// Registry exposes the locator registry so embedders can add custom
// URI schemes before indexing.
func (s *Service) Registry() *locator.Registry {
	return s.registry
}

// UpdateFile indexes one file's content under path.
//
// Description:
//
//	Parses and extracts outside any lock, installs the resulting
//	slabs in the file table, and rebuilds the merged view. A file
//	that fails to parse cleanly still contributes what extraction
//	recovered; a file that cannot be parsed at all contributes empty
//	slabs and stays tracked, so a later good save replaces it
//	without special cases.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	path - Absolute path the content belongs to.
//	content - The file's source text.
//
// Outputs:
//
//	*UpdateFileResponse - What the file now contributes.
//	error - ErrRelativePath, ErrPathTraversal, or the context's error.
func (s *Service) UpdateFile(ctx context.Context, path string, content []byte) (*UpdateFileResponse, error) {
	ctx, span := tracer.Start(ctx, "symbols.UpdateFile",
		trace.WithAttributes(
			attribute.String("symbols.path", path),
			attribute.Int("symbols.content_bytes", len(content)),
		),
	)
	defer span.End()

	if err := s.validatePath(path); err != nil {
		return nil, err
	}

	syms, occs, degraded, err := s.extractFile(ctx, path, content)
	if err != nil {
		return nil, err
	}

	s.table.Update(path, syms, occs)
	updatesTotal.WithLabelValues("update").Inc()
	s.rebuild()

	return &UpdateFileResponse{
		Path:        path,
		Symbols:     syms.Len(),
		Occurrences: occs.Len(),
		ParseErrors: degraded,
	}, nil
}

// UpdateParsed indexes an already-parsed unit under path. A nil unit
// removes the path, mirroring how editors drop closed buffers.
func (s *Service) UpdateParsed(ctx context.Context, path string, unit *extract.ParsedUnit) (*UpdateFileResponse, error) {
	if err := s.validatePath(path); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if unit == nil {
		resp, err := s.RemoveFile(path)
		if err != nil {
			return nil, err
		}
		return &UpdateFileResponse{Path: resp.Path}, nil
	}

	syms, occs := s.extractor.Extract(unit)
	s.table.Update(path, syms, occs)
	updatesTotal.WithLabelValues("update").Inc()
	s.rebuild()

	return &UpdateFileResponse{
		Path:        path,
		Symbols:     syms.Len(),
		Occurrences: occs.Len(),
		ParseErrors: unit.HasSyntaxErrors,
	}, nil
}

// RemoveFile drops path's contribution and rebuilds. Removing a path
// that was never indexed is a no-op reported in the response, not an
// error.
func (s *Service) RemoveFile(path string) (*RemoveFileResponse, error) {
	if err := s.validatePath(path); err != nil {
		return nil, err
	}

	removed := s.table.Remove(path)
	if removed {
		updatesTotal.WithLabelValues("remove").Inc()
		s.rebuild()
	}
	return &RemoveFileResponse{Path: path, Removed: removed}, nil
}

// IndexTree walks root and indexes every matching file.
//
// Description:
//
//	Collects the file list first, enforcing count and size limits,
//	then extracts files concurrently. The merged view is rebuilt
//	once at the end: partial progress is invisible to queries.
//
// Outputs:
//
//	*IndexTreeResponse - Walk statistics, including per-file errors.
//	error - Validation failure, ErrTreeTooLarge, or the context's
//	error.
func (s *Service) IndexTree(ctx context.Context, root string, excludes []string) (*IndexTreeResponse, error) {
	ctx, span := tracer.Start(ctx, "symbols.IndexTree",
		trace.WithAttributes(attribute.String("symbols.root", root)),
	)
	defer span.End()

	if err := s.validatePath(root); err != nil {
		return nil, err
	}
	if len(excludes) == 0 {
		excludes = []string{"vendor", ".*"}
	}
	start := time.Now()

	paths, err := s.collectTree(ctx, root, excludes)
	if err != nil {
		return nil, err
	}

	var (
		mu       sync.Mutex
		indexed  int
		failures []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Parallelism)
	for _, path := range paths {
		g.Go(func() error {
			content, err := os.ReadFile(path)
			if err != nil {
				mu.Lock()
				failures = append(failures, fmt.Sprintf("%s: %v", path, err))
				mu.Unlock()
				return nil
			}
			syms, occs, degraded, err := s.extractFile(gctx, path, content)
			if err != nil {
				return err
			}
			s.table.Update(path, syms, occs)
			updatesTotal.WithLabelValues("update").Inc()

			mu.Lock()
			indexed++
			if degraded {
				failures = append(failures, fmt.Sprintf("%s: syntax errors", path))
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.rebuild()
	idx := s.current.Load()

	s.logger.Info("tree indexed",
		slog.String("root", root),
		slog.Int("files", indexed),
		slog.Int("symbols", idx.Len()),
		slog.Duration("elapsed", time.Since(start)))

	return &IndexTreeResponse{
		FilesIndexed: indexed,
		Symbols:      idx.Len(),
		WalkTimeMs:   time.Since(start).Milliseconds(),
		Errors:       failures,
	}, nil
}

// ApplyChanges is the filesystem watcher's entry point: it reindexes
// changed paths, drops removed ones, and rebuilds once.
func (s *Service) ApplyChanges(ctx context.Context, changed, removed []string) {
	dirty := false
	for _, path := range changed {
		content, err := os.ReadFile(path)
		if err != nil {
			// Raced with a delete; the remove event will follow.
			continue
		}
		syms, occs, _, err := s.extractFile(ctx, path, content)
		if err != nil {
			return
		}
		s.table.Update(path, syms, occs)
		updatesTotal.WithLabelValues("update").Inc()
		dirty = true
	}
	for _, path := range removed {
		if s.table.Remove(path) {
			updatesTotal.WithLabelValues("remove").Inc()
			dirty = true
		}
	}
	if dirty {
		s.rebuild()
	}
}

// FuzzyFind answers a fuzzy name query against the current view.
func (s *Service) FuzzyFind(ctx context.Context, req index.FuzzyFindRequest) ([]slab.Symbol, bool, error) {
	if req.Limit <= 0 {
		req.Limit = s.config.DefaultQueryLimit
	}

	gen := s.generation.Load()
	if res, ok := s.cache.get(gen, req); ok {
		return res.symbols, res.complete, nil
	}

	timer := time.Now()
	syms, complete, err := s.current.Load().FuzzyFind(ctx, req)
	if err != nil {
		return nil, false, err
	}
	querySeconds.WithLabelValues("fuzzy_find").Observe(time.Since(timer).Seconds())

	s.cache.put(gen, req, cachedFuzzy{symbols: syms, complete: complete})
	return syms, complete, nil
}

// Lookup resolves IDs against the current view.
func (s *Service) Lookup(ctx context.Context, ids []slab.SymbolID) ([]slab.Symbol, error) {
	timer := time.Now()
	syms, err := s.current.Load().Lookup(ctx, ids)
	if err != nil {
		return nil, err
	}
	querySeconds.WithLabelValues("lookup").Observe(time.Since(timer).Seconds())
	return syms, nil
}

// Occurrences resolves occurrence queries against the current view.
func (s *Service) Occurrences(ctx context.Context, ids []slab.SymbolID, filter slab.OccurrenceKind) ([]slab.Occurrence, error) {
	timer := time.Now()
	occs, err := s.current.Load().Occurrences(ctx, ids, filter)
	if err != nil {
		return nil, err
	}
	querySeconds.WithLabelValues("occurrences").Observe(time.Since(timer).Seconds())
	return occs, nil
}

// Stats summarizes the live index.
func (s *Service) Stats() StatsResponse {
	idx := s.current.Load()
	stats := idx.Stats()
	return StatsResponse{
		Files:                stats.Files,
		Symbols:              stats.Symbols,
		Occurrences:          stats.Occurrences,
		Generation:           s.generation.Load(),
		EstimatedMemoryBytes: idx.EstimateMemoryUsage(),
	}
}

// FileCount returns the number of files currently indexed.
func (s *Service) FileCount() int {
	return s.table.Len()
}

// Export writes the current merged view to w in interchange format.
func (s *Service) Export(w io.Writer) error {
	return interchange.Export(w, s.current.Load().Symbols())
}

// ImportStream loads an interchange stream as one virtual file keyed
// by name. Re-importing the same name replaces the earlier load.
//
// Outputs:
//   - int: symbols imported.
//   - error: decode or validation failure; nothing is installed on
//     error.
func (s *Service) ImportStream(name string, r io.Reader) (int, error) {
	imported, err := interchange.ImportSlab(r)
	if err != nil {
		return 0, err
	}
	s.table.Update("interchange://"+name, imported, nil)
	updatesTotal.WithLabelValues("import").Inc()
	s.rebuild()
	return imported.Len(), nil
}

// extractFile parses and extracts one file. Parse failures other than
// cancellation degrade to empty slabs so the file stays tracked.
func (s *Service) extractFile(ctx context.Context, path string, content []byte) (*slab.SymbolSlab, *slab.OccurrenceSlab, bool, error) {
	unit, err := s.extractor.Parse(ctx, path, content)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, false, ctx.Err()
		}
		s.logger.Warn("extraction failed, indexing empty contribution",
			slog.String("path", path),
			slog.String("error", err.Error()))
		extractionErrorsTotal.Inc()
		return slab.EmptySymbolSlab, slab.EmptyOccurrenceSlab, true, nil
	}
	defer unit.Close()

	if unit.HasSyntaxErrors {
		extractionErrorsTotal.Inc()
	}
	syms, occs := s.extractor.Extract(unit)
	return syms, occs, unit.HasSyntaxErrors, nil
}

// rebuild snapshots the table, builds a fresh merged view, and swaps
// it in. Serialized so views are published in snapshot order.
func (s *Service) rebuild() {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	start := time.Now()
	snap := s.table.Snapshot()
	idx := index.Build(snap)
	s.current.Store(idx)
	s.generation.Add(1)

	rebuildSeconds.Observe(time.Since(start).Seconds())
	indexedFiles.Set(float64(snap.Len()))
	indexedSymbols.Set(float64(idx.Len()))
}

// collectTree walks root and returns the files to index, enforcing
// tree limits before any extraction starts.
func (s *Service) collectTree(ctx context.Context, root string, excludes []string) ([]string, error) {
	var (
		paths     []string
		totalSize int64
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil // Skip unreadable entries.
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			for _, pattern := range excludes {
				if matched, _ := filepath.Match(pattern, d.Name()); matched {
					return filepath.SkipDir
				}
			}
			return nil
		}
		for _, pattern := range excludes {
			if matched, _ := filepath.Match(pattern, rel); matched {
				return nil
			}
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		totalSize += info.Size()
		if totalSize > s.config.MaxTreeSize {
			return ErrTreeTooLarge
		}
		paths = append(paths, path)
		if len(paths) > s.config.MaxTreeFiles {
			return ErrTreeTooLarge
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// validatePath enforces the service's path policy.
func (s *Service) validatePath(path string) error {
	if err := validation.ValidateAbsolutePath(path); err != nil {
		return err
	}
	return validation.ValidateWithinRoots(path, s.config.AllowedRoots)
}
