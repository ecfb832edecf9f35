// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package filetable tracks the per-file symbol slabs that back the
// merged index.
//
// The table is the single mutable point of the indexing pipeline.
// Extraction and slab construction happen outside the lock; the table
// only swaps frozen slab handles under a mutex, so updates from many
// files serialize cheaply and readers never block on parsing.
//
// Snapshots are consistent copies of the handle set. A snapshot keeps
// every slab it references alive regardless of later updates or
// removals, so queries running against an older snapshot stay valid
// while the table moves on.
package filetable

import (
	"sort"
	"sync"

	"github.com/AleutianAI/AleutianIndex/services/symbols/slab"
)

// FileSlabs is one file's contribution to a snapshot: its frozen
// symbol and occurrence slabs plus the update sequence that produced
// them.
type FileSlabs struct {
	// Path is the table key the slabs were stored under.
	Path string

	// Seq is the table-wide monotonic sequence assigned when this
	// file was last updated. Higher means more recent; the merged
	// index uses it to break ties between duplicate symbol IDs.
	Seq uint64

	// Symbols holds the file's symbols. Never nil in a snapshot.
	Symbols *slab.SymbolSlab

	// Occurrences holds the file's occurrences. Never nil in a
	// snapshot.
	Occurrences *slab.OccurrenceSlab
}

// Snapshot is an immutable, point-in-time view of the table.
//
// The slabs a snapshot references remain reachable, and therefore
// valid, for the snapshot's lifetime even if the table has since
// replaced or removed them. Dropping the last reference to a snapshot
// releases its slabs.
type Snapshot struct {
	files []FileSlabs
}

// Files returns the snapshot's per-file slabs in path order.
// The returned slice must not be modified.
func (s *Snapshot) Files() []FileSlabs {
	return s.files
}

// Len returns the number of files in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.files)
}

// TotalSymbols returns the symbol count summed across files,
// counting duplicates once per file.
func (s *Snapshot) TotalSymbols() int {
	n := 0
	for _, f := range s.files {
		n += f.Symbols.Len()
	}
	return n
}

// Table maps file paths to their current slabs.
//
// # Thread Safety
//
// All methods are safe for concurrent use. The internal mutex covers
// only handle swaps; slab construction and snapshot consumption happen
// outside it.
type Table struct {
	mu      sync.Mutex
	files   map[string]FileSlabs
	nextSeq uint64
}

// New creates an empty table.
func New() *Table {
	return &Table{files: make(map[string]FileSlabs)}
}

// Update replaces the slabs stored for path.
//
// Description:
//
//	Installs the given frozen slabs as path's current contribution
//	and stamps them with a fresh sequence number. Updates to the same
//	path are linearizable: concurrent callers serialize on the table
//	lock and the last one to acquire it wins. Existing snapshots are
//	unaffected.
//
// Inputs:
//
//	path - The table key, typically an absolute source path.
//	symbols - The file's symbol slab. Nil is treated as empty.
//	occurrences - The file's occurrence slab. Nil is treated as empty.
func (t *Table) Update(path string, symbols *slab.SymbolSlab, occurrences *slab.OccurrenceSlab) {
	if symbols == nil {
		symbols = slab.EmptySymbolSlab
	}
	if occurrences == nil {
		occurrences = slab.EmptyOccurrenceSlab
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextSeq++
	t.files[path] = FileSlabs{
		Path:        path,
		Seq:         t.nextSeq,
		Symbols:     symbols,
		Occurrences: occurrences,
	}
}

// Remove drops path's contribution. Removing an unknown path is a
// no-op: removal is idempotent and callers need not track what they
// have inserted.
//
// Outputs:
//   - bool: whether the path was present.
func (t *Table) Remove(path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.files[path]
	delete(t.files, path)
	return ok
}

// Snapshot copies the current handle set into an immutable view.
//
// The copy is shallow: slabs are shared, not duplicated, so a
// snapshot costs one slice allocation regardless of corpus size.
func (t *Table) Snapshot() *Snapshot {
	t.mu.Lock()
	files := make([]FileSlabs, 0, len(t.files))
	for _, f := range t.files {
		files = append(files, f)
	}
	t.mu.Unlock()

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return &Snapshot{files: files}
}

// Len returns the number of files currently tracked.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.files)
}

// Paths returns the tracked paths in sorted order.
func (t *Table) Paths() []string {
	t.mu.Lock()
	paths := make([]string, 0, len(t.files))
	for p := range t.files {
		paths = append(paths, p)
	}
	t.mu.Unlock()

	sort.Strings(paths)
	return paths
}
