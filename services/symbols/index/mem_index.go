// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package index builds queryable merged views over file table
// snapshots.
//
// A MemIndex is constructed once from a snapshot and is immutable
// afterwards, so queries need no locking. Rebuilding after every batch
// of file updates is the coordinator's job; this package only answers
// queries against whatever snapshot it was given.
package index

import (
	"context"
	"sort"
	"strings"

	"github.com/AleutianAI/AleutianIndex/services/symbols/filetable"
	"github.com/AleutianAI/AleutianIndex/services/symbols/match"
	"github.com/AleutianAI/AleutianIndex/services/symbols/slab"
)

// checkInterval is how many candidates a scan visits between context
// checks.
const checkInterval = 1024

// FuzzyFindRequest describes one fuzzy symbol query.
type FuzzyFindRequest struct {
	// Query is the unqualified name fragment to match.
	Query string

	// Scopes restricts results to symbols whose Scope equals one of
	// the given qualifiers. Ignored when AnyScope is set. An empty
	// list with AnyScope unset matches only top-level symbols.
	Scopes []string

	// AnyScope disables scope filtering entirely.
	AnyScope bool

	// Limit bounds the result count. Zero means unlimited.
	Limit int

	// CompletionOnly restricts results to symbols marked as eligible
	// for code completion.
	CompletionOnly bool

	// ProximityPaths are file or directory paths near the query's
	// origin, forwarded to the matcher. Symbols declared under a hint
	// path win ties against equally ranked matches.
	ProximityPaths []string
}

// MemIndex is an immutable merged view over one snapshot.
//
// Duplicate symbol IDs contributed by several files are resolved at
// construction: the file with the highest update sequence wins, so the
// view reflects the freshest extraction of each symbol. Occurrences
// are never deduplicated; every file's sightings are merged.
//
// # Thread Safety
//
// A MemIndex is read-only after Build and safe for unlimited
// concurrent use.
type MemIndex struct {
	snapshot *filetable.Snapshot

	// symbols holds the deduplicated winners, pointers into the
	// snapshot's slabs.
	symbols []*slab.Symbol
	byID    map[slab.SymbolID]*slab.Symbol

	occurrences map[slab.SymbolID][]slab.Occurrence
}

// Build constructs a merged view over snap.
//
// Description:
//
//	Walks every file's slabs once, resolving duplicate IDs by update
//	recency and merging occurrence lists. The resulting index holds
//	pointers into the snapshot's slabs and keeps the snapshot, and
//	therefore the slabs, alive for its own lifetime.
//
// Inputs:
//
//	snap - The snapshot to index. Must not be nil.
//
// Outputs:
//
//	*MemIndex - The immutable merged view.
func Build(snap *filetable.Snapshot) *MemIndex {
	idx := &MemIndex{
		snapshot:    snap,
		byID:        make(map[slab.SymbolID]*slab.Symbol),
		occurrences: make(map[slab.SymbolID][]slab.Occurrence),
	}

	winnerSeq := make(map[slab.SymbolID]uint64)
	files := snap.Files()
	for fi := range files {
		f := &files[fi]
		all := f.Symbols.All()
		for si := range all {
			sym := &all[si]
			if prev, dup := winnerSeq[sym.ID]; !dup || f.Seq > prev {
				winnerSeq[sym.ID] = f.Seq
				idx.byID[sym.ID] = sym
			}
		}
		for _, id := range f.Occurrences.IDs() {
			idx.occurrences[id] = append(idx.occurrences[id], f.Occurrences.For(id)...)
		}
	}

	idx.symbols = make([]*slab.Symbol, 0, len(idx.byID))
	for _, sym := range idx.byID {
		idx.symbols = append(idx.symbols, sym)
	}
	sort.Slice(idx.symbols, func(i, j int) bool {
		return idx.symbols[i].ID.String() < idx.symbols[j].ID.String()
	})

	for _, occs := range idx.occurrences {
		sort.Slice(occs, func(i, j int) bool {
			return occurrenceLess(occs[i], occs[j])
		})
	}

	return idx
}

// Empty is a merged view over nothing. Queries against it succeed and
// return no results.
func Empty() *MemIndex {
	return Build(&filetable.Snapshot{})
}

// Len returns the number of distinct symbols in the view.
func (idx *MemIndex) Len() int {
	return len(idx.symbols)
}

// Symbols returns the deduplicated symbols in ID order, copied out of
// the view. Used for export; queries should prefer FuzzyFind/Lookup.
func (idx *MemIndex) Symbols() []slab.Symbol {
	out := make([]slab.Symbol, len(idx.symbols))
	for i, sym := range idx.symbols {
		out[i] = *sym
	}
	return out
}

// FuzzyFind returns symbols whose name matches the request query.
//
// Description:
//
//	Scans the deduplicated symbol set, scoring names with the match
//	package and filtering by scope. Function-local symbols are never
//	returned regardless of the request; they are indexed only for
//	occurrence queries. Results are ordered best-match-first, ties
//	broken by proximity hints and then name.
//
// Inputs:
//
//	ctx - Cancels long scans; checked periodically, not per symbol.
//	req - The query. A zero-value request lists top-level symbols.
//
// Outputs:
//
//	[]slab.Symbol - Matching symbols, copied out of the view.
//	bool - True when the result is complete, false when Limit
//	truncated it.
//	error - Only the context's error.
func (idx *MemIndex) FuzzyFind(ctx context.Context, req FuzzyFindRequest) ([]slab.Symbol, bool, error) {
	matcher := match.New(req.Query, req.ProximityPaths...)
	listAll := matcher.Empty()

	type scored struct {
		sym  *slab.Symbol
		rank match.Rank
		near bool
	}
	var results []scored

	for i, sym := range idx.symbols {
		if i%checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, false, err
			}
		}
		if sym.FunctionLocal {
			continue
		}
		if req.CompletionOnly && !sym.IndexedForCompletion {
			continue
		}
		if !req.AnyScope && !scopeAllowed(sym.Scope, req.Scopes) {
			continue
		}
		rank := match.RankExact
		if !listAll {
			rank = matcher.Score(sym.Name)
		}
		if rank != match.RankNone {
			results = append(results, scored{
				sym:  sym,
				rank: rank,
				near: matcher.Near(sym.CanonicalDeclaration.FileURI),
			})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].rank != results[j].rank {
			return results[i].rank < results[j].rank
		}
		if results[i].near != results[j].near {
			return results[i].near
		}
		a, b := results[i].sym, results[j].sym
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Scope < b.Scope
	})

	complete := true
	if req.Limit > 0 && len(results) > req.Limit {
		results = results[:req.Limit]
		complete = false
	}

	out := make([]slab.Symbol, len(results))
	for i, r := range results {
		out[i] = *r.sym
	}
	return out, complete, nil
}

// Lookup resolves IDs to full symbol records.
//
// Unknown IDs are skipped silently; the caller learns what exists from
// what comes back. Result order follows request order.
func (idx *MemIndex) Lookup(ctx context.Context, ids []slab.SymbolID) ([]slab.Symbol, error) {
	out := make([]slab.Symbol, 0, len(ids))
	for i, id := range ids {
		if i%checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if sym, ok := idx.byID[id]; ok {
			out = append(out, *sym)
		}
	}
	return out, nil
}

// Occurrences returns every recorded sighting of the given IDs whose
// kind intersects filter, in request order then location order.
func (idx *MemIndex) Occurrences(ctx context.Context, ids []slab.SymbolID, filter slab.OccurrenceKind) ([]slab.Occurrence, error) {
	var out []slab.Occurrence
	for i, id := range ids {
		if i%checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for _, occ := range idx.occurrences[id] {
			if occ.Kind.Intersects(filter) {
				out = append(out, occ)
			}
		}
	}
	return out, nil
}

// scopeAllowed reports whether scope matches the request's scope list.
// The empty qualifier must be requested explicitly as "".
func scopeAllowed(scope string, allowed []string) bool {
	if len(allowed) == 0 {
		return scope == ""
	}
	for _, want := range allowed {
		if scope == want {
			return true
		}
	}
	return false
}

func occurrenceLess(a, b slab.Occurrence) bool {
	if a.Location.FileURI != b.Location.FileURI {
		return a.Location.FileURI < b.Location.FileURI
	}
	if a.Location.Start.Line != b.Location.Start.Line {
		return a.Location.Start.Line < b.Location.Start.Line
	}
	return a.Location.Start.Column < b.Location.Start.Column
}

// Stats summarizes the view for diagnostics endpoints.
type Stats struct {
	Files       int `json:"files"`
	Symbols     int `json:"symbols"`
	Occurrences int `json:"occurrences"`
}

// Stats returns counts for the view.
func (idx *MemIndex) Stats() Stats {
	n := 0
	for _, occs := range idx.occurrences {
		n += len(occs)
	}
	return Stats{
		Files:       idx.snapshot.Len(),
		Symbols:     len(idx.symbols),
		Occurrences: n,
	}
}

// ScopeOf extracts the qualifier of a fully qualified name, splitting
// at the last "::" or ".". Used by HTTP handlers that accept qualified
// queries.
func ScopeOf(qualified string) (scope, name string) {
	if i := strings.LastIndex(qualified, "::"); i >= 0 {
		return qualified[:i+2], qualified[i+2:]
	}
	if i := strings.LastIndex(qualified, "."); i >= 0 {
		return qualified[:i+1], qualified[i+1:]
	}
	return "", qualified
}
