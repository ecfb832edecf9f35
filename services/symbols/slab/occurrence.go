// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package slab

import (
	"sort"
	"strings"
)

// OccurrenceKind is a bitmask classifying how a symbol appears at a
// source location. A single occurrence may carry several bits, e.g. a
// Go function definition is both Declaration and Definition.
type OccurrenceKind uint8

const (
	// OccurrenceDeclaration marks a declaration site.
	OccurrenceDeclaration OccurrenceKind = 1 << iota

	// OccurrenceDefinition marks a definition site.
	OccurrenceDefinition

	// OccurrenceReference marks a plain use.
	OccurrenceReference

	// OccurrenceAll matches every occurrence kind.
	OccurrenceAll = OccurrenceDeclaration | OccurrenceDefinition | OccurrenceReference
)

// Has reports whether k carries every bit in want.
func (k OccurrenceKind) Has(want OccurrenceKind) bool {
	return k&want == want
}

// Intersects reports whether k shares any bit with filter.
func (k OccurrenceKind) Intersects(filter OccurrenceKind) bool {
	return k&filter != 0
}

// String renders the set bits as "declaration|definition|reference".
func (k OccurrenceKind) String() string {
	if k == 0 {
		return "none"
	}
	var parts []string
	if k.Has(OccurrenceDeclaration) {
		parts = append(parts, "declaration")
	}
	if k.Has(OccurrenceDefinition) {
		parts = append(parts, "definition")
	}
	if k.Has(OccurrenceReference) {
		parts = append(parts, "reference")
	}
	return strings.Join(parts, "|")
}

// Occurrence records one appearance of a symbol at a source location.
type Occurrence struct {
	Location SymbolLocation `json:"location" yaml:"Location"`
	Kind     OccurrenceKind `json:"kind" yaml:"Kind"`
}

// OccurrenceSlab is a frozen multimap from SymbolID to the locations
// where that symbol appears in one file.
//
// Like SymbolSlab, an OccurrenceSlab is immutable after Build and safe
// for unsynchronized concurrent reads.
type OccurrenceSlab struct {
	byID map[SymbolID][]Occurrence
	n    int
}

// EmptyOccurrenceSlab is the canonical empty occurrence slab.
var EmptyOccurrenceSlab = &OccurrenceSlab{}

// Len returns the total occurrence count across all symbols.
func (s *OccurrenceSlab) Len() int {
	return s.n
}

// For returns the occurrences recorded for id, in location order.
//
// The returned slice aliases the slab's storage; callers must not
// modify it. Returns nil when the slab has no occurrences for id.
func (s *OccurrenceSlab) For(id SymbolID) []Occurrence {
	if s.byID == nil {
		return nil
	}
	return s.byID[id]
}

// IDs returns the symbol IDs present in the slab, in sorted order.
func (s *OccurrenceSlab) IDs() []SymbolID {
	ids := make([]SymbolID, 0, len(s.byID))
	for id := range s.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return less(ids[i], ids[j]) })
	return ids
}

// OccurrenceBuilder accumulates occurrences for a single file.
//
// Builders are single-goroutine; only the built slab is shareable.
type OccurrenceBuilder struct {
	byID map[SymbolID][]Occurrence
	n    int
}

// NewOccurrenceBuilder creates an empty occurrence builder.
func NewOccurrenceBuilder() *OccurrenceBuilder {
	return &OccurrenceBuilder{byID: make(map[SymbolID][]Occurrence)}
}

// Insert records one occurrence of id. Duplicates are kept; the
// extractor is trusted to report each site once.
func (b *OccurrenceBuilder) Insert(id SymbolID, occ Occurrence) {
	b.byID[id] = append(b.byID[id], occ)
	b.n++
}

// Build freezes the accumulated occurrences into an immutable slab.
// Each symbol's occurrences are sorted by location for deterministic
// query output. The builder must not be used after Build.
func (b *OccurrenceBuilder) Build() *OccurrenceSlab {
	if b.n == 0 {
		return EmptyOccurrenceSlab
	}
	for _, occs := range b.byID {
		sort.Slice(occs, func(i, j int) bool {
			return locationLess(occs[i].Location, occs[j].Location)
		})
	}
	out := &OccurrenceSlab{byID: b.byID, n: b.n}
	b.byID = nil
	return out
}

func locationLess(a, b SymbolLocation) bool {
	if a.FileURI != b.FileURI {
		return a.FileURI < b.FileURI
	}
	if a.Start.Line != b.Start.Line {
		return a.Start.Line < b.Start.Line
	}
	return a.Start.Column < b.Start.Column
}
