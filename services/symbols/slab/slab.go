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
	"bytes"
	"sort"
)

// SymbolSlab is a frozen, ID-sorted collection of symbols.
//
// A SymbolSlab is produced by a Builder and never modified afterwards,
// so any number of goroutines may read it without synchronization. The
// slab owns its backing slice; callers must not mutate returned symbols
// in place.
type SymbolSlab struct {
	symbols []Symbol
}

// EmptySymbolSlab is the canonical zero-symbol slab. Safe to share.
var EmptySymbolSlab = &SymbolSlab{}

// Len returns the number of symbols in the slab.
func (s *SymbolSlab) Len() int {
	return len(s.symbols)
}

// Find returns a pointer to the symbol with the given ID, or nil.
//
// The returned pointer aliases the slab's backing storage and stays
// valid as long as the slab is reachable. Callers must treat it as
// read-only.
func (s *SymbolSlab) Find(id SymbolID) *Symbol {
	i := sort.Search(len(s.symbols), func(i int) bool {
		return !less(s.symbols[i].ID, id)
	})
	if i < len(s.symbols) && s.symbols[i].ID == id {
		return &s.symbols[i]
	}
	return nil
}

// All returns the slab's symbols in ID order.
//
// The returned slice aliases the slab's backing storage; callers must
// not modify it.
func (s *SymbolSlab) All() []Symbol {
	return s.symbols
}

// Builder accumulates symbols for a single file and freezes them into
// a SymbolSlab.
//
// # Thread Safety
//
// Builders are single-goroutine. Only the built slab is shareable.
type Builder struct {
	byID map[SymbolID]Symbol
}

// NewBuilder creates an empty symbol slab builder.
func NewBuilder() *Builder {
	return &Builder{byID: make(map[SymbolID]Symbol)}
}

// Insert adds a symbol, replacing any earlier symbol with the same ID.
//
// Last-wins replacement keeps the builder deterministic when an
// extractor reports the same symbol twice for one file: the most
// recent, and usually most complete, record survives.
func (b *Builder) Insert(sym Symbol) {
	b.byID[sym.ID] = sym
}

// Len returns the number of distinct symbols inserted so far.
func (b *Builder) Len() int {
	return len(b.byID)
}

// Build freezes the accumulated symbols into an immutable slab.
//
// The builder must not be used after Build. Symbols are sorted by ID
// so Find can binary-search and merged iteration stays deterministic.
func (b *Builder) Build() *SymbolSlab {
	if len(b.byID) == 0 {
		return EmptySymbolSlab
	}
	symbols := make([]Symbol, 0, len(b.byID))
	for _, sym := range b.byID {
		symbols = append(symbols, sym)
	}
	sort.Slice(symbols, func(i, j int) bool {
		return less(symbols[i].ID, symbols[j].ID)
	})
	b.byID = nil
	return &SymbolSlab{symbols: symbols}
}

func less(a, b SymbolID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}
