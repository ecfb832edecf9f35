// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package index

import (
	"context"
	"unsafe"

	"github.com/AleutianAI/AleutianIndex/services/symbols/slab"
)

// Backend is the query contract a merged view satisfies. Alternative
// backends (disk-based, sharded) plug in behind the same interface.
type Backend interface {
	FuzzyFind(ctx context.Context, req FuzzyFindRequest) ([]slab.Symbol, bool, error)
	Lookup(ctx context.Context, ids []slab.SymbolID) ([]slab.Symbol, error)
	Occurrences(ctx context.Context, ids []slab.SymbolID, filter slab.OccurrenceKind) ([]slab.Occurrence, error)
	EstimateMemoryUsage() int
}

var _ Backend = (*MemIndex)(nil)

// EstimateMemoryUsage approximates the view's resident size in bytes.
//
// Description:
//
//	Sums the fixed-size structures plus the string payloads of every
//	winning symbol. The estimate ignores map bucket overhead and
//	shared string backing arrays, so it is a lower bound useful for
//	relative comparison, not an accounting figure.
func (idx *MemIndex) EstimateMemoryUsage() int {
	size := int(unsafe.Sizeof(*idx))
	size += len(idx.symbols) * int(unsafe.Sizeof((*slab.Symbol)(nil)))

	for _, sym := range idx.symbols {
		size += int(unsafe.Sizeof(*sym))
		size += len(sym.Name) + len(sym.Scope) + len(sym.Language)
		size += len(sym.CanonicalDeclaration.FileURI) + len(sym.Definition.FileURI)
		size += len(sym.Signature) + len(sym.CompletionSnippetSuffix)
		size += len(sym.Documentation) + len(sym.ReturnType) + len(sym.IncludeHeader)
	}
	for _, occs := range idx.occurrences {
		size += len(occs) * int(unsafe.Sizeof(slab.Occurrence{}))
		for i := range occs {
			size += len(occs[i].Location.FileURI)
		}
	}
	return size
}
