// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package interchange serializes symbols to and from the YAML stream
// format used for offline index exchange.
//
// The stream is a sequence of YAML documents, one symbol per document,
// with IDs rendered as fixed-width hex. The format is tool-facing:
// stable field names, no Go-specific types, and forgiving import that
// skips nothing silently but reports the offending document.
package interchange

import (
	"fmt"

	"github.com/AleutianAI/AleutianIndex/services/symbols/slab"
)

// KindInfo carries the symbol's classification in the stream.
type KindInfo struct {
	Kind string `yaml:"Kind"`
	Lang string `yaml:"Lang,omitempty"`
}

// LocationRecord is a symbol location in the stream.
type LocationRecord struct {
	FileURI string      `yaml:"FileURI"`
	Start   PointRecord `yaml:"Start"`
	End     PointRecord `yaml:"End"`
}

// PointRecord is a zero-based line/column pair in the stream.
type PointRecord struct {
	Line   uint32 `yaml:"Line"`
	Column uint32 `yaml:"Column"`
}

// Record is one symbol document in the stream.
type Record struct {
	ID                         string          `yaml:"ID"`
	Name                       string          `yaml:"Name"`
	Scope                      string          `yaml:"Scope,omitempty"`
	SymInfo                    KindInfo        `yaml:"SymInfo"`
	CanonicalDeclaration       *LocationRecord `yaml:"CanonicalDeclaration,omitempty"`
	Definition                 *LocationRecord `yaml:"Definition,omitempty"`
	References                 uint32          `yaml:"References,omitempty"`
	IsIndexedForCodeCompletion bool            `yaml:"IsIndexedForCodeCompletion,omitempty"`
	FunctionLocal              bool            `yaml:"FunctionLocal,omitempty"`
	Signature                  string          `yaml:"Signature,omitempty"`
	CompletionSnippetSuffix    string          `yaml:"CompletionSnippetSuffix,omitempty"`
	Documentation              string          `yaml:"Documentation,omitempty"`
	ReturnType                 string          `yaml:"ReturnType,omitempty"`
	IncludeHeader              string          `yaml:"IncludeHeader,omitempty"`
}

// FromSymbol renders a symbol as a stream record.
func FromSymbol(sym *slab.Symbol) Record {
	return Record{
		ID:    sym.ID.String(),
		Name:  sym.Name,
		Scope: sym.Scope,
		SymInfo: KindInfo{
			Kind: sym.Kind.String(),
			Lang: sym.Language,
		},
		CanonicalDeclaration:       locationRecord(sym.CanonicalDeclaration),
		Definition:                 locationRecord(sym.Definition),
		References:                 sym.References,
		IsIndexedForCodeCompletion: sym.IndexedForCompletion,
		FunctionLocal:              sym.FunctionLocal,
		Signature:                  sym.Signature,
		CompletionSnippetSuffix:    sym.CompletionSnippetSuffix,
		Documentation:              sym.Documentation,
		ReturnType:                 sym.ReturnType,
		IncludeHeader:              sym.IncludeHeader,
	}
}

// ToSymbol converts a stream record back into a symbol.
//
// Outputs:
//   - slab.Symbol: the decoded symbol.
//   - error: when the ID is malformed or the symbol fails validation.
func (r *Record) ToSymbol() (slab.Symbol, error) {
	id, err := slab.ParseSymbolID(r.ID)
	if err != nil {
		return slab.Symbol{}, fmt.Errorf("interchange: record %q: %w", r.Name, err)
	}
	sym := slab.Symbol{
		ID:                      id,
		Name:                    r.Name,
		Scope:                   r.Scope,
		Kind:                    slab.ParseSymbolKind(r.SymInfo.Kind),
		Language:                r.SymInfo.Lang,
		References:              r.References,
		FunctionLocal:           r.FunctionLocal,
		IndexedForCompletion:    r.IsIndexedForCodeCompletion,
		Signature:               r.Signature,
		CompletionSnippetSuffix: r.CompletionSnippetSuffix,
		Documentation:           r.Documentation,
		ReturnType:              r.ReturnType,
		IncludeHeader:           r.IncludeHeader,
	}
	if r.CanonicalDeclaration != nil {
		sym.CanonicalDeclaration = symbolLocation(*r.CanonicalDeclaration)
	}
	if r.Definition != nil {
		sym.Definition = symbolLocation(*r.Definition)
	}
	if err := sym.Validate(); err != nil {
		return slab.Symbol{}, fmt.Errorf("interchange: record %q: %w", r.Name, err)
	}
	return sym, nil
}

func locationRecord(loc slab.SymbolLocation) *LocationRecord {
	if !loc.IsValid() {
		return nil
	}
	return &LocationRecord{
		FileURI: loc.FileURI,
		Start:   PointRecord{Line: loc.Start.Line, Column: loc.Start.Column},
		End:     PointRecord{Line: loc.End.Line, Column: loc.End.Column},
	}
}

func symbolLocation(rec LocationRecord) slab.SymbolLocation {
	return slab.SymbolLocation{
		FileURI: rec.FileURI,
		Start:   slab.Position{Line: rec.Start.Line, Column: rec.Start.Column},
		End:     slab.Position{Line: rec.End.Line, Column: rec.End.Column},
	}
}
