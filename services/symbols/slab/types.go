// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package slab provides immutable symbol and occurrence storage for the
// symbol index service.
//
// A slab is a frozen, sorted collection built once by a single goroutine
// and then shared read-only between any number of index snapshots. All
// mutation happens through builders; a built slab never changes.
//
// Design principles:
//   - Immutable after Build: safe for lock-free concurrent reads
//   - Deterministic ordering: symbols sorted by ID, occurrences by location
//   - Last-wins deduplication inside a single slab
package slab

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// SymbolIDSize is the number of opaque bytes in a SymbolID.
const SymbolIDSize = 20

// SymbolID is a stable, language-agnostic identity for a symbol.
//
// Two extraction passes over different files that see the same logical
// symbol (for example a declaration in a header-like file and a definition
// in an implementation file) must produce the same SymbolID. IDs are
// derived from the symbol's canonical spelling, so they are stable across
// processes and hosts and safe to persist in interchange files.
type SymbolID [SymbolIDSize]byte

// NewSymbolID derives a SymbolID from a canonical symbol spelling.
//
// The spelling is typically "<scope><name>" plus any disambiguating
// signature text the extractor chooses to include. The derivation is a
// truncated SHA-256, matching the interchange format's fixed-width hex
// encoding.
func NewSymbolID(canonical string) SymbolID {
	sum := sha256.Sum256([]byte(canonical))
	var id SymbolID
	copy(id[:], sum[:SymbolIDSize])
	return id
}

// String returns the lowercase hex encoding of the ID.
func (id SymbolID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether the ID is the all-zero value.
func (id SymbolID) IsZero() bool {
	return id == SymbolID{}
}

// ParseSymbolID decodes a hex-encoded SymbolID as produced by String.
//
// Outputs:
//   - SymbolID: the decoded ID on success.
//   - error: if the input is not exactly SymbolIDSize bytes of hex.
func ParseSymbolID(s string) (SymbolID, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return SymbolID{}, fmt.Errorf("parse symbol ID %q: %w", s, err)
	}
	if len(raw) != SymbolIDSize {
		return SymbolID{}, fmt.Errorf("parse symbol ID %q: want %d bytes, got %d",
			s, SymbolIDSize, len(raw))
	}
	var id SymbolID
	copy(id[:], raw)
	return id, nil
}

// SymbolKind classifies the program construct a symbol represents.
type SymbolKind int

const (
	// SymbolKindUnknown indicates an unrecognized construct.
	SymbolKindUnknown SymbolKind = iota

	// SymbolKindPackage represents a package or namespace declaration.
	SymbolKindPackage

	// SymbolKindFunction represents a free function.
	SymbolKindFunction

	// SymbolKindMethod represents a function bound to a receiver type.
	SymbolKindMethod

	// SymbolKindStruct represents a composite data type.
	SymbolKindStruct

	// SymbolKindInterface represents an interface definition.
	SymbolKindInterface

	// SymbolKindType represents a named type or alias.
	SymbolKindType

	// SymbolKindVariable represents a package-level or local variable.
	SymbolKindVariable

	// SymbolKindConstant represents a constant declaration.
	SymbolKindConstant

	// SymbolKindField represents a struct or class member.
	SymbolKindField
)

var symbolKindNames = map[SymbolKind]string{
	SymbolKindUnknown:   "unknown",
	SymbolKindPackage:   "package",
	SymbolKindFunction:  "function",
	SymbolKindMethod:    "method",
	SymbolKindStruct:    "struct",
	SymbolKindInterface: "interface",
	SymbolKindType:      "type",
	SymbolKindVariable:  "variable",
	SymbolKindConstant:  "constant",
	SymbolKindField:     "field",
}

// String returns the lowercase name of the kind.
func (k SymbolKind) String() string {
	if name, ok := symbolKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseSymbolKind converts a string to a SymbolKind.
// Unrecognized strings map to SymbolKindUnknown.
func ParseSymbolKind(s string) SymbolKind {
	for kind, name := range symbolKindNames {
		if name == strings.ToLower(s) {
			return kind
		}
	}
	return SymbolKindUnknown
}

// Position is a zero-based line/column pair inside a source file.
//
// Columns count bytes, not runes, matching what the extractor's parser
// reports. Interchange and HTTP layers present positions unchanged.
type Position struct {
	Line   uint32 `json:"line" yaml:"Line"`
	Column uint32 `json:"column" yaml:"Column"`
}

// SymbolLocation names a half-open range [Start, End) inside a file
// identified by URI.
type SymbolLocation struct {
	// FileURI locates the containing file, e.g. "file:///src/pkg/a.go".
	// Custom schemes are permitted for in-memory or test files.
	FileURI string   `json:"fileUri" yaml:"FileURI"`
	Start   Position `json:"start" yaml:"Start"`
	End     Position `json:"end" yaml:"End"`
}

// IsValid reports whether the location names a file at all.
func (l SymbolLocation) IsValid() bool {
	return l.FileURI != ""
}

// Symbol is one indexed program symbol.
//
// A Symbol carries everything a query needs to rank, display, and
// navigate to the construct: identity, naming, the best-known
// declaration and definition sites, and completion metadata. Symbols
// are value types; slabs store them by value and queries receive
// copies or stable pointers into frozen slabs.
type Symbol struct {
	// ID is the stable cross-file identity. Required.
	ID SymbolID

	// Name is the unqualified symbol name. Required.
	Name string

	// Scope is the enclosing qualifier including the trailing
	// separator, e.g. "index::" or "encoding/json.". Empty for
	// top-level symbols.
	Scope string

	// Kind classifies the construct.
	Kind SymbolKind

	// Language names the source language, e.g. "go".
	Language string

	// CanonicalDeclaration is the preferred declaration site.
	// May be unset when only a definition is known.
	CanonicalDeclaration SymbolLocation

	// Definition is the definition site, when known.
	Definition SymbolLocation

	// References counts known uses across the indexed corpus.
	// Merged views sum this across files.
	References uint32

	// FunctionLocal marks symbols declared inside a function body.
	// These are excluded from fuzzy queries categorically.
	FunctionLocal bool

	// IndexedForCompletion marks symbols eligible for code completion.
	IndexedForCompletion bool

	// Signature is the display signature, e.g. "(path string) error".
	Signature string

	// CompletionSnippetSuffix is the snippet appended after the name
	// during completion, e.g. "(${1:path})".
	CompletionSnippetSuffix string

	// Documentation is the extracted doc comment, if any.
	Documentation string

	// ReturnType is the textual result type, when meaningful.
	ReturnType string

	// IncludeHeader names the file to import or include to use the
	// symbol, when it differs from the declaration file.
	IncludeHeader string
}

// QualifiedName returns Scope + Name.
func (s *Symbol) QualifiedName() string {
	return s.Scope + s.Name
}

// ValidationError describes a Symbol field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("symbol validation failed: %s: %s", e.Field, e.Message)
}

// Validate checks that the symbol satisfies slab invariants.
//
// Outputs:
//   - error: a *ValidationError naming the first offending field, or nil.
func (s *Symbol) Validate() error {
	if s.ID.IsZero() {
		return &ValidationError{Field: "ID", Message: "must not be zero"}
	}
	if s.Name == "" {
		return &ValidationError{Field: "Name", Message: "must not be empty"}
	}
	if s.Scope != "" && !strings.HasSuffix(s.Scope, "::") && !strings.HasSuffix(s.Scope, ".") {
		return &ValidationError{Field: "Scope", Message: "must end with a qualifier separator"}
	}
	return nil
}
