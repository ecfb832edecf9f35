// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extract parses source files and distills them into frozen
// symbol and occurrence slabs.
//
// Parsing and extraction are split: Parse turns bytes into a
// ParsedUnit carrying the syntax tree plus the preprocessing context
// the walk needs, and Extract walks an already-parsed unit. The split
// lets callers parse once and extract under different options, and it
// makes the contract explicit: a unit handed to Extract must carry its
// preprocessing context, a unit without one is a caller bug.
package extract

import (
	"errors"

	sitter "github.com/smacker/go-tree-sitter"
)

// File size constants for input validation.
const (
	// DefaultMaxFileSize is the largest file the extractor accepts (10MB).
	DefaultMaxFileSize = 10 * 1024 * 1024

	// WarnFileSize is the threshold at which a warning is logged (1MB).
	WarnFileSize = 1 * 1024 * 1024
)

// ErrFileTooLarge is returned when input exceeds the size limit.
var ErrFileTooLarge = errors.New("extract: file exceeds maximum size limit")

// ErrInvalidContent is returned when input is not valid UTF-8.
var ErrInvalidContent = errors.New("extract: content is not valid UTF-8")

// Import records one import declaration found during preprocessing.
type Import struct {
	// Path is the unquoted import path.
	Path string

	// Alias is the local name, when the source gives one.
	Alias string
}

// PreprocessContext carries the per-file resolution state extraction
// depends on: the package the file belongs to and the imports that
// scope its identifiers.
//
// Parse always populates it. Code that constructs ParsedUnits by hand
// must populate it too; Extract panics on a unit without one because
// extraction cannot assign scopes without it.
type PreprocessContext struct {
	// PackageName is the declared package, empty when the file has
	// no package clause.
	PackageName string

	// Imports lists the file's imports in source order.
	Imports []Import

	// SourceHash is the SHA-256 of the parsed content, hex-encoded.
	SourceHash string
}

// ParsedUnit is one parsed source file ready for extraction.
//
// A unit owns its syntax tree; callers must Close it when done. Units
// are single-goroutine, unlike the slabs extracted from them.
type ParsedUnit struct {
	// Path is the absolute source path the unit was parsed from.
	Path string

	// Content is the raw source the tree indexes into.
	Content []byte

	// Preprocess is the resolution state for the file. Non-nil for
	// every unit produced by Parse.
	Preprocess *PreprocessContext

	// HasSyntaxErrors reports whether the parse was error-tolerant
	// rather than clean. Extraction still proceeds on such units.
	HasSyntaxErrors bool

	tree *sitter.Tree
	root *sitter.Node
}

// Close releases the unit's syntax tree. Safe to call twice.
func (u *ParsedUnit) Close() {
	if u.tree != nil {
		u.tree.Close()
		u.tree = nil
		u.root = nil
	}
}
