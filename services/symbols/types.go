// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package symbols

import (
	"strings"

	"github.com/AleutianAI/AleutianIndex/services/symbols/slab"
)

// UpdateFileRequest is the body for POST /v1/symbols/files.
type UpdateFileRequest struct {
	// Path is the absolute path the content belongs to.
	Path string `json:"path" binding:"required"`

	// Content is the file's source text.
	Content string `json:"content"`
}

// UpdateFileResponse reports what one file contributed after an update.
type UpdateFileResponse struct {
	Path        string `json:"path"`
	Symbols     int    `json:"symbols"`
	Occurrences int    `json:"occurrences"`

	// ParseErrors is true when extraction was degraded by syntax
	// errors; the file is still indexed with whatever was recovered.
	ParseErrors bool `json:"parseErrors,omitempty"`
}

// RemoveFileRequest is the body for DELETE /v1/symbols/files.
type RemoveFileRequest struct {
	Path string `json:"path" binding:"required"`
}

// RemoveFileResponse reports whether the path was indexed at all.
type RemoveFileResponse struct {
	Path    string `json:"path"`
	Removed bool   `json:"removed"`
}

// IndexTreeRequest is the body for POST /v1/symbols/index.
type IndexTreeRequest struct {
	// Root is the absolute directory to walk.
	Root string `json:"root" binding:"required"`

	// ExcludePatterns are ignored relative paths (filepath.Match
	// syntax). Defaults to vendor and test files.
	ExcludePatterns []string `json:"excludePatterns"`
}

// IndexTreeResponse summarizes a tree walk.
type IndexTreeResponse struct {
	FilesIndexed int      `json:"filesIndexed"`
	Symbols      int      `json:"symbols"`
	WalkTimeMs   int64    `json:"walkTimeMs"`
	Errors       []string `json:"errors,omitempty"`
}

// FuzzyFindHTTPRequest is the body for POST /v1/symbols/query/fuzzy.
type FuzzyFindHTTPRequest struct {
	Query          string   `json:"query"`
	Scopes         []string `json:"scopes"`
	AnyScope       bool     `json:"anyScope"`
	Limit          int      `json:"limit"`
	CompletionOnly bool     `json:"completionOnly"`

	// ProximityHints are file paths near the query's origin, used to
	// break ties between equally ranked matches.
	ProximityHints []string `json:"proximityHints"`
}

// LookupHTTPRequest is the body for POST /v1/symbols/query/lookup.
type LookupHTTPRequest struct {
	// IDs are hex symbol IDs as returned in SymbolInfo.
	IDs []string `json:"ids" binding:"required"`
}

// OccurrencesHTTPRequest is the body for POST /v1/symbols/query/occurrences.
type OccurrencesHTTPRequest struct {
	IDs []string `json:"ids" binding:"required"`

	// Kinds filters by occurrence kind: "declaration", "definition",
	// "reference". Empty means all kinds.
	Kinds []string `json:"kinds"`
}

// LocationInfo is a symbol location in API responses.
type LocationInfo struct {
	FileURI     string `json:"fileUri"`
	StartLine   uint32 `json:"startLine"`
	StartColumn uint32 `json:"startColumn"`
	EndLine     uint32 `json:"endLine"`
	EndColumn   uint32 `json:"endColumn"`
}

// SymbolInfo is a symbol in API responses.
type SymbolInfo struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Scope         string        `json:"scope,omitempty"`
	Kind          string        `json:"kind"`
	Language      string        `json:"language,omitempty"`
	Declaration   *LocationInfo `json:"declaration,omitempty"`
	Definition    *LocationInfo `json:"definition,omitempty"`
	References    uint32        `json:"references,omitempty"`
	Signature     string        `json:"signature,omitempty"`
	Documentation string        `json:"documentation,omitempty"`
	ReturnType    string        `json:"returnType,omitempty"`
}

// OccurrenceInfo is one occurrence in API responses.
type OccurrenceInfo struct {
	Location LocationInfo `json:"location"`
	Kind     string       `json:"kind"`
}

// FuzzyFindResponse carries fuzzy query results.
type FuzzyFindResponse struct {
	Symbols []SymbolInfo `json:"symbols"`

	// Complete is false when the limit truncated the result set.
	Complete bool `json:"complete"`
}

// LookupResponse carries resolved symbols in request order.
type LookupResponse struct {
	Symbols []SymbolInfo `json:"symbols"`
}

// OccurrencesResponse carries occurrence query results.
type OccurrencesResponse struct {
	Occurrences []OccurrenceInfo `json:"occurrences"`
}

// StatsResponse summarizes the live index.
type StatsResponse struct {
	Files       int    `json:"files"`
	Symbols     int    `json:"symbols"`
	Occurrences int    `json:"occurrences"`
	Generation  uint64 `json:"generation"`

	// EstimatedMemoryBytes is a lower-bound estimate of the merged
	// view's resident size.
	EstimatedMemoryBytes int `json:"estimatedMemoryBytes"`
}

// HealthResponse is returned by GET /v1/symbols/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse is returned by GET /v1/symbols/ready.
type ReadyResponse struct {
	Ready bool `json:"ready"`
	Files int  `json:"files"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

// SymbolInfoFromSlab converts an internal symbol to its API shape.
func SymbolInfoFromSlab(sym *slab.Symbol) SymbolInfo {
	return SymbolInfo{
		ID:            sym.ID.String(),
		Name:          sym.Name,
		Scope:         sym.Scope,
		Kind:          sym.Kind.String(),
		Language:      sym.Language,
		Declaration:   locationInfo(sym.CanonicalDeclaration),
		Definition:    locationInfo(sym.Definition),
		References:    sym.References,
		Signature:     sym.Signature,
		Documentation: sym.Documentation,
		ReturnType:    sym.ReturnType,
	}
}

// OccurrenceInfoFromSlab converts an internal occurrence to its API
// shape.
func OccurrenceInfoFromSlab(occ *slab.Occurrence) OccurrenceInfo {
	return OccurrenceInfo{
		Location: *locationInfo(occ.Location),
		Kind:     occ.Kind.String(),
	}
}

// ParseOccurrenceKinds folds kind names into a filter mask. An empty
// list means all kinds.
func ParseOccurrenceKinds(kinds []string) (slab.OccurrenceKind, error) {
	if len(kinds) == 0 {
		return slab.OccurrenceAll, nil
	}
	var mask slab.OccurrenceKind
	for _, k := range kinds {
		switch strings.ToLower(k) {
		case "declaration":
			mask |= slab.OccurrenceDeclaration
		case "definition":
			mask |= slab.OccurrenceDefinition
		case "reference":
			mask |= slab.OccurrenceReference
		default:
			return 0, ErrInvalidOccurrenceKind
		}
	}
	return mask, nil
}

func locationInfo(loc slab.SymbolLocation) *LocationInfo {
	if !loc.IsValid() {
		return nil
	}
	return &LocationInfo{
		FileURI:     loc.FileURI,
		StartLine:   loc.Start.Line,
		StartColumn: loc.Start.Column,
		EndLine:     loc.End.Line,
		EndColumn:   loc.End.Column,
	}
}
