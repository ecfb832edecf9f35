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
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianIndex/services/symbols/index"
	"github.com/AleutianAI/AleutianIndex/services/symbols/slab"
)

// ServiceVersion is the symbol index service version.
const ServiceVersion = "0.1.0"

// Handlers contains the HTTP handlers for the symbol index.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleUpdateFile handles POST /v1/symbols/files.
//
// Description:
//
//	Indexes the given content under its path, replacing any earlier
//	contribution from that path.
//
// Response:
//
//	200 OK: UpdateFileResponse
//	400 Bad Request: Validation error
//	500 Internal Server Error: Processing error
func (h *Handlers) HandleUpdateFile(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleUpdateFile")

	var req UpdateFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	resp, err := h.svc.UpdateFile(c.Request.Context(), req.Path, []byte(req.Content))
	if err != nil {
		status, code := pathErrorStatus(err, "UPDATE_FAILED")
		logger.Error("Update failed", "path", req.Path, "error", err)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	logger.Info("File indexed",
		"path", resp.Path,
		"symbols", resp.Symbols,
		"occurrences", resp.Occurrences)
	c.JSON(http.StatusOK, resp)
}

// HandleRemoveFile handles DELETE /v1/symbols/files.
//
// Removing a path that was never indexed succeeds with Removed=false.
func (h *Handlers) HandleRemoveFile(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleRemoveFile")

	var req RemoveFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	resp, err := h.svc.RemoveFile(req.Path)
	if err != nil {
		status, code := pathErrorStatus(err, "REMOVE_FAILED")
		logger.Error("Remove failed", "path", req.Path, "error", err)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// HandleIndexTree handles POST /v1/symbols/index.
//
// Response:
//
//	200 OK: IndexTreeResponse
//	400 Bad Request: Validation error or tree too large
//	500 Internal Server Error: Processing error
func (h *Handlers) HandleIndexTree(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleIndexTree")

	var req IndexTreeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	logger.Info("Indexing tree", "root", req.Root)

	resp, err := h.svc.IndexTree(c.Request.Context(), req.Root, req.ExcludePatterns)
	if err != nil {
		status := http.StatusInternalServerError
		code := "INDEX_FAILED"
		switch {
		case errors.Is(err, ErrRelativePath):
			status, code = http.StatusBadRequest, "INVALID_PATH"
		case errors.Is(err, ErrPathTraversal):
			status, code = http.StatusBadRequest, "PATH_TRAVERSAL"
		case errors.Is(err, ErrTreeTooLarge):
			status, code = http.StatusBadRequest, "TREE_TOO_LARGE"
		}
		logger.Error("Tree indexing failed", "root", req.Root, "error", err)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	logger.Info("Tree indexed",
		"root", req.Root,
		"files", resp.FilesIndexed,
		"symbols", resp.Symbols,
		"walk_time_ms", resp.WalkTimeMs)
	c.JSON(http.StatusOK, resp)
}

// HandleFuzzyFind handles POST /v1/symbols/query/fuzzy.
//
// Response:
//
//	200 OK: FuzzyFindResponse
//	400 Bad Request: Validation error
func (h *Handlers) HandleFuzzyFind(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleFuzzyFind")

	var req FuzzyFindHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	// Qualified queries like "demo.Server" carry their scope inline.
	query := req.Query
	scopes := req.Scopes
	if scope, name := index.ScopeOf(query); scope != "" {
		scopes = append(scopes, scope)
		query = name
	}

	syms, complete, err := h.svc.FuzzyFind(c.Request.Context(), index.FuzzyFindRequest{
		Query:          query,
		Scopes:         scopes,
		AnyScope:       req.AnyScope,
		Limit:          req.Limit,
		CompletionOnly: req.CompletionOnly,
		ProximityPaths: req.ProximityHints,
	})
	if err != nil {
		logger.Error("Fuzzy query failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "QUERY_FAILED",
		})
		return
	}

	resp := FuzzyFindResponse{
		Symbols:  make([]SymbolInfo, len(syms)),
		Complete: complete,
	}
	for i := range syms {
		resp.Symbols[i] = SymbolInfoFromSlab(&syms[i])
	}
	c.JSON(http.StatusOK, resp)
}

// HandleLookup handles POST /v1/symbols/query/lookup.
//
// Unknown IDs are skipped; malformed IDs are a request error.
func (h *Handlers) HandleLookup(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleLookup")

	var req LookupHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	ids, err := parseSymbolIDs(req.IDs)
	if err != nil {
		logger.Warn("Malformed symbol ID", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   ErrInvalidSymbolID.Error(),
			Code:    "INVALID_SYMBOL_ID",
			Details: err.Error(),
		})
		return
	}

	syms, err := h.svc.Lookup(c.Request.Context(), ids)
	if err != nil {
		logger.Error("Lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "QUERY_FAILED",
		})
		return
	}

	resp := LookupResponse{Symbols: make([]SymbolInfo, len(syms))}
	for i := range syms {
		resp.Symbols[i] = SymbolInfoFromSlab(&syms[i])
	}
	c.JSON(http.StatusOK, resp)
}

// HandleOccurrences handles POST /v1/symbols/query/occurrences.
func (h *Handlers) HandleOccurrences(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleOccurrences")

	var req OccurrencesHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	ids, err := parseSymbolIDs(req.IDs)
	if err != nil {
		logger.Warn("Malformed symbol ID", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   ErrInvalidSymbolID.Error(),
			Code:    "INVALID_SYMBOL_ID",
			Details: err.Error(),
		})
		return
	}

	filter, err := ParseOccurrenceKinds(req.Kinds)
	if err != nil {
		logger.Warn("Invalid kind filter", "kinds", req.Kinds)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_KIND",
		})
		return
	}

	occs, err := h.svc.Occurrences(c.Request.Context(), ids, filter)
	if err != nil {
		logger.Error("Occurrence query failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "QUERY_FAILED",
		})
		return
	}

	resp := OccurrencesResponse{Occurrences: make([]OccurrenceInfo, len(occs))}
	for i := range occs {
		resp.Occurrences[i] = OccurrenceInfoFromSlab(&occs[i])
	}
	c.JSON(http.StatusOK, resp)
}

// HandleStats handles GET /v1/symbols/stats.
func (h *Handlers) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Stats())
}

// HandleHealth handles GET /v1/symbols/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
	})
}

// HandleReady handles GET /v1/symbols/ready. The service is ready as
// soon as it can answer queries, even over an empty index.
func (h *Handlers) HandleReady(c *gin.Context) {
	c.JSON(http.StatusOK, ReadyResponse{
		Ready: true,
		Files: h.svc.FileCount(),
	})
}

// getOrCreateRequestID returns the inbound request ID or mints one.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

func parseSymbolIDs(raw []string) ([]slab.SymbolID, error) {
	ids := make([]slab.SymbolID, 0, len(raw))
	for _, r := range raw {
		id, err := slab.ParseSymbolID(r)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func pathErrorStatus(err error, fallback string) (int, string) {
	switch {
	case errors.Is(err, ErrRelativePath):
		return http.StatusBadRequest, "INVALID_PATH"
	case errors.Is(err, ErrPathTraversal):
		return http.StatusBadRequest, "PATH_TRAVERSAL"
	default:
		return http.StatusInternalServerError, fallback
	}
}
