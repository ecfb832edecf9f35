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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	// Set Gin to test mode to reduce noise
	gin.SetMode(gin.TestMode)
}

func setupTestRouter(svc *Service) *gin.Engine {
	router := gin.New()
	handlers := NewHandlers(svc)
	v1 := router.Group("/v1")
	RegisterRoutes(v1, handlers)
	return router
}

func postJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req, _ := http.NewRequest(method, path, bytes.NewBuffer(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandlers_HandleHealth(t *testing.T) {
	svc := newTestService(t)
	router := setupTestRouter(svc)

	req, _ := http.NewRequest("GET", "/v1/symbols/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("expected healthy, got %q", resp.Status)
	}
	if resp.Version != ServiceVersion {
		t.Errorf("expected version %q, got %q", ServiceVersion, resp.Version)
	}
}

func TestHandlers_HandleReady(t *testing.T) {
	svc := newTestService(t)
	router := setupTestRouter(svc)

	req, _ := http.NewRequest("GET", "/v1/symbols/ready", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp ReadyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if !resp.Ready {
		t.Error("expected ready over an empty index")
	}
}

func TestHandlers_HandleUpdateFile(t *testing.T) {
	svc := newTestService(t)
	router := setupTestRouter(svc)

	w := postJSON(t, router, "POST", "/v1/symbols/files", UpdateFileRequest{
		Path:    "/src/demo/server.go",
		Content: serverSource,
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var resp UpdateFileResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Symbols == 0 {
		t.Error("expected a non-empty contribution")
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected a generated X-Request-ID")
	}
}

func TestHandlers_HandleUpdateFile_MissingPath(t *testing.T) {
	svc := newTestService(t)
	router := setupTestRouter(svc)

	w := postJSON(t, router, "POST", "/v1/symbols/files", map[string]string{"content": "package x"})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Code != "INVALID_REQUEST" {
		t.Errorf("expected code INVALID_REQUEST, got %q", resp.Code)
	}
}

func TestHandlers_HandleUpdateFile_RelativePath(t *testing.T) {
	svc := newTestService(t)
	router := setupTestRouter(svc)

	w := postJSON(t, router, "POST", "/v1/symbols/files", UpdateFileRequest{
		Path:    "demo/server.go",
		Content: serverSource,
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Code != "INVALID_PATH" {
		t.Errorf("expected code INVALID_PATH, got %q", resp.Code)
	}
}

func TestHandlers_HandleRemoveFile_Unknown(t *testing.T) {
	svc := newTestService(t)
	router := setupTestRouter(svc)

	w := postJSON(t, router, "DELETE", "/v1/symbols/files", RemoveFileRequest{
		Path: "/src/demo/missing.go",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp RemoveFileResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Removed {
		t.Error("expected Removed=false for an unknown path")
	}
}

func TestHandlers_FuzzyFindFlow(t *testing.T) {
	svc := newTestService(t)
	router := setupTestRouter(svc)

	w := postJSON(t, router, "POST", "/v1/symbols/files", UpdateFileRequest{
		Path:    "/src/demo/server.go",
		Content: serverSource,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update failed: %s", w.Body.String())
	}

	w = postJSON(t, router, "POST", "/v1/symbols/query/fuzzy", FuzzyFindHTTPRequest{
		Query:    "Server",
		AnyScope: true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var resp FuzzyFindResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if !resp.Complete {
		t.Error("expected a complete result set")
	}
	found := false
	for _, sym := range resp.Symbols {
		if sym.Name == "Server" {
			found = true
			if sym.ID == "" {
				t.Error("symbol missing ID")
			}
		}
	}
	if !found {
		t.Errorf("Server not returned: %+v", resp.Symbols)
	}
}

func TestHandlers_FuzzyFindQualifiedQuery(t *testing.T) {
	svc := newTestService(t)
	router := setupTestRouter(svc)

	w := postJSON(t, router, "POST", "/v1/symbols/files", UpdateFileRequest{
		Path:    "/src/demo/server.go",
		Content: serverSource,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update failed: %s", w.Body.String())
	}

	// The package qualifier rides inside the query; the handler
	// splits it out as a scope filter.
	w = postJSON(t, router, "POST", "/v1/symbols/query/fuzzy", FuzzyFindHTTPRequest{
		Query: "demo.Server",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var resp FuzzyFindResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	found := false
	for _, sym := range resp.Symbols {
		if sym.Name == "Server" {
			found = true
			if sym.Scope != "demo." {
				t.Errorf("Scope = %q, want demo.", sym.Scope)
			}
		}
	}
	if !found {
		t.Errorf("qualified query did not return Server: %+v", resp.Symbols)
	}

	// A qualifier that matches nothing filters everything out.
	w = postJSON(t, router, "POST", "/v1/symbols/query/fuzzy", FuzzyFindHTTPRequest{
		Query: "other.Server",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	resp = FuzzyFindResponse{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp.Symbols) != 0 {
		t.Errorf("mismatched qualifier returned symbols: %+v", resp.Symbols)
	}
}

func TestHandlers_LookupFlow(t *testing.T) {
	svc := newTestService(t)
	router := setupTestRouter(svc)

	w := postJSON(t, router, "POST", "/v1/symbols/files", UpdateFileRequest{
		Path:    "/src/demo/server.go",
		Content: serverSource,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update failed: %s", w.Body.String())
	}

	w = postJSON(t, router, "POST", "/v1/symbols/query/fuzzy", FuzzyFindHTTPRequest{
		Query:    "NewServer",
		AnyScope: true,
	})
	var fuzzy FuzzyFindResponse
	if err := json.Unmarshal(w.Body.Bytes(), &fuzzy); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(fuzzy.Symbols) == 0 {
		t.Fatal("no symbols to look up")
	}

	w = postJSON(t, router, "POST", "/v1/symbols/query/lookup", LookupHTTPRequest{
		IDs: []string{fuzzy.Symbols[0].ID},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var resp LookupResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp.Symbols) != 1 || resp.Symbols[0].ID != fuzzy.Symbols[0].ID {
		t.Errorf("lookup did not round-trip: %+v", resp.Symbols)
	}
}

func TestHandlers_HandleLookup_MalformedID(t *testing.T) {
	svc := newTestService(t)
	router := setupTestRouter(svc)

	w := postJSON(t, router, "POST", "/v1/symbols/query/lookup", LookupHTTPRequest{
		IDs: []string{"not-hex"},
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Code != "INVALID_SYMBOL_ID" {
		t.Errorf("expected code INVALID_SYMBOL_ID, got %q", resp.Code)
	}
}

func TestHandlers_OccurrencesFlow(t *testing.T) {
	svc := newTestService(t)
	router := setupTestRouter(svc)

	w := postJSON(t, router, "POST", "/v1/symbols/files", UpdateFileRequest{
		Path:    "/src/demo/server.go",
		Content: serverSource,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update failed: %s", w.Body.String())
	}

	w = postJSON(t, router, "POST", "/v1/symbols/query/fuzzy", FuzzyFindHTTPRequest{
		Query:    "Greeting",
		AnyScope: true,
	})
	var fuzzy FuzzyFindResponse
	if err := json.Unmarshal(w.Body.Bytes(), &fuzzy); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(fuzzy.Symbols) == 0 {
		t.Fatal("Greeting not found")
	}

	w = postJSON(t, router, "POST", "/v1/symbols/query/occurrences", OccurrencesHTTPRequest{
		IDs: []string{fuzzy.Symbols[0].ID},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var resp OccurrencesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp.Occurrences) == 0 {
		t.Error("expected occurrences for a referenced constant")
	}
}

func TestHandlers_HandleOccurrences_InvalidKind(t *testing.T) {
	svc := newTestService(t)
	router := setupTestRouter(svc)

	w := postJSON(t, router, "POST", "/v1/symbols/query/occurrences", OccurrencesHTTPRequest{
		IDs:   []string{"00112233445566778899aabbccddeeff00112233"},
		Kinds: []string{"mention"},
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Code != "INVALID_KIND" {
		t.Errorf("expected code INVALID_KIND, got %q", resp.Code)
	}
}

func TestHandlers_HandleStats(t *testing.T) {
	svc := newTestService(t)
	router := setupTestRouter(svc)

	w := postJSON(t, router, "POST", "/v1/symbols/files", UpdateFileRequest{
		Path:    "/src/demo/server.go",
		Content: serverSource,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update failed: %s", w.Body.String())
	}

	req, _ := http.NewRequest("GET", "/v1/symbols/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var resp StatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Files != 1 || resp.Symbols == 0 {
		t.Errorf("unexpected stats: %+v", resp)
	}
}

func TestHandlers_RequestIDPropagated(t *testing.T) {
	svc := newTestService(t)
	router := setupTestRouter(svc)

	raw, _ := json.Marshal(UpdateFileRequest{Path: "/src/demo/server.go", Content: serverSource})
	req, _ := http.NewRequest("POST", "/v1/symbols/files", bytes.NewBuffer(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "test-request-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "test-request-42" {
		t.Errorf("expected inbound request ID echoed, got %q", got)
	}
}
