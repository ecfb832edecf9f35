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
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianIndex/services/symbols/index"
	"github.com/AleutianAI/AleutianIndex/services/symbols/slab"
)

func contains(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}

const serverSource = `package demo

// Greeting is the default banner.
const Greeting = "hello"

type Server struct {
	Addr string
}

func (s *Server) Start() error {
	msg := Greeting
	_ = msg
	return nil
}

func NewServer(addr string) *Server {
	srv := &Server{Addr: addr}
	return srv
}
`

const clientSource = `package demo

type Client struct {
	Endpoint string
}

func Dial(endpoint string) *Client {
	return &Client{Endpoint: endpoint}
}
`

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(DefaultConfig())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestService_UpdateFileAndQuery(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	resp, err := svc.UpdateFile(ctx, "/src/demo/server.go", []byte(serverSource))
	if err != nil {
		t.Fatalf("UpdateFile: %v", err)
	}
	if resp.Symbols == 0 {
		t.Fatal("expected symbols from a well-formed file")
	}
	if resp.ParseErrors {
		t.Error("unexpected parse errors")
	}

	syms, complete, err := svc.FuzzyFind(ctx, index.FuzzyFindRequest{Query: "Server", AnyScope: true})
	if err != nil {
		t.Fatalf("FuzzyFind: %v", err)
	}
	if !complete {
		t.Error("expected complete result set")
	}
	found := false
	for _, sym := range syms {
		if sym.Name == "Server" {
			found = true
		}
	}
	if !found {
		t.Errorf("Server not in results: %v", symbolNames(syms))
	}
}

func TestService_UpdateFile_RejectsRelativePath(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.UpdateFile(context.Background(), "demo/server.go", []byte(serverSource))
	if !errors.Is(err, ErrRelativePath) {
		t.Errorf("expected ErrRelativePath, got %v", err)
	}
}

func TestService_UpdateFile_RejectsTraversal(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.UpdateFile(context.Background(), "/src/../etc/demo.go", []byte(serverSource))
	if !errors.Is(err, ErrPathTraversal) {
		t.Errorf("expected ErrPathTraversal, got %v", err)
	}
}

func TestService_AllowedRoots(t *testing.T) {
	config := DefaultConfig()
	config.AllowedRoots = []string{"/workspace/"}
	svc, err := NewService(config)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if _, err := svc.UpdateFile(context.Background(), "/workspace/a.go", []byte(serverSource)); err != nil {
		t.Errorf("allowed root rejected: %v", err)
	}
	if _, err := svc.UpdateFile(context.Background(), "/elsewhere/a.go", []byte(serverSource)); !errors.Is(err, ErrPathTraversal) {
		t.Errorf("expected ErrPathTraversal outside allowed roots, got %v", err)
	}
}

func TestService_RemoveFile(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.UpdateFile(ctx, "/src/demo/server.go", []byte(serverSource)); err != nil {
		t.Fatalf("UpdateFile: %v", err)
	}

	resp, err := svc.RemoveFile("/src/demo/server.go")
	if err != nil {
		t.Fatalf("RemoveFile: %v", err)
	}
	if !resp.Removed {
		t.Error("expected Removed=true for an indexed path")
	}

	syms, _, err := svc.FuzzyFind(ctx, index.FuzzyFindRequest{Query: "Server", AnyScope: true})
	if err != nil {
		t.Fatalf("FuzzyFind: %v", err)
	}
	if len(syms) != 0 {
		t.Errorf("removed file still visible: %v", symbolNames(syms))
	}

	// Unknown path removal succeeds without effect.
	resp, err = svc.RemoveFile("/src/demo/never-indexed.go")
	if err != nil {
		t.Fatalf("RemoveFile unknown: %v", err)
	}
	if resp.Removed {
		t.Error("expected Removed=false for an unknown path")
	}
}

func TestService_UpdateReplacesEarlierContribution(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.UpdateFile(ctx, "/src/demo/a.go", []byte(serverSource)); err != nil {
		t.Fatalf("UpdateFile: %v", err)
	}
	if _, err := svc.UpdateFile(ctx, "/src/demo/a.go", []byte(clientSource)); err != nil {
		t.Fatalf("UpdateFile replace: %v", err)
	}

	syms, _, err := svc.FuzzyFind(ctx, index.FuzzyFindRequest{Query: "", AnyScope: true})
	if err != nil {
		t.Fatalf("FuzzyFind: %v", err)
	}
	names := symbolNames(syms)
	if contains(names, "Server") {
		t.Error("old contribution survived a replacing update")
	}
	if !contains(names, "Client") {
		t.Errorf("new contribution missing: %v", names)
	}
}

func TestService_MalformedFileStaysTracked(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	// Not valid UTF-8: parsing fails outright, but the path should be
	// tracked with an empty contribution.
	resp, err := svc.UpdateFile(ctx, "/src/demo/bad.go", []byte{0xff, 0xfe, 0x00})
	if err != nil {
		t.Fatalf("UpdateFile: %v", err)
	}
	if !resp.ParseErrors {
		t.Error("expected ParseErrors for unparseable content")
	}
	if resp.Symbols != 0 {
		t.Errorf("expected empty contribution, got %d symbols", resp.Symbols)
	}
	if svc.FileCount() != 1 {
		t.Errorf("expected the file to stay tracked, FileCount=%d", svc.FileCount())
	}

	// A later good save replaces the empty contribution.
	resp, err = svc.UpdateFile(ctx, "/src/demo/bad.go", []byte(serverSource))
	if err != nil {
		t.Fatalf("UpdateFile recovery: %v", err)
	}
	if resp.Symbols == 0 {
		t.Error("recovered file contributed nothing")
	}
}

func TestService_IndexTree(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "server.go", serverSource)
	writeTestFile(t, dir, "client.go", clientSource)
	writeTestFile(t, dir, "README.md", "not go")
	writeTestFile(t, dir, filepath.Join("vendor", "dep.go"), clientSource)

	svc := newTestService(t)
	resp, err := svc.IndexTree(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("IndexTree: %v", err)
	}
	if resp.FilesIndexed != 2 {
		t.Errorf("expected 2 files indexed (vendor and non-Go skipped), got %d", resp.FilesIndexed)
	}

	syms, _, err := svc.FuzzyFind(context.Background(), index.FuzzyFindRequest{Query: "", AnyScope: true})
	if err != nil {
		t.Fatalf("FuzzyFind: %v", err)
	}
	names := symbolNames(syms)
	if !contains(names, "Server") || !contains(names, "Client") {
		t.Errorf("tree symbols missing: %v", names)
	}
}

func TestService_IndexTree_FileLimit(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "a.go", clientSource)
	writeTestFile(t, dir, "b.go", clientSource)

	config := DefaultConfig()
	config.MaxTreeFiles = 1
	svc, err := NewService(config)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	_, err = svc.IndexTree(context.Background(), dir, nil)
	if !errors.Is(err, ErrTreeTooLarge) {
		t.Errorf("expected ErrTreeTooLarge, got %v", err)
	}
}

func TestService_ApplyChanges(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "server.go", serverSource)

	svc := newTestService(t)
	ctx := context.Background()

	svc.ApplyChanges(ctx, []string{path}, nil)
	if svc.FileCount() != 1 {
		t.Fatalf("expected 1 tracked file, got %d", svc.FileCount())
	}

	svc.ApplyChanges(ctx, nil, []string{path})
	if svc.FileCount() != 0 {
		t.Errorf("expected removal, FileCount=%d", svc.FileCount())
	}
}

func TestService_StatsAndGeneration(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	before := svc.Stats()
	if _, err := svc.UpdateFile(ctx, "/src/demo/server.go", []byte(serverSource)); err != nil {
		t.Fatalf("UpdateFile: %v", err)
	}
	after := svc.Stats()

	if after.Generation <= before.Generation {
		t.Errorf("generation did not advance: %d -> %d", before.Generation, after.Generation)
	}
	if after.Files != 1 {
		t.Errorf("expected 1 file in stats, got %d", after.Files)
	}
	if after.Symbols == 0 {
		t.Error("expected symbols in stats")
	}
}

func TestService_QueryCacheInvalidatedByUpdate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.UpdateFile(ctx, "/src/demo/a.go", []byte(serverSource)); err != nil {
		t.Fatalf("UpdateFile: %v", err)
	}
	req := index.FuzzyFindRequest{Query: "Client", AnyScope: true}
	syms, _, err := svc.FuzzyFind(ctx, req)
	if err != nil {
		t.Fatalf("FuzzyFind: %v", err)
	}
	if len(syms) != 0 {
		t.Fatalf("Client should not exist yet: %v", symbolNames(syms))
	}

	if _, err := svc.UpdateFile(ctx, "/src/demo/b.go", []byte(clientSource)); err != nil {
		t.Fatalf("UpdateFile: %v", err)
	}
	syms, _, err = svc.FuzzyFind(ctx, req)
	if err != nil {
		t.Fatalf("FuzzyFind after update: %v", err)
	}
	if !contains(symbolNames(syms), "Client") {
		t.Error("stale cached result served after index changed")
	}
}

func TestService_ExportImportRoundTrip(t *testing.T) {
	src := newTestService(t)
	ctx := context.Background()

	if _, err := src.UpdateFile(ctx, "/src/demo/server.go", []byte(serverSource)); err != nil {
		t.Fatalf("UpdateFile: %v", err)
	}

	var buf bytes.Buffer
	if err := src.Export(&buf); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !strings.Contains(buf.String(), "Server") {
		t.Fatal("export stream missing symbol data")
	}

	dst := newTestService(t)
	n, err := dst.ImportStream("corpus", &buf)
	if err != nil {
		t.Fatalf("ImportStream: %v", err)
	}
	if n == 0 {
		t.Fatal("nothing imported")
	}

	syms, _, err := dst.FuzzyFind(ctx, index.FuzzyFindRequest{Query: "Server", AnyScope: true})
	if err != nil {
		t.Fatalf("FuzzyFind: %v", err)
	}
	if !contains(symbolNames(syms), "Server") {
		t.Errorf("imported symbols not queryable: %v", symbolNames(syms))
	}
}

func TestService_ConcurrentUpdatesAndQueries(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			_, _ = svc.UpdateFile(ctx, "/src/demo/hot.go", []byte(serverSource))
		}
	}()
	for i := 0; i < 20; i++ {
		if _, _, err := svc.FuzzyFind(ctx, index.FuzzyFindRequest{Query: "Server", AnyScope: true}); err != nil {
			t.Fatalf("FuzzyFind during updates: %v", err)
		}
	}
	<-done
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func symbolNames(syms []slab.Symbol) []string {
	names := make([]string, len(syms))
	for i := range syms {
		names[i] = syms[i].Name
	}
	return names
}
