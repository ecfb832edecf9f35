// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"context"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianIndex/services/symbols/locator"
	"github.com/AleutianAI/AleutianIndex/services/symbols/slab"
)

const demoSource = `package demo

import "fmt"

const Greeting = "hello"

type Server struct {
	Addr string
}

type Handler interface {
	Serve(addr string) error
}

func (s *Server) Start() error {
	msg := Greeting
	fmt.Println(msg)
	return nil
}

func NewServer(addr string) *Server {
	srv := &Server{}
	return srv
}
`

func extractSource(t *testing.T, e *Extractor, path, src string) (*slab.SymbolSlab, *slab.OccurrenceSlab) {
	t.Helper()
	unit, err := e.Parse(context.Background(), path, []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer unit.Close()
	return e.Extract(unit)
}

func findSymbol(syms *slab.SymbolSlab, name string) *slab.Symbol {
	for i, s := range syms.All() {
		if s.Name == name {
			return &syms.All()[i]
		}
	}
	return nil
}

func TestExtractor_TopLevelSymbols(t *testing.T) {
	syms, _ := extractSource(t, New(), "/src/demo/server.go", demoSource)

	tests := []struct {
		name  string
		scope string
		kind  slab.SymbolKind
	}{
		{"Greeting", "demo.", slab.SymbolKindConstant},
		{"Server", "demo.", slab.SymbolKindStruct},
		{"Handler", "demo.", slab.SymbolKindInterface},
		{"Addr", "demo.Server.", slab.SymbolKindField},
		{"Serve", "demo.Handler.", slab.SymbolKindMethod},
		{"Start", "demo.Server.", slab.SymbolKindMethod},
		{"NewServer", "demo.", slab.SymbolKindFunction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sym := findSymbol(syms, tt.name)
			if sym == nil {
				t.Fatalf("symbol %s not extracted", tt.name)
			}
			if sym.Scope != tt.scope {
				t.Errorf("Scope = %q, want %q", sym.Scope, tt.scope)
			}
			if sym.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", sym.Kind, tt.kind)
			}
			if err := sym.Validate(); err != nil {
				t.Errorf("Validate: %v", err)
			}
		})
	}
}

func TestExtractor_StableIDsAcrossFiles(t *testing.T) {
	e := New()
	a, _ := extractSource(t, e, "/src/a/f.go", "package demo\n\nfunc Shared() {}\n")
	b, _ := extractSource(t, e, "/src/b/f.go", "package demo\n\nfunc Shared() {}\n")

	sa, sb := findSymbol(a, "Shared"), findSymbol(b, "Shared")
	if sa == nil || sb == nil {
		t.Fatal("Shared not extracted from both files")
	}
	if sa.ID != sb.ID {
		t.Error("same qualified name produced different IDs across files")
	}
}

func TestExtractor_FunctionLocalsFlagged(t *testing.T) {
	syms, occs := extractSource(t, New(), "/src/demo/server.go", demoSource)

	msg := findSymbol(syms, "msg")
	if msg == nil {
		t.Fatal("local binding msg not extracted")
	}
	if !msg.FunctionLocal {
		t.Error("msg not flagged function-local")
	}
	if len(occs.For(msg.ID)) == 0 {
		t.Error("local binding has no declaration occurrence")
	}

	// Top-level symbols are never flagged.
	if srv := findSymbol(syms, "Server"); srv.FunctionLocal {
		t.Error("top-level Server flagged function-local")
	}
}

func TestExtractor_Occurrences(t *testing.T) {
	syms, occs := extractSource(t, New(), "/src/demo/server.go", demoSource)

	greeting := findSymbol(syms, "Greeting")
	if greeting == nil {
		t.Fatal("Greeting not extracted")
	}
	var decls, refs int
	for _, occ := range occs.For(greeting.ID) {
		if occ.Kind.Has(slab.OccurrenceDeclaration) {
			decls++
		}
		if occ.Kind.Has(slab.OccurrenceReference) {
			refs++
		}
	}
	if decls != 1 {
		t.Errorf("Greeting declarations = %d, want 1", decls)
	}
	if refs != 1 {
		t.Errorf("Greeting references = %d, want 1 (use in Start)", refs)
	}

	server := findSymbol(syms, "Server")
	if server == nil {
		t.Fatal("Server not extracted")
	}
	var serverRefs int
	for _, occ := range occs.For(server.ID) {
		if occ.Kind.Has(slab.OccurrenceReference) {
			serverRefs++
		}
	}
	if serverRefs == 0 {
		t.Error("Server has no reference occurrences despite uses in NewServer")
	}
}

func TestExtractor_DefaultURIScheme(t *testing.T) {
	syms, _ := extractSource(t, New(), "/src/demo/server.go", demoSource)

	sym := findSymbol(syms, "NewServer")
	if sym == nil {
		t.Fatal("NewServer not extracted")
	}
	if got := sym.CanonicalDeclaration.FileURI; got != "file:///src/demo/server.go" {
		t.Errorf("FileURI = %q", got)
	}
}

func TestExtractor_CustomURIScheme(t *testing.T) {
	reg := locator.NewRegistry()
	if err := reg.Register("unittest", locator.PrefixScheme{Name: "unittest", Root: "/index-test"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	e := New(WithRegistry(reg), WithURISchemes("unittest"))

	syms, _ := extractSource(t, e, "/index-test/f.go", "package demo\n\nfunc Only() {}\n")

	sym := findSymbol(syms, "Only")
	if sym == nil {
		t.Fatal("Only not extracted")
	}
	if got := sym.CanonicalDeclaration.FileURI; got != "unittest:///f.go" {
		t.Errorf("FileURI = %q, want the custom scheme", got)
	}
}

func TestExtractor_UnexportedFiltered(t *testing.T) {
	src := "package demo\n\nfunc Exported() {}\n\nfunc hidden() {}\n"

	e := New(WithUnexported(false))
	syms, _ := extractSource(t, e, "/src/f.go", src)

	if findSymbol(syms, "Exported") == nil {
		t.Error("Exported missing")
	}
	if findSymbol(syms, "hidden") != nil {
		t.Error("hidden extracted despite WithUnexported(false)")
	}
}

func TestExtractor_Preprocess(t *testing.T) {
	e := New()
	unit, err := e.Parse(context.Background(), "/src/demo/server.go", []byte(demoSource))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer unit.Close()

	if unit.Preprocess.PackageName != "demo" {
		t.Errorf("PackageName = %q", unit.Preprocess.PackageName)
	}
	if len(unit.Preprocess.Imports) != 1 || unit.Preprocess.Imports[0].Path != "fmt" {
		t.Errorf("Imports = %+v", unit.Preprocess.Imports)
	}
	if unit.Preprocess.SourceHash == "" {
		t.Error("SourceHash empty")
	}
}

func TestExtractor_SyntaxErrorsTolerated(t *testing.T) {
	src := "package demo\n\nfunc Good() {}\n\nfunc Broken( {\n"

	e := New()
	unit, err := e.Parse(context.Background(), "/src/f.go", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer unit.Close()

	if !unit.HasSyntaxErrors {
		t.Error("HasSyntaxErrors = false for broken source")
	}
	syms, _ := e.Extract(unit)
	if findSymbol(syms, "Good") == nil {
		t.Error("recoverable symbol Good lost to a later syntax error")
	}
}

func TestExtractor_ParseRejects(t *testing.T) {
	e := New(WithMaxFileSize(16))
	ctx := context.Background()

	t.Run("too large", func(t *testing.T) {
		_, err := e.Parse(ctx, "/src/f.go", []byte(strings.Repeat("x", 32)))
		if err == nil {
			t.Fatal("oversized content accepted")
		}
	})

	t.Run("invalid utf8", func(t *testing.T) {
		_, err := New().Parse(ctx, "/src/f.go", []byte{0xff, 0xfe})
		if err == nil {
			t.Fatal("invalid UTF-8 accepted")
		}
	})
}

func TestExtract_PanicsOnMissingPreprocess(t *testing.T) {
	e := New()

	t.Run("nil unit", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("Extract(nil) did not panic")
			}
		}()
		e.Extract(nil)
	})

	t.Run("nil preprocess", func(t *testing.T) {
		unit, err := e.Parse(context.Background(), "/src/f.go", []byte("package demo\n"))
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		defer unit.Close()
		unit.Preprocess = nil

		defer func() {
			if recover() == nil {
				t.Error("Extract without preprocess context did not panic")
			}
		}()
		e.Extract(unit)
	})
}

func TestExtractor_EmptyFileYieldsEmptySlabs(t *testing.T) {
	syms, occs := extractSource(t, New(), "/src/f.go", "package demo\n")
	if syms.Len() != 0 {
		t.Errorf("symbols = %d, want 0", syms.Len())
	}
	if occs.Len() != 0 {
		t.Errorf("occurrences = %d, want 0", occs.Len())
	}
}
