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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/AleutianAI/AleutianIndex/services/symbols/locator"
	"github.com/AleutianAI/AleutianIndex/services/symbols/slab"
)

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxFileSize sets the largest file the extractor will accept.
func WithMaxFileSize(bytes int64) Option {
	return func(e *Extractor) {
		if bytes > 0 {
			e.maxFileSize = bytes
		}
	}
}

// WithURISchemes sets the scheme preference order used when rendering
// location URIs. Unlisted or rejecting schemes fall back to "file".
func WithURISchemes(schemes ...string) Option {
	return func(e *Extractor) {
		e.uriSchemes = schemes
	}
}

// WithRegistry sets the locator registry used to render URIs. Use this
// to make custom schemes visible to the extractor.
func WithRegistry(r *locator.Registry) Option {
	return func(e *Extractor) {
		if r != nil {
			e.registry = r
		}
	}
}

// WithUnexported controls whether unexported top-level symbols are
// extracted. They are by default; an index serving only cross-package
// completion may drop them.
func WithUnexported(include bool) Option {
	return func(e *Extractor) {
		e.includeUnexported = include
	}
}

// Extractor parses Go source and extracts symbol and occurrence slabs.
//
// Description:
//
//	Extractor uses tree-sitter, so it is error-tolerant: files with
//	syntax errors still yield the symbols the parser could recover.
//	Each Parse call creates its own tree-sitter parser instance, so a
//	single Extractor may be shared freely.
//
// Thread Safety:
//
//	Extractor instances are safe for concurrent use.
type Extractor struct {
	maxFileSize       int64
	uriSchemes        []string
	registry          *locator.Registry
	includeUnexported bool
}

// New creates an Extractor with the given options.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		maxFileSize:       DefaultMaxFileSize,
		registry:          locator.NewRegistry(),
		includeUnexported: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Parse turns source bytes into a ParsedUnit.
//
// Description:
//
//	Validates and parses the content, then runs the preprocessing
//	pass that records the package clause and imports. The returned
//	unit owns a syntax tree; callers must Close it.
//
// Inputs:
//   - ctx: Checked before and after parsing; tree-sitter itself
//     cannot be interrupted mid-parse.
//   - path: Absolute source path, used for URI rendering.
//   - content: Raw Go source. Must be valid UTF-8.
//
// Outputs:
//   - *ParsedUnit: The parsed unit, never nil on success.
//   - error: ErrFileTooLarge, ErrInvalidContent, parse failures, or
//     the context's error.
func (e *Extractor) Parse(ctx context.Context, path string, content []byte) (*ParsedUnit, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}
	if int64(len(content)) > e.maxFileSize {
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), e.maxFileSize)
	}
	if len(content) > WarnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", path),
			slog.Int("size_bytes", len(content)))
	}
	if !utf8.Valid(content) {
		return nil, ErrInvalidContent
	}

	hash := sha256.Sum256(content)

	// New parser instance per call for thread safety.
	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		tree.Close()
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	unit := &ParsedUnit{
		Path:       path,
		Content:    content,
		Preprocess: &PreprocessContext{SourceHash: hex.EncodeToString(hash[:])},
		tree:       tree,
		root:       tree.RootNode(),
	}
	if unit.root == nil {
		unit.Close()
		return nil, fmt.Errorf("tree-sitter returned nil root node for %s", path)
	}
	if unit.root.HasError() {
		unit.HasSyntaxErrors = true
	}

	e.preprocess(unit)
	return unit, nil
}

// preprocess records the package clause and imports on the unit.
func (e *Extractor) preprocess(u *ParsedUnit) {
	root := u.root
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		switch child.Type() {
		case "package_clause":
			for j := 0; j < int(child.ChildCount()); j++ {
				if n := child.Child(j); n.Type() == "package_identifier" {
					u.Preprocess.PackageName = string(u.Content[n.StartByte():n.EndByte()])
				}
			}
		case "import_declaration":
			e.preprocessImports(u, child)
		}
	}
}

func (e *Extractor) preprocessImports(u *ParsedUnit, node *sitter.Node) {
	collect := func(spec *sitter.Node) {
		var imp Import
		for i := 0; i < int(spec.ChildCount()); i++ {
			child := spec.Child(i)
			switch child.Type() {
			case "package_identifier", "blank_identifier", "dot":
				imp.Alias = string(u.Content[child.StartByte():child.EndByte()])
			case "interpreted_string_literal":
				imp.Path = strings.Trim(string(u.Content[child.StartByte():child.EndByte()]), "\"")
			}
		}
		if imp.Path != "" {
			u.Preprocess.Imports = append(u.Preprocess.Imports, imp)
		}
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "import_spec":
			collect(child)
		case "import_spec_list":
			for j := 0; j < int(child.ChildCount()); j++ {
				if spec := child.Child(j); spec.Type() == "import_spec" {
					collect(spec)
				}
			}
		}
	}
}

// Extract walks an already-parsed unit into frozen slabs.
//
// Description:
//
//	Emits one symbol per declaration the walk recognizes, a
//	declaration-site occurrence for each, local symbols for bindings
//	inside function bodies, and reference occurrences for every later
//	mention of a declared name. A unit that yields nothing produces
//	the shared empty slabs, never nil.
//
// Inputs:
//   - unit: A unit produced by Parse, or hand-built with a populated
//     Preprocess. Passing a unit without its preprocessing context is
//     a caller bug and panics; that contract violation is never a
//     recoverable error.
//
// Outputs:
//   - *slab.SymbolSlab: The file's symbols. Never nil.
//   - *slab.OccurrenceSlab: The file's occurrences. Never nil.
func (e *Extractor) Extract(unit *ParsedUnit) (*slab.SymbolSlab, *slab.OccurrenceSlab) {
	if unit == nil {
		panic("extract: Extract called with nil unit")
	}
	if unit.Preprocess == nil {
		panic("extract: parsed unit is missing its preprocess context")
	}
	if unit.root == nil {
		return slab.EmptySymbolSlab, slab.EmptyOccurrenceSlab
	}

	fileURI, err := e.registry.URIForPath(unit.Path, e.uriSchemes...)
	if err != nil {
		slog.Warn("cannot render file URI, skipping extraction",
			slog.String("path", unit.Path),
			slog.String("error", err.Error()))
		return slab.EmptySymbolSlab, slab.EmptyOccurrenceSlab
	}

	w := &walker{
		extractor: e,
		content:   unit.Content,
		fileURI:   fileURI,
		path:      unit.Path,
		syms:      slab.NewBuilder(),
		occs:      slab.NewOccurrenceBuilder(),
		declared:  make(map[string]slab.SymbolID),
		declSites: make(map[uint32]bool),
	}
	if pkg := unit.Preprocess.PackageName; pkg != "" {
		w.pkgScope = pkg + "."
	}

	w.topLevel(unit.root)
	w.references(unit.root)

	return w.syms.Build(), w.occs.Build()
}

// walker carries one extraction pass over a single file.
type walker struct {
	extractor *Extractor
	content   []byte
	fileURI   string
	path      string
	pkgScope  string

	syms *slab.Builder
	occs *slab.OccurrenceBuilder

	// declared maps top-level names to their IDs for the reference
	// pass. declSites marks name-node offsets already counted as
	// declarations so they are not double-counted as references.
	declared  map[string]slab.SymbolID
	declSites map[uint32]bool
}

func (w *walker) text(n *sitter.Node) string {
	return string(w.content[n.StartByte():n.EndByte()])
}

func (w *walker) location(n *sitter.Node) slab.SymbolLocation {
	return slab.SymbolLocation{
		FileURI: w.fileURI,
		Start:   slab.Position{Line: n.StartPoint().Row, Column: n.StartPoint().Column},
		End:     slab.Position{Line: n.EndPoint().Row, Column: n.EndPoint().Column},
	}
}

func isExported(name string) bool {
	return len(name) > 0 && name[0] >= 'A' && name[0] <= 'Z'
}

// emit records a declaration: the symbol, its declaration-site
// occurrence, and the bookkeeping the reference pass needs.
func (w *walker) emit(sym slab.Symbol, nameNode *sitter.Node, kind slab.OccurrenceKind) {
	w.syms.Insert(sym)
	w.occs.Insert(sym.ID, slab.Occurrence{Location: w.location(nameNode), Kind: kind})
	w.declSites[nameNode.StartByte()] = true
	if !sym.FunctionLocal {
		w.declared[sym.Name] = sym.ID
	}
}

// symbolID derives the stable cross-file identity for a top-level
// declaration. Scope and name are enough in Go: a package cannot
// declare the same qualified name twice.
func (w *walker) symbolID(scope, name string) slab.SymbolID {
	return slab.NewSymbolID("go:" + scope + name)
}

// localID derives an identity for a function-local binding. Locals are
// file-private, so the position participates to keep shadowed names
// distinct.
func (w *walker) localID(n *sitter.Node, name string) slab.SymbolID {
	return slab.NewSymbolID(fmt.Sprintf("go-local:%s:%d:%d:%s",
		w.path, n.StartPoint().Row, n.StartPoint().Column, name))
}

func (w *walker) topLevel(root *sitter.Node) {
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		switch child.Type() {
		case "function_declaration":
			w.functionDecl(child)
		case "method_declaration":
			w.methodDecl(child)
		case "type_declaration":
			w.typeDecl(child)
		case "var_declaration":
			w.varDecl(child, slab.SymbolKindVariable)
		case "const_declaration":
			w.varDecl(child, slab.SymbolKindConstant)
		}
	}
}

func (w *walker) functionDecl(node *sitter.Node) {
	var nameNode *sitter.Node
	var params, returns string
	var body *sitter.Node

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "identifier":
			nameNode = child
		case "parameter_list":
			// First parameter_list is params, a second is returns.
			if params == "" {
				params = w.text(child)
			} else {
				returns = w.text(child)
			}
		case "type_identifier", "pointer_type", "slice_type", "map_type",
			"channel_type", "qualified_type", "interface_type", "struct_type",
			"function_type":
			returns = w.text(child)
		case "block":
			body = child
		}
	}
	if nameNode == nil {
		return
	}
	name := w.text(nameNode)
	if !w.extractor.includeUnexported && !isExported(name) {
		return
	}

	sym := slab.Symbol{
		ID:                      w.symbolID(w.pkgScope, name),
		Name:                    name,
		Scope:                   w.pkgScope,
		Kind:                    slab.SymbolKindFunction,
		Language:                "go",
		CanonicalDeclaration:    w.location(node),
		Definition:              w.location(node),
		IndexedForCompletion:    true,
		Signature:               signature(params, returns),
		CompletionSnippetSuffix: snippetSuffix(params),
		ReturnType:              returns,
	}
	w.emit(sym, nameNode, slab.OccurrenceDeclaration|slab.OccurrenceDefinition)

	if body != nil {
		w.locals(body)
	}
}

func (w *walker) methodDecl(node *sitter.Node) {
	var nameNode *sitter.Node
	var params, returns string
	var body *sitter.Node
	var receiverList *sitter.Node

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "parameter_list":
			// Receiver first, then params, then an optional
			// parenthesized return list.
			switch {
			case receiverList == nil:
				receiverList = child
			case params == "":
				params = w.text(child)
			default:
				returns = w.text(child)
			}
		case "field_identifier":
			nameNode = child
		case "type_identifier", "pointer_type", "slice_type", "map_type",
			"channel_type", "qualified_type":
			returns = w.text(child)
		case "block":
			body = child
		}
	}
	if nameNode == nil {
		return
	}
	name := w.text(nameNode)
	if !w.extractor.includeUnexported && !isExported(name) {
		return
	}

	scope := w.pkgScope
	if recv := w.receiverTypeName(receiverList); recv != "" {
		scope = w.pkgScope + recv + "."
	}

	sym := slab.Symbol{
		ID:                      w.symbolID(scope, name),
		Name:                    name,
		Scope:                   scope,
		Kind:                    slab.SymbolKindMethod,
		Language:                "go",
		CanonicalDeclaration:    w.location(node),
		Definition:              w.location(node),
		IndexedForCompletion:    true,
		Signature:               signature(params, returns),
		CompletionSnippetSuffix: snippetSuffix(params),
		ReturnType:              returns,
	}
	w.emit(sym, nameNode, slab.OccurrenceDeclaration|slab.OccurrenceDefinition)

	if body != nil {
		w.locals(body)
	}
}

// receiverTypeName digs the receiver's base type name out of its
// parameter list, seeing through pointers and type parameters.
func (w *walker) receiverTypeName(paramList *sitter.Node) string {
	if paramList == nil {
		return ""
	}
	var find func(n *sitter.Node) string
	find = func(n *sitter.Node) string {
		if n.Type() == "type_identifier" {
			return w.text(n)
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			if got := find(n.Child(i)); got != "" {
				return got
			}
		}
		return ""
	}
	for i := 0; i < int(paramList.ChildCount()); i++ {
		child := paramList.Child(i)
		if child.Type() == "parameter_declaration" {
			// Skip the receiver variable's identifier; the first
			// type_identifier below it is the type.
			for j := 0; j < int(child.ChildCount()); j++ {
				sub := child.Child(j)
				if sub.Type() == "identifier" {
					continue
				}
				if got := find(sub); got != "" {
					return got
				}
			}
		}
	}
	return ""
}

func (w *walker) typeDecl(node *sitter.Node) {
	for i := 0; i < int(node.ChildCount()); i++ {
		if child := node.Child(i); child.Type() == "type_spec" || child.Type() == "type_alias" {
			w.typeSpec(child)
		}
	}
}

func (w *walker) typeSpec(node *sitter.Node) {
	var nameNode *sitter.Node
	kind := slab.SymbolKindType
	var bodyNode *sitter.Node

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "type_identifier":
			if nameNode == nil {
				nameNode = child
			}
		case "struct_type":
			kind = slab.SymbolKindStruct
			bodyNode = child
		case "interface_type":
			kind = slab.SymbolKindInterface
			bodyNode = child
		}
	}
	if nameNode == nil {
		return
	}
	name := w.text(nameNode)
	if !w.extractor.includeUnexported && !isExported(name) {
		return
	}

	sym := slab.Symbol{
		ID:                   w.symbolID(w.pkgScope, name),
		Name:                 name,
		Scope:                w.pkgScope,
		Kind:                 kind,
		Language:             "go",
		CanonicalDeclaration: w.location(node),
		Definition:           w.location(node),
		IndexedForCompletion: true,
	}
	w.emit(sym, nameNode, slab.OccurrenceDeclaration|slab.OccurrenceDefinition)

	if bodyNode != nil {
		w.typeMembers(bodyNode, name)
	}
}

// typeMembers extracts struct fields and interface methods, scoped
// under the enclosing type.
func (w *walker) typeMembers(node *sitter.Node, typeName string) {
	memberScope := w.pkgScope + typeName + "."

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "field_declaration_list":
			for j := 0; j < int(child.ChildCount()); j++ {
				if field := child.Child(j); field.Type() == "field_declaration" {
					w.fieldDecl(field, memberScope)
				}
			}
		case "method_elem":
			w.interfaceMethod(child, memberScope)
		}
	}
}

func (w *walker) fieldDecl(node *sitter.Node, scope string) {
	var fieldType string
	var nameNodes []*sitter.Node

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "field_identifier" {
			nameNodes = append(nameNodes, child)
		} else if len(nameNodes) > 0 && fieldType == "" {
			fieldType = w.text(child)
		}
	}

	for _, nameNode := range nameNodes {
		name := w.text(nameNode)
		if !w.extractor.includeUnexported && !isExported(name) {
			continue
		}
		sym := slab.Symbol{
			ID:                   w.symbolID(scope, name),
			Name:                 name,
			Scope:                scope,
			Kind:                 slab.SymbolKindField,
			Language:             "go",
			CanonicalDeclaration: w.location(node),
			Definition:           w.location(node),
			Signature:            fieldType,
			ReturnType:           fieldType,
		}
		w.emit(sym, nameNode, slab.OccurrenceDeclaration|slab.OccurrenceDefinition)
	}
}

func (w *walker) interfaceMethod(node *sitter.Node, scope string) {
	var nameNode *sitter.Node
	var params, returns string

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "field_identifier":
			nameNode = child
		case "parameter_list":
			if params == "" {
				params = w.text(child)
			} else {
				returns = w.text(child)
			}
		case "type_identifier", "pointer_type", "slice_type", "map_type":
			returns = w.text(child)
		}
	}
	if nameNode == nil {
		return
	}
	name := w.text(nameNode)
	if !w.extractor.includeUnexported && !isExported(name) {
		return
	}

	sym := slab.Symbol{
		ID:                      w.symbolID(scope, name),
		Name:                    name,
		Scope:                   scope,
		Kind:                    slab.SymbolKindMethod,
		Language:                "go",
		CanonicalDeclaration:    w.location(node),
		IndexedForCompletion:    true,
		Signature:               signature(params, returns),
		CompletionSnippetSuffix: snippetSuffix(params),
		ReturnType:              returns,
	}
	// Interface methods declare without defining.
	w.emit(sym, nameNode, slab.OccurrenceDeclaration)
}

func (w *walker) varDecl(node *sitter.Node, kind slab.SymbolKind) {
	process := func(spec *sitter.Node) {
		var typeStr string
		var nameNodes []*sitter.Node
		for i := 0; i < int(spec.ChildCount()); i++ {
			child := spec.Child(i)
			switch child.Type() {
			case "identifier":
				nameNodes = append(nameNodes, child)
			case "type_identifier", "pointer_type", "slice_type", "map_type",
				"channel_type", "qualified_type":
				typeStr = w.text(child)
			}
		}
		for _, nameNode := range nameNodes {
			name := w.text(nameNode)
			if !w.extractor.includeUnexported && !isExported(name) {
				continue
			}
			sym := slab.Symbol{
				ID:                   w.symbolID(w.pkgScope, name),
				Name:                 name,
				Scope:                w.pkgScope,
				Kind:                 kind,
				Language:             "go",
				CanonicalDeclaration: w.location(spec),
				Definition:           w.location(spec),
				IndexedForCompletion: true,
				ReturnType:           typeStr,
			}
			w.emit(sym, nameNode, slab.OccurrenceDeclaration|slab.OccurrenceDefinition)
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "var_spec", "const_spec":
			process(child)
		case "var_spec_list", "const_spec_list":
			for j := 0; j < int(child.ChildCount()); j++ {
				if spec := child.Child(j); spec.Type() == "var_spec" || spec.Type() == "const_spec" {
					process(spec)
				}
			}
		}
	}
}

// locals walks a function body for short variable declarations and
// block-scoped var/const declarations. Local bindings are indexed for
// occurrence queries but flagged so name queries never surface them.
func (w *walker) locals(node *sitter.Node) {
	switch node.Type() {
	case "short_var_declaration":
		for i := 0; i < int(node.ChildCount()); i++ {
			child := node.Child(i)
			if child.Type() != "expression_list" {
				continue
			}
			for j := 0; j < int(child.ChildCount()); j++ {
				if ident := child.Child(j); ident.Type() == "identifier" {
					w.emitLocal(ident)
				}
			}
			// Only the left-hand list declares names.
			break
		}
	case "var_declaration", "const_declaration":
		var walk func(n *sitter.Node)
		walk = func(n *sitter.Node) {
			if n.Type() == "identifier" {
				w.emitLocal(n)
				return
			}
			for i := 0; i < int(n.ChildCount()); i++ {
				child := n.Child(i)
				if t := child.Type(); t == "identifier" || t == "var_spec" ||
					t == "const_spec" || t == "var_spec_list" || t == "const_spec_list" {
					walk(child)
				}
			}
		}
		walk(node)
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		w.locals(node.Child(i))
	}
}

func (w *walker) emitLocal(nameNode *sitter.Node) {
	name := w.text(nameNode)
	if name == "_" {
		return
	}
	sym := slab.Symbol{
		ID:                   w.localID(nameNode, name),
		Name:                 name,
		Kind:                 slab.SymbolKindVariable,
		Language:             "go",
		CanonicalDeclaration: w.location(nameNode),
		Definition:           w.location(nameNode),
		FunctionLocal:        true,
	}
	w.emit(sym, nameNode, slab.OccurrenceDeclaration|slab.OccurrenceDefinition)
}

// references records a Reference occurrence for every mention of a
// declared top-level name outside its declaration site.
func (w *walker) references(node *sitter.Node) {
	switch node.Type() {
	case "identifier", "type_identifier", "field_identifier":
		if w.declSites[node.StartByte()] {
			return
		}
		if id, ok := w.declared[w.text(node)]; ok {
			w.occs.Insert(id, slab.Occurrence{
				Location: w.location(node),
				Kind:     slab.OccurrenceReference,
			})
		}
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		w.references(node.Child(i))
	}
}

// signature renders "(params) returns" the way completion displays it.
func signature(params, returns string) string {
	if params == "" {
		params = "()"
	}
	if returns == "" {
		return params
	}
	return params + " " + returns
}

// snippetSuffix renders the completion snippet appended after the
// name: "()" for nullary callables, a tab-stop otherwise.
func snippetSuffix(params string) string {
	if params == "" || params == "()" {
		return "()"
	}
	return "($0)"
}
