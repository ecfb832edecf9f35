// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianIndex/services/symbols"
	"github.com/AleutianAI/AleutianIndex/services/symbols/interchange"
)

// runExport indexes a tree and writes the merged symbols as
// interchange YAML.
func runExport(cmd *cobra.Command, args []string) error {
	root, err := filepath.Abs(treeRoot)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}

	svc, err := symbols.NewService(symbols.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	resp, err := svc.IndexTree(context.Background(), root, nil)
	if err != nil {
		return fmt.Errorf("index %s: %w", root, err)
	}

	out := os.Stdout
	if outPath != "-" && outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create %s: %w", outPath, err)
		}
		defer f.Close()
		out = f
	}

	if err := svc.Export(out); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Exported %d symbols from %d files\n",
		resp.Symbols, resp.FilesIndexed)
	return nil
}

// runImport decodes each dump and reports what it contains. A dump
// that fails to decode makes the command fail after all files are
// checked.
func runImport(cmd *cobra.Command, args []string) error {
	var failed int
	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
			continue
		}
		syms, err := interchange.Import(f)
		f.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Printf("%s: %d symbols\n", path, len(syms))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d dumps failed to decode", failed, len(args))
	}
	return nil
}
