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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianIndex/services/symbols"
)

// --- Global Command Variables ---
var (
	configPath string
	debugMode  bool

	// serve flags
	watchDirs    []string
	loadDumps    []string
	allowedRoots []string

	// export/import flags
	outPath  string
	treeRoot string

	rootCmd = &cobra.Command{
		Use:   "indexd",
		Short: "The Aleutian symbol index service",
		Long: `indexd maintains an in-memory symbol index over source trees and
serves fuzzy name, ID lookup, and occurrence queries over HTTP.`,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the symbol index HTTP server",
		RunE:  runServe, // Defined in cmd_serve.go
	}

	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Index a tree and write the symbols as interchange YAML",
		RunE:  runExport, // Defined in cmd_interchange.go
	}

	importCmd = &cobra.Command{
		Use:   "import [file...]",
		Short: "Validate interchange YAML dumps and report their contents",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImport, // Defined in cmd_interchange.go
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the indexd version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("indexd %s\n", symbols.ServiceVersion)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to a YAML config file (default: indexd.yaml if present)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false,
		"Enable debug logging and verbose HTTP output")

	serveCmd.Flags().StringSliceVar(&watchDirs, "watch", nil,
		"Directory to index at startup and watch for changes (repeatable)")
	serveCmd.Flags().StringSliceVar(&loadDumps, "load", nil,
		"Interchange YAML dump to preload at startup (repeatable)")
	serveCmd.Flags().StringSliceVar(&allowedRoots, "allow-root", nil,
		"Restrict indexing to this path prefix (repeatable)")

	exportCmd.Flags().StringVar(&treeRoot, "root", "",
		"Directory tree to index before exporting")
	exportCmd.Flags().StringVar(&outPath, "out", "-",
		"Output file ('-' for stdout)")
	_ = exportCmd.MarkFlagRequired("root")

	rootCmd.AddCommand(serveCmd, exportCmd, importCmd, versionCmd)
}

// resolveConfig loads the config honoring the --config flag.
func resolveConfig() (Config, error) {
	if configPath != "" {
		return loadConfig(configPath, true)
	}
	return loadConfig("indexd.yaml", false)
}
