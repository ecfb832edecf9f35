// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command indexd runs the Aleutian symbol index service.
//
// indexd maintains an in-memory, snapshot-consistent symbol index over
// source trees and serves fuzzy name, ID lookup, and occurrence
// queries over HTTP.
//
// # Usage
//
//	# Serve on the default port
//	indexd serve
//
//	# Index and watch a tree while serving
//	indexd serve --watch /path/to/project
//
//	# Dump the index to interchange YAML
//	indexd export --out symbols.yaml
//
//	# Preload an interchange dump at startup
//	indexd serve --load symbols.yaml
//
// # Environment Variables
//
//   - INDEXD_PORT: HTTP server port (default: 12230)
//   - INDEXD_LOG_LEVEL: debug, info, warn, error (default: info)
//   - INDEXD_LOG_DIR: enable file logging to this directory
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (optional)
//
// # Example Requests
//
//	# Health check
//	curl http://localhost:12230/v1/symbols/health
//
//	# Index a tree
//	curl -X POST http://localhost:12230/v1/symbols/index \
//	  -H "Content-Type: application/json" \
//	  -d '{"root": "/path/to/project"}'
//
//	# Fuzzy query
//	curl -X POST http://localhost:12230/v1/symbols/query/fuzzy \
//	  -H "Content-Type: application/json" \
//	  -d '{"query": "NewServ", "anyScope": true}'
package main

import (
	"log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
