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

import "github.com/gin-gonic/gin"

// RegisterRoutes registers the symbol index endpoints.
//
// Endpoints:
//
//	POST   /v1/symbols/files             - Index or reindex a single file
//	DELETE /v1/symbols/files             - Remove a file's contribution
//	POST   /v1/symbols/index             - Walk and index a source tree
//	POST   /v1/symbols/query/fuzzy       - Fuzzy name query
//	POST   /v1/symbols/query/lookup      - Resolve symbol IDs
//	POST   /v1/symbols/query/occurrences - Declaration/definition/reference sites
//	GET    /v1/symbols/stats             - Index statistics
//	GET    /v1/symbols/health            - Liveness probe
//	GET    /v1/symbols/ready             - Readiness probe
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	group := rg.Group("/symbols")
	{
		group.POST("/files", handlers.HandleUpdateFile)
		group.DELETE("/files", handlers.HandleRemoveFile)
		group.POST("/index", handlers.HandleIndexTree)
		group.POST("/query/fuzzy", handlers.HandleFuzzyFind)
		group.POST("/query/lookup", handlers.HandleLookup)
		group.POST("/query/occurrences", handlers.HandleOccurrences)
		group.GET("/stats", handlers.HandleStats)
		group.GET("/health", handlers.HandleHealth)
		group.GET("/ready", handlers.HandleReady)
	}
}
