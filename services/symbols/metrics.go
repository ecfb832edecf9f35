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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

const (
	metricsNamespace = "aleutian"
	metricsSubsystem = "symbols"
)

// Package-level tracer for index operations.
var tracer = otel.Tracer("aleutian.symbols")

// Prometheus metrics for the symbol index service. Registered against
// the default registry at package load; exposed via /metrics.
var (
	// updatesTotal counts file table mutations.
	// Labels: op (update, remove, import)
	updatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "updates_total",
			Help:      "Total file table mutations by operation",
		},
		[]string{"op"},
	)

	// rebuildSeconds measures merged view rebuild latency.
	rebuildSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "rebuild_seconds",
			Help:      "Merged index rebuild duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
	)

	// querySeconds measures query latency by entry point.
	// Labels: op (fuzzy_find, lookup, occurrences)
	querySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "query_seconds",
			Help:      "Query duration in seconds by entry point",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"op"},
	)

	// indexedFiles tracks the number of files in the live table.
	indexedFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "indexed_files",
			Help:      "Files currently contributing to the index",
		},
	)

	// indexedSymbols tracks distinct symbols in the merged view.
	indexedSymbols = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "indexed_symbols",
			Help:      "Distinct symbols in the current merged view",
		},
	)

	// queryCacheTotal counts query cache outcomes.
	// Labels: outcome (hit, miss)
	queryCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "query_cache_total",
			Help:      "Fuzzy query cache lookups by outcome",
		},
		[]string{"outcome"},
	)

	// extractionErrorsTotal counts files whose extraction degraded
	// or failed.
	extractionErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "extraction_errors_total",
			Help:      "Files that failed to parse cleanly",
		},
	)
)
