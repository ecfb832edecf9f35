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
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/AleutianIndex/pkg/logging"
	"github.com/AleutianAI/AleutianIndex/services/symbols"
	"github.com/AleutianAI/AleutianIndex/services/symbols/watch"
)

// runServe starts the HTTP server, optionally preloading dumps and
// watching directories.
func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}

	level := logging.ParseLevel(cfg.LogLevel)
	if debugMode {
		level = logging.LevelDebug
	}
	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.LogDir,
		Service: "indexd",
	})
	defer logger.Close()
	logger.Install()

	if debugMode {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize OpenTelemetry tracing when a collector is configured.
	if cfg.OTelEndpoint != "" {
		cleanup, err := initTracer(cfg.OTelEndpoint)
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}
		defer cleanup(context.Background())
	}

	svcConfig := symbols.DefaultConfig()
	svcConfig.URISchemes = cfg.URISchemes
	svcConfig.AllowedRoots = append(cfg.AllowedRoots, allowedRoots...)
	if cfg.MaxFileSize > 0 {
		svcConfig.MaxFileSize = cfg.MaxFileSize
	}
	if cfg.MaxTreeFiles > 0 {
		svcConfig.MaxTreeFiles = cfg.MaxTreeFiles
	}
	if cfg.QueryCacheSize > 0 {
		svcConfig.QueryCacheSize = cfg.QueryCacheSize
	}

	svc, err := symbols.NewService(svcConfig)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	for _, dump := range loadDumps {
		f, err := os.Open(dump)
		if err != nil {
			return fmt.Errorf("open dump %s: %w", dump, err)
		}
		n, err := svc.ImportStream(dump, f)
		f.Close()
		if err != nil {
			return fmt.Errorf("load dump %s: %w", dump, err)
		}
		slog.Info("Preloaded interchange dump", "path", dump, "symbols", n)
	}

	roots := append(cfg.WatchDirs, watchDirs...)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(roots) > 0 {
		if err := startWatching(ctx, svc, roots); err != nil {
			return err
		}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if debugMode {
		router.Use(gin.Logger())
	}
	router.Use(otelgin.Middleware("indexd"))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	symbols.RegisterRoutes(v1, symbols.NewHandlers(svc))

	go func() {
		<-ctx.Done()
		slog.Info("Shutting down indexd")
		os.Exit(0)
	}()

	addr := fmt.Sprintf(":%d", cfg.Port)
	slog.Info("Starting indexd server", slog.String("address", addr))
	if err := router.Run(addr); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// startWatching indexes each root and keeps it indexed as files
// change.
func startWatching(ctx context.Context, svc *symbols.Service, roots []string) error {
	watcher, err := watch.New(svc.ApplyChanges)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	for _, root := range roots {
		resp, err := svc.IndexTree(ctx, root, nil)
		if err != nil {
			return fmt.Errorf("initial index of %s: %w", root, err)
		}
		slog.Info("Indexed tree",
			"root", root,
			"files", resp.FilesIndexed,
			"symbols", resp.Symbols)

		if err := watcher.Add(root); err != nil {
			return fmt.Errorf("watch %s: %w", root, err)
		}
	}

	go func() {
		if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("Watcher stopped", "error", err)
		}
	}()
	return nil
}

// initTracer initializes OpenTelemetry distributed tracing.
//
// Uses an insecure gRPC connection, appropriate for internal networks.
func initTracer(endpoint string) (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("indexd")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}
