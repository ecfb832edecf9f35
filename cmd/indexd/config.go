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
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the indexd configuration, loaded from an optional YAML
// file and overridden by environment variables.
type Config struct {
	// Port is the HTTP listen port.
	Port int `yaml:"port"`

	// LogLevel is debug, info, warn, or error.
	LogLevel string `yaml:"log_level"`

	// LogDir enables file logging when set.
	LogDir string `yaml:"log_dir"`

	// OTelEndpoint is the OTLP gRPC collector address. Empty disables
	// tracing export.
	OTelEndpoint string `yaml:"otel_endpoint"`

	// URISchemes is the locator scheme preference order for symbol
	// locations.
	URISchemes []string `yaml:"uri_schemes"`

	// AllowedRoots restricts update and tree operations to these path
	// prefixes. Empty allows any absolute path.
	AllowedRoots []string `yaml:"allowed_roots"`

	// WatchDirs are directories indexed at startup and watched for
	// changes while serving.
	WatchDirs []string `yaml:"watch_dirs"`

	// MaxFileSize caps single-file extraction, in bytes.
	MaxFileSize int64 `yaml:"max_file_size"`

	// MaxTreeFiles caps how many files one tree walk may index.
	MaxTreeFiles int `yaml:"max_tree_files"`

	// QueryCacheSize is the fuzzy query cache capacity.
	QueryCacheSize int `yaml:"query_cache_size"`
}

// loadConfig reads path (when non-empty), then applies environment
// overrides and defaults. A missing default config file is not an
// error; an unreadable or malformed explicit one is.
func loadConfig(path string, explicit bool) (Config, error) {
	var cfg Config

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		case explicit:
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	}

	if cfg.Port == 0 {
		cfg.Port = getEnvInt("INDEXD_PORT", 12230)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = getEnvString("INDEXD_LOG_LEVEL", "info")
	}
	if cfg.LogDir == "" {
		cfg.LogDir = os.Getenv("INDEXD_LOG_DIR")
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}

	return cfg, nil
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
