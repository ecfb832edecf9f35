// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that end up
// in file operations or URI rendering. Using these validators prevents
// path traversal and malformed scheme registration.
package validation

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Sentinel errors returned by path validation. Callers match with
// errors.Is to map them to their own error surfaces.
var (
	// ErrRelativePath indicates a path argument was not absolute.
	ErrRelativePath = errors.New("path must be absolute")

	// ErrPathTraversal indicates a path contains .. traversal
	// sequences or escapes its allowed roots.
	ErrPathTraversal = errors.New("path contains traversal sequences")
)

// schemePattern matches valid URI scheme names per RFC 3986:
// a letter followed by letters, digits, "+", "-", or ".".
var schemePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*$`)

// ValidateAbsolutePath rejects relative paths and paths carrying ..
// traversal sequences.
//
// Example:
//
//	if err := validation.ValidateAbsolutePath(path); err != nil {
//	    return nil, err
//	}
//	// Safe to pass to os.ReadFile or render into a file URI
func ValidateAbsolutePath(path string) error {
	if !filepath.IsAbs(path) {
		return fmt.Errorf("%w: %q", ErrRelativePath, path)
	}
	if strings.Contains(path, "..") {
		return fmt.Errorf("%w: %q", ErrPathTraversal, path)
	}
	return nil
}

// ValidateWithinRoots checks an already-absolute path against an
// allowlist of path prefixes. An empty allowlist permits any path.
func ValidateWithinRoots(path string, roots []string) error {
	if len(roots) == 0 {
		return nil
	}
	for _, root := range roots {
		if strings.HasPrefix(path, root) {
			return nil
		}
	}
	return fmt.Errorf("%w: %q outside allowed roots", ErrPathTraversal, path)
}

// ValidateSchemeName checks a URI scheme name against RFC 3986 syntax.
func ValidateSchemeName(name string) error {
	if name == "" {
		return fmt.Errorf("scheme name cannot be empty")
	}
	if !schemePattern.MatchString(name) {
		return fmt.Errorf("invalid scheme name: %q", name)
	}
	return nil
}
