// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package locator converts between absolute file paths and the URIs
// stored in symbol locations.
//
// The index never stores raw paths; every location carries a URI so
// that consumers on other hosts, or consumers holding virtual files,
// can resolve it. The default scheme is "file". Embedders may register
// custom schemes (build-system virtual paths, editor buffers, test
// fixtures) and ask the locator to prefer them.
package locator

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/AleutianAI/AleutianIndex/pkg/validation"
)

// ErrUnknownScheme is returned when a URI names a scheme no registered
// converter handles.
var ErrUnknownScheme = errors.New("locator: unknown URI scheme")

// Scheme converts between a URI body and an absolute path.
//
// Implementations must be safe for concurrent use; the registry calls
// them without additional locking.
type Scheme interface {
	// URIFromPath renders an absolute path as a URI, or returns an
	// error if the path is outside the scheme's domain.
	URIFromPath(path string) (string, error)

	// PathFromURI resolves a URI of this scheme back to an absolute
	// path.
	PathFromURI(uri string) (string, error)
}

// FileScheme is the default "file" scheme. The zero value is ready to
// use.
type FileScheme struct{}

// URIFromPath renders path as file://<path>. The path must be
// absolute.
func (FileScheme) URIFromPath(p string) (string, error) {
	if !strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("locator: path %q is not absolute", p)
	}
	u := url.URL{Scheme: "file", Path: p}
	return u.String(), nil
}

// PathFromURI resolves a file:// URI to its path component.
func (FileScheme) PathFromURI(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("locator: parse %q: %w", uri, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("%w: %q", ErrUnknownScheme, u.Scheme)
	}
	return u.Path, nil
}

// PrefixScheme maps paths under a fixed root to a custom scheme.
//
// A PrefixScheme named "unittest" rooted at "/index-test" renders
// /index-test/f.go as unittest:///f.go. Useful for test fixtures and
// virtual file systems that want host-independent URIs.
type PrefixScheme struct {
	Name string
	Root string
}

// URIFromPath renders a path under Root, or errors for paths outside
// the root.
func (s PrefixScheme) URIFromPath(p string) (string, error) {
	rel, ok := strings.CutPrefix(p, s.Root)
	if !ok {
		return "", fmt.Errorf("locator: path %q is outside %s root %q", p, s.Name, s.Root)
	}
	if !strings.HasPrefix(rel, "/") {
		rel = "/" + rel
	}
	u := url.URL{Scheme: s.Name, Path: rel}
	return u.String(), nil
}

// PathFromURI resolves a URI of this scheme back under Root.
func (s PrefixScheme) PathFromURI(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("locator: parse %q: %w", uri, err)
	}
	if u.Scheme != s.Name {
		return "", fmt.Errorf("%w: %q", ErrUnknownScheme, u.Scheme)
	}
	return path.Join(s.Root, u.Path), nil
}

// Registry maps scheme names to converters and renders paths using a
// caller-supplied preference order.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	schemes map[string]Scheme
}

// NewRegistry creates a registry with the "file" scheme pre-registered.
func NewRegistry() *Registry {
	return &Registry{schemes: map[string]Scheme{"file": FileScheme{}}}
}

// Register adds or replaces a scheme converter. The name must be a
// valid URI scheme per RFC 3986.
func (r *Registry) Register(name string, s Scheme) error {
	if err := validation.ValidateSchemeName(name); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemes[name] = s
	return nil
}

// Names returns the registered scheme names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.schemes))
	for name := range r.schemes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// URIForPath renders an absolute path as a URI.
//
// Inputs:
//   - p: absolute file path.
//   - preferred: scheme names to try in order. Schemes that reject the
//     path are skipped. "file" is always the final fallback.
//
// Outputs:
//   - string: the rendered URI.
//   - error: only when every candidate scheme, including file, rejects
//     the path.
func (r *Registry) URIForPath(p string, preferred ...string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range preferred {
		s, ok := r.schemes[name]
		if !ok {
			continue
		}
		if uri, err := s.URIFromPath(p); err == nil {
			return uri, nil
		}
	}
	return FileScheme{}.URIFromPath(p)
}

// PathForURI resolves a URI of any registered scheme to an absolute
// path.
func (r *Registry) PathForURI(uri string) (string, error) {
	scheme, _, ok := strings.Cut(uri, ":")
	if !ok {
		return "", fmt.Errorf("locator: %q has no scheme", uri)
	}
	r.mu.RLock()
	s, found := r.schemes[scheme]
	r.mu.RUnlock()
	if !found {
		return "", fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}
	return s.PathFromURI(uri)
}
