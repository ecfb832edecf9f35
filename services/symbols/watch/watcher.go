// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch feeds filesystem changes into the indexing pipeline.
//
// The watcher batches raw notifications behind a debounce window so a
// save-all in an editor becomes one reindex, and rate-limits flushes
// so a pathological writer cannot starve queries with rebuild churn.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

// Apply receives one debounced batch of filesystem changes. Paths are
// absolute. The callback runs on the watcher's goroutine; long work
// should be handed off.
type Apply func(ctx context.Context, changed, removed []string)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a batch is flushed.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithExtensions restricts watching to files with the given
// extensions. Defaults to ".go".
func WithExtensions(exts ...string) Option {
	return func(w *Watcher) {
		if len(exts) > 0 {
			w.extensions = exts
		}
	}
}

// WithFlushLimit caps how often batches flush, regardless of debounce.
func WithFlushLimit(perSecond float64, burst int) Option {
	return func(w *Watcher) {
		if perSecond > 0 && burst > 0 {
			w.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// Watcher turns raw fsnotify events into debounced reindex batches.
//
// # Thread Safety
//
// Add may be called before Run from any goroutine; Run owns the event
// loop and must be called once.
type Watcher struct {
	fs         *fsnotify.Watcher
	apply      Apply
	debounce   time.Duration
	extensions []string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// New creates a watcher delivering batches to apply.
func New(apply Apply, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create watcher: %w", err)
	}
	w := &Watcher{
		fs:         fsw,
		apply:      apply,
		debounce:   500 * time.Millisecond,
		extensions: []string{".go"},
		limiter:    rate.NewLimiter(rate.Limit(4), 2),
		logger:     slog.Default().With(slog.String("component", "watch")),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Add registers root and every directory below it.
func (w *Watcher) Add(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		// Vendored and hidden trees are never part of the index.
		name := d.Name()
		if path != root && (strings.HasPrefix(name, ".") || name == "vendor") {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("watch: add %s: %w", path, err)
		}
		return nil
	})
}

// Close releases the underlying watcher. Run returns after Close.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

// Run pumps events until the context ends or the watcher closes.
//
// Description:
//
//	Accumulates per-path changes and flushes them to the Apply
//	callback once the debounce window passes without new events. A
//	path that is both written and removed inside one window is
//	reported with its final state only.
//
// Outputs:
//   - error: the context's error on cancellation, nil on Close.
func (w *Watcher) Run(ctx context.Context) error {
	var (
		pending = make(map[string]bool) // path -> removed
		timer   = time.NewTimer(w.debounce)
	)
	if !timer.Stop() {
		<-timer.C
	}

	flush := func() {
		if len(pending) == 0 {
			return
		}
		if err := w.limiter.Wait(ctx); err != nil {
			return
		}
		var changed, removed []string
		for path, gone := range pending {
			if gone {
				removed = append(removed, path)
			} else {
				changed = append(changed, path)
			}
		}
		pending = make(map[string]bool)
		w.logger.Debug("flushing batch",
			slog.Int("changed", len(changed)),
			slog.Int("removed", len(removed)))
		w.apply(ctx, changed, removed)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fs.Events:
			if !ok {
				flush()
				return nil
			}
			if !w.track(ev, pending) {
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)

		case err, ok := <-w.fs.Errors:
			if !ok {
				flush()
				return nil
			}
			w.logger.Warn("watcher error", slog.String("error", err.Error()))

		case <-timer.C:
			flush()
		}
	}
}

// track folds one raw event into the pending set. Returns false when
// the event is irrelevant to the index.
func (w *Watcher) track(ev fsnotify.Event, pending map[string]bool) bool {
	// A created directory needs watching; it is not itself indexed.
	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.Add(ev.Name); err != nil {
				w.logger.Warn("cannot watch new directory",
					slog.String("path", ev.Name),
					slog.String("error", err.Error()))
			}
			return false
		}
	}

	if !w.indexable(ev.Name) {
		return false
	}

	switch {
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		pending[ev.Name] = true
	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		pending[ev.Name] = false
	default:
		return false
	}
	return true
}

func (w *Watcher) indexable(path string) bool {
	ext := filepath.Ext(path)
	for _, want := range w.extensions {
		if ext == want {
			return true
		}
	}
	return false
}
