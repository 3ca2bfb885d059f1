// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package watcher watches files that affect the result of analysis.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/golang/glog"
	"golang.org/x/time/rate"

	"go.chromium.org/infra/build/ccdelta/o11y/clog"
)

// Option is an option of Watcher.
type Option struct {
	// Debounce is the quiet period after the last change before
	// changes are reported.
	Debounce time.Duration

	// MinInterval is the minimum interval between reports.
	MinInterval time.Duration
}

// Watcher watches a set of files.
//
// Files are watched via their directories, so files that don't exist
// yet, e.g. locations probed by include resolution, are watched too as
// long as their directories exist.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	limiter  *rate.Limiter

	mu    sync.Mutex
	files map[string]bool
	dirs  map[string]bool
}

// New creates a new watcher.
func New(opt Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	limit := rate.Inf
	if opt.MinInterval > 0 {
		limit = rate.Every(opt.MinInterval)
	}
	return &Watcher{
		fsw:      fsw,
		debounce: opt.Debounce,
		limiter:  rate.NewLimiter(limit, 1),
		files:    make(map[string]bool),
		dirs:     make(map[string]bool),
	}, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// SetFiles replaces the set of files to watch.
// It returns the number of directories being watched.
func (w *Watcher) SetFiles(ctx context.Context, files []string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.files = make(map[string]bool, len(files))
	dirs := make(map[string]bool)
	for _, f := range files {
		f = filepath.Clean(f)
		w.files[f] = true
		dirs[filepath.Dir(f)] = true
	}
	for dir := range w.dirs {
		if dirs[dir] {
			continue
		}
		err := w.fsw.Remove(dir)
		if err != nil {
			if log.V(1) {
				clog.Infof(ctx, "unwatch %s: %v", dir, err)
			}
		}
		delete(w.dirs, dir)
	}
	for dir := range dirs {
		if w.dirs[dir] {
			continue
		}
		err := w.fsw.Add(dir)
		if err != nil {
			// probed include dirs may not exist.
			if log.V(1) {
				clog.Infof(ctx, "watch %s: %v", dir, err)
			}
			continue
		}
		w.dirs[dir] = true
	}
	return len(w.dirs)
}

// Len returns the number of files being watched.
func (w *Watcher) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.files)
}

func (w *Watcher) watched(fname string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.files[filepath.Clean(fname)]
}

// Wait waits for changes of the watched files, and returns the sorted
// changed files once no change has happened for the debounce period.
// Reports are rate limited by MinInterval.
func (w *Watcher) Wait(ctx context.Context) ([]string, error) {
	pending := make(map[string]bool)
	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil, context.Cause(ctx)
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil, fmt.Errorf("watcher closed")
			}
			if ev.Op == fsnotify.Chmod || !w.watched(ev.Name) {
				continue
			}
			if log.V(1) {
				clog.Infof(ctx, "watch event %s", ev)
			}
			pending[filepath.Clean(ev.Name)] = true
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil, fmt.Errorf("watcher closed")
			}
			clog.Warningf(ctx, "watch error: %v", err)
		case <-timerC:
			err := w.limiter.Wait(ctx)
			if err != nil {
				return nil, err
			}
			changed := make([]string, 0, len(pending))
			for f := range pending {
				changed = append(changed, f)
			}
			sort.Strings(changed)
			return changed, nil
		}
	}
}
