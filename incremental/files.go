// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package incremental

import (
	"context"
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	log "github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"go.chromium.org/infra/build/ccdelta/o11y/clog"
	"go.chromium.org/infra/build/ccdelta/runtimex"
)

// Option is an option of Factory.
type Option struct {
	// OnEvent receives diagnostic events. nil drops them.
	OnEvent EventFunc

	// Parallelism is the max number of sources visited concurrently
	// by ProcessSources. Zero or negative means the number of CPUs.
	Parallelism int
}

// Factory creates analysis sessions.
type Factory struct {
	parser   Parser
	resolver Resolver
	hasher   Hasher
	opt      Option
}

// NewFactory creates a Factory.
func NewFactory(parser Parser, resolver Resolver, hasher Hasher, opt Option) *Factory {
	return &Factory{
		parser:   parser,
		resolver: resolver,
		hasher:   hasher,
		opt:      opt,
	}
}

// FilesFor creates an analysis session against the previous state.
// nil previous means the first build.
func (f *Factory) FilesFor(previous *State) *Files {
	if previous == nil {
		previous = &State{}
	}
	return &Files{
		factory:    f,
		previous:   previous,
		current:    NewBuildableState(),
		discovered: make(map[string]bool),
		headers:    make(map[string]bool),
	}
}

// Files is an analysis session.
//
// Each source must be processed at most once per session; callers
// de-duplicate sources. Once ProcessSource or ProcessSources returns
// an error, the session's results are undefined and its current state
// must not be persisted.
type Files struct {
	factory *Factory

	previous *State
	current  *BuildableState

	mu         sync.Mutex
	modified   []string
	discovered map[string]bool
	headers    map[string]bool

	macroIncludes atomic.Bool
	visits        atomic.Int64
	parses        atomic.Int64
}

// traversal is the scratch space of one source's include graph walk.
// It is never shared across sources.
type traversal struct {
	visited  map[string]bool
	included []IncludeDirectives
}

// ProcessSource processes the source fname and records it as modified
// if needed.
func (f *Files) ProcessSource(ctx context.Context, fname string) error {
	f.current.AddSource(fname)
	changed, err := f.visitSource(ctx, fname)
	if err != nil {
		return err
	}
	if changed {
		f.mu.Lock()
		f.modified = append(f.modified, fname)
		f.mu.Unlock()
	}
	return nil
}

// ProcessSources processes fnames concurrently.
// Modified sources are recorded in the order of fnames regardless of
// completion order.
func (f *Files) ProcessSources(ctx context.Context, fnames []string) error {
	changed := make([]bool, len(fnames))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtimex.Parallelism(f.factory.opt.Parallelism))
	for i, fname := range fnames {
		f.current.AddSource(fname)
		eg.Go(func() error {
			var err error
			changed[i], err = f.visitSource(gctx, fname)
			return err
		})
	}
	err := eg.Wait()
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, fname := range fnames {
		if changed[i] {
			f.modified = append(f.modified, fname)
		}
	}
	return nil
}

func (f *Files) visitSource(ctx context.Context, fname string) (bool, error) {
	t := &traversal{
		visited: make(map[string]bool),
	}
	changed, err := f.visitFile(ctx, t, fname)
	if err != nil {
		return false, err
	}
	if log.V(1) {
		clog.Infof(ctx, "source %s changed=%t new=%t visited=%d", fname, changed, !f.previous.HasSource(fname), len(t.visited))
	}
	return changed || !f.previous.HasSource(fname), nil
}

func (f *Files) visitFile(ctx context.Context, t *traversal, fname string) (bool, error) {
	if t.visited[fname] {
		// cycle, or already visited via another include. treat as unchanged here.
		f.event(ctx, Event{Kind: EventRevisit, File: fname})
		return false, nil
	}
	t.visited[fname] = true
	f.visits.Add(1)

	if !f.factory.hasher.IsFile(ctx, fname) {
		f.event(ctx, Event{Kind: EventMissingFile, File: fname})
		return true, nil
	}

	changed := false
	previous := f.previous.FileState(fname)
	d, err := f.factory.hasher.Hash(ctx, fname)
	if err != nil {
		return false, err
	}
	var directives IncludeDirectives
	if previous.SameDigest(d) {
		directives = previous.Directives
	} else {
		changed = true
		f.parses.Add(1)
		directives, err = f.factory.parser.ParseIncludes(ctx, fname)
		if err != nil {
			return false, err
		}
	}

	t.included = append(t.included, directives)
	res, err := f.factory.resolver.ResolveIncludes(ctx, fname, directives, t.included)
	if err != nil {
		return false, err
	}
	state := NewFileState(d, directives, res.Files())
	f.current.SetFileState(fname, state)
	f.record(res)

	if !previous.SameResolved(state) {
		changed = true
	}
	if log.V(2) {
		clog.Infof(ctx, "visit %s digest=%s changed=%t includes=%q", fname, d, changed, res.Includes)
	}

	for _, inc := range res.Includes {
		if inc.IsUnknown() {
			f.event(ctx, Event{Kind: EventMacroInclude, File: fname, Include: inc.Include})
			changed = true
			continue
		}
		depChanged, err := f.visitFile(ctx, t, inc.File)
		if err != nil {
			return false, err
		}
		changed = changed || depChanged
	}
	return changed, nil
}

func (f *Files) record(res Resolution) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, loc := range res.CheckedLocations {
		f.discovered[loc] = true
	}
	for _, inc := range res.Includes {
		if inc.IsUnknown() {
			f.macroIncludes.Store(true)
			continue
		}
		f.headers[inc.File] = true
	}
}

func (f *Files) event(ctx context.Context, e Event) {
	if f.factory.opt.OnEvent == nil {
		return
	}
	f.factory.opt.OnEvent(ctx, e)
}

// ModifiedSources returns sources that need to be recompiled,
// in processing order.
func (f *Files) ModifiedSources() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.modified)
}

// RemovedSources returns sources of the previous state that were not
// processed in this session, in the previous state's order.
func (f *Files) RemovedSources() []string {
	var removed []string
	for _, src := range f.previous.Sources() {
		if !f.current.HasSource(src) {
			removed = append(removed, src)
		}
	}
	return removed
}

// DiscoveredInputs returns sorted locations probed during include
// resolution, whether they exist or not. A build should be considered
// stale when any of them is created, removed or modified.
func (f *Files) DiscoveredInputs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return sortedKeys(f.discovered)
}

// ExistingHeaders returns sorted files that includes resolved to.
func (f *Files) ExistingHeaders() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return sortedKeys(f.headers)
}

// UsesMacroIncludes reports whether any include couldn't be resolved
// statically in this session.
func (f *Files) UsesMacroIncludes() bool {
	return f.macroIncludes.Load()
}

// Current returns the new state to be persisted for the next build.
func (f *Files) Current() *State {
	return f.current.Snapshot()
}

// Stats is statistics of a session.
type Stats struct {
	// Visits is the number of file visits, excluding revisits.
	Visits int64 `json:"visits"`
	// Parses is the number of files parsed. Other visited files
	// reused include directives of the previous state.
	Parses int64 `json:"parses"`
}

// Stats returns statistics of the session.
func (f *Files) Stats() Stats {
	return Stats{
		Visits: f.visits.Load(),
		Parses: f.parses.Load(),
	}
}

// Result is the verdict of a session.
type Result struct {
	ModifiedSources   []string `json:"modified_sources"`
	RemovedSources    []string `json:"removed_sources"`
	DiscoveredInputs  []string `json:"discovered_inputs"`
	ExistingHeaders   []string `json:"existing_headers"`
	UsesMacroIncludes bool     `json:"uses_macro_includes"`
	Stats             Stats    `json:"stats"`
}

// Result returns the verdict of the session.
func (f *Files) Result() Result {
	return Result{
		ModifiedSources:   f.ModifiedSources(),
		RemovedSources:    f.RemovedSources(),
		DiscoveredInputs:  f.DiscoveredInputs(),
		ExistingHeaders:   f.ExistingHeaders(),
		UsesMacroIncludes: f.UsesMacroIncludes(),
		Stats:             f.Stats(),
	}
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
