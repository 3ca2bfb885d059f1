// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package incremental

import (
	"slices"
	"sort"
	"sync"

	"go.chromium.org/infra/build/ccdelta/reapi/digest"
)

// FileState is what a file looked like and resolved to at a point in time.
type FileState struct {
	Digest     digest.Digest
	Directives IncludeDirectives

	// ResolvedFiles are sorted, de-duplicated files the includes
	// resolved to.
	ResolvedFiles []string
}

// NewFileState creates a FileState. resolved is sorted and de-duplicated.
func NewFileState(d digest.Digest, directives IncludeDirectives, resolved []string) *FileState {
	files := slices.Clone(resolved)
	sort.Strings(files)
	return &FileState{
		Digest:        d,
		Directives:    directives,
		ResolvedFiles: slices.Compact(files),
	}
}

// SameDigest reports whether fs has digest d. A nil FileState never matches.
func (fs *FileState) SameDigest(d digest.Digest) bool {
	return fs != nil && fs.Digest == d
}

// SameResolved reports whether fs and o resolved to the same set of files.
// A nil FileState never matches.
func (fs *FileState) SameResolved(o *FileState) bool {
	if fs == nil || o == nil {
		return false
	}
	return slices.Equal(fs.ResolvedFiles, o.ResolvedFiles)
}

// State is an immutable snapshot of a compilation unit set: the source
// inputs and the states of all files visited from them.
// The zero value and nil are the empty state.
type State struct {
	sources    []string
	sourceSet  map[string]bool
	fileStates map[string]*FileState
}

// NewState creates a State from sources and file states.
// It is intended for state loaders; the engine builds states with
// BuildableState.
func NewState(sources []string, fileStates map[string]*FileState) *State {
	s := &State{
		sourceSet:  make(map[string]bool, len(sources)),
		fileStates: make(map[string]*FileState, len(fileStates)),
	}
	for _, src := range sources {
		if s.sourceSet[src] {
			continue
		}
		s.sourceSet[src] = true
		s.sources = append(s.sources, src)
	}
	for k, v := range fileStates {
		s.fileStates[k] = v
	}
	return s
}

// Sources returns the source inputs in the order they were added.
func (s *State) Sources() []string {
	if s == nil {
		return nil
	}
	return slices.Clone(s.sources)
}

// HasSource reports whether fname is a source input of the state.
func (s *State) HasSource(fname string) bool {
	if s == nil {
		return false
	}
	return s.sourceSet[fname]
}

// FileState returns the state of fname, or nil if fname was not visited.
func (s *State) FileState(fname string) *FileState {
	if s == nil {
		return nil
	}
	return s.fileStates[fname]
}

// Files returns sorted names of all visited files.
func (s *State) Files() []string {
	if s == nil {
		return nil
	}
	files := make([]string, 0, len(s.fileStates))
	for k := range s.fileStates {
		files = append(files, k)
	}
	sort.Strings(files)
	return files
}

// Len returns the number of visited files.
func (s *State) Len() int {
	if s == nil {
		return 0
	}
	return len(s.fileStates)
}

// BuildableState accumulates a State during one analysis session.
// It is safe for concurrent use.
type BuildableState struct {
	mu         sync.Mutex
	sources    []string
	sourceSet  map[string]bool
	fileStates map[string]*FileState
}

// NewBuildableState creates an empty BuildableState.
func NewBuildableState() *BuildableState {
	return &BuildableState{
		sourceSet:  make(map[string]bool),
		fileStates: make(map[string]*FileState),
	}
}

// AddSource adds fname as a source input.
func (b *BuildableState) AddSource(fname string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sourceSet[fname] {
		return
	}
	b.sourceSet[fname] = true
	b.sources = append(b.sources, fname)
}

// HasSource reports whether fname was added as a source input.
func (b *BuildableState) HasSource(fname string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sourceSet[fname]
}

// SetFileState sets the state of fname, overwriting the previous one.
func (b *BuildableState) SetFileState(fname string, fs *FileState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fileStates[fname] = fs
}

// Snapshot returns an immutable State of what is accumulated so far.
func (b *BuildableState) Snapshot() *State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return NewState(b.sources, b.fileStates)
}
