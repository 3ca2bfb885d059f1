// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scandeps

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	log "github.com/golang/glog"

	"go.chromium.org/infra/build/ccdelta/hashfs"
	"go.chromium.org/infra/build/ccdelta/incremental"
	"go.chromium.org/infra/build/ccdelta/o11y/clog"
)

// SearchConfig is a configuration of include search paths.
type SearchConfig struct {
	// QuoteDirs are searched for #include "foo.h" after the including
	// file's directory. (-iquote)
	QuoteDirs []string

	// Dirs are searched for both #include "foo.h" and <foo.h>.
	// (-I, -isystem)
	// A dir ending with ".hmap" is a Clang header map.
	Dirs []string

	// Sysroots are searched for both forms at last, in
	// usr/include and usr/local/include of each sysroot.
	Sysroots []string

	// Defines are macros given on command line. (-D)
	Defines map[string]string
}

type searchDir struct {
	dir  string
	hmap map[string]string // non-nil for header map.
}

// Resolver resolves include directives on the local filesystem.
type Resolver struct {
	hfs *hashfs.HashFS

	quoteDirs []string
	dirs      []searchDir
	defines   map[string][]string
}

// NewResolver creates a resolver for cfg.
// Header maps in cfg.Dirs are read at creation.
func NewResolver(ctx context.Context, hfs *hashfs.HashFS, cfg SearchConfig) (*Resolver, error) {
	r := &Resolver{
		hfs:       hfs,
		quoteDirs: cleanDirs(cfg.QuoteDirs),
		defines:   make(map[string][]string),
	}
	for _, dir := range cleanDirs(cfg.Dirs) {
		if !strings.HasSuffix(dir, ".hmap") {
			r.dirs = append(r.dirs, searchDir{dir: dir})
			continue
		}
		buf, err := hfs.ReadFile(ctx, dir)
		if err != nil {
			return nil, fmt.Errorf("failed to read hmap %s: %w", dir, err)
		}
		m, err := ParseHeaderMap(buf)
		if err != nil {
			return nil, fmt.Errorf("failed to parse hmap %s: %w", dir, err)
		}
		if log.V(1) {
			clog.Infof(ctx, "hmap %s: %d entries", dir, len(m))
		}
		r.dirs = append(r.dirs, searchDir{dir: dir, hmap: m})
	}
	for _, sysroot := range cleanDirs(cfg.Sysroots) {
		r.dirs = append(r.dirs,
			searchDir{dir: filepath.Join(sysroot, "usr/include")},
			searchDir{dir: filepath.Join(sysroot, "usr/local/include")})
	}
	for k, v := range cfg.Defines {
		if v == "" {
			continue
		}
		r.defines[k] = []string{v}
	}
	return r, nil
}

func cleanDirs(dirs []string) []string {
	var cleaned []string
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		cleaned = append(cleaned, filepath.Clean(dir))
	}
	return cleaned
}

// ResolveIncludes resolves directives of fname.
//
// Macro includes are expanded with command line defines and macros
// defined in included, i.e. fname itself and the files visited before
// it in the current traversal. All possible values are resolved, since
// #if is not evaluated. If a macro value is not known, the include is
// resolved as unknown in addition to the known values.
//
// #include_next continues the search after the search dir where fname
// was found.
func (r *Resolver) ResolveIncludes(ctx context.Context, fname string, directives incremental.IncludeDirectives, included []incremental.IncludeDirectives) (incremental.Resolution, error) {
	macros := func(name string) []string {
		values := r.defines[name]
		for _, d := range included {
			for _, v := range d.Macros[name] {
				values = appendUnique(values, v)
			}
		}
		return values
	}
	var res incremental.Resolution
	for _, inc := range directives.Includes {
		incname, next := strings.CutPrefix(inc, includeNextPrefix)
		paths, ok := expandMacros(ctx, nil, incname, macros, make(map[string]bool))
		for _, p := range paths {
			f, found := r.find(ctx, &res, fname, p, next)
			if !found {
				if log.V(1) {
					clog.Infof(ctx, "%s: %s not found", fname, p)
				}
				continue
			}
			res.Includes = append(res.Includes, incremental.Known(inc, f))
		}
		if !ok {
			res.Includes = append(res.Includes, incremental.Unknown(inc))
		}
	}
	return res, nil
}

// find finds the file for incpath ("foo.h" or <foo.h>) included from fname.
// If next is true, it is for #include_next.
func (r *Resolver) find(ctx context.Context, res *incremental.Resolution, fname, incpath string, next bool) (string, bool) {
	if len(incpath) < 3 {
		return "", false
	}
	quote := incpath[0] == '"'
	name := incpath[1 : len(incpath)-1]
	probe := func(f string) bool {
		res.CheckedLocations = append(res.CheckedLocations, f)
		return r.hfs.IsFile(ctx, f)
	}
	if filepath.IsAbs(name) {
		f := filepath.Clean(name)
		return f, probe(f)
	}
	var dirs []searchDir
	if quote {
		if !next {
			dirs = append(dirs, searchDir{dir: filepath.Dir(fname)})
		}
		for _, dir := range r.quoteDirs {
			dirs = append(dirs, searchDir{dir: dir})
		}
	}
	dirs = append(dirs, r.dirs...)
	if next {
		dirs = nextDirs(dirs, fname, name)
	}
	for _, dir := range dirs {
		if dir.hmap == nil {
			f := filepath.Join(dir.dir, name)
			if next && f == fname {
				continue
			}
			if probe(f) {
				return f, true
			}
			continue
		}
		res.CheckedLocations = append(res.CheckedLocations, dir.dir)
		v, ok := dir.hmap[strings.ToLower(name)]
		if !ok {
			continue
		}
		f := filepath.Clean(v)
		if next && f == fname {
			continue
		}
		if probe(f) {
			return f, true
		}
	}
	return "", false
}

// nextDirs returns dirs after the one where fname is found as name.
// If fname is not found in dirs, e.g. it is a source file, all dirs are
// returned, and the caller skips fname itself.
func nextDirs(dirs []searchDir, fname, name string) []searchDir {
	for i, dir := range dirs {
		if dir.hmap == nil && filepath.Join(dir.dir, name) == fname {
			return dirs[i+1:]
		}
	}
	return dirs
}
