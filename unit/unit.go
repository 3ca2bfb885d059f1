// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package unit wires the incremental engine with the local filesystem
// collaborators for a set of compile units.
package unit

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	log "github.com/golang/glog"

	"go.chromium.org/infra/build/ccdelta/hashfs"
	"go.chromium.org/infra/build/ccdelta/incremental"
	"go.chromium.org/infra/build/ccdelta/incremental/statefile"
	"go.chromium.org/infra/build/ccdelta/o11y/clog"
	"go.chromium.org/infra/build/ccdelta/scandeps"
	"go.chromium.org/infra/build/ccdelta/toolsupport/compdbutil"
	"go.chromium.org/infra/build/ccdelta/toolsupport/gccutil"
	"go.chromium.org/infra/build/ccdelta/toolsupport/msvcutil"
	"go.chromium.org/infra/build/ccdelta/unitconfig"
)

// Unit is a set of sources compiled with the same include search
// configuration.
type Unit struct {
	// Dir is the absolute working directory.
	Dir string

	// Sources are absolute source paths, de-duplicated.
	Sources []string

	Search scandeps.SearchConfig

	// StateFile is the absolute state filename.
	StateFile string

	Hash        string
	Parallelism int
}

// New creates a unit in dir from cfg and an optional compile command.
//
// Sources are cfg's sources, followed by the compilation database's
// sources and the command's sources. Forced includes (-include, /FI)
// are checked as sources too. Include dirs and defines of all compile
// commands are merged into one search config, in order of appearance.
func New(ctx context.Context, dir string, cfg unitconfig.Config, command []string) (*Unit, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	sources, err := cfg.ExpandSources(ctx, dir)
	if err != nil {
		return nil, err
	}
	if cfg.CompileCommands != "" {
		fname := cfg.CompileCommands
		if !filepath.IsAbs(fname) {
			fname = filepath.Join(dir, fname)
		}
		entries, err := compdbutil.Load(ctx, fname)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !filepath.IsAbs(e.Directory) {
				e.Directory = filepath.Join(dir, e.Directory)
			}
			p, err := e.Params(ctx)
			if err != nil {
				return nil, err
			}
			cfg.AddParams(e.Directory, p)
			sources = append(sources, e.Source())
			sources = append(sources, absPaths(e.Directory, p.ForcedIncludes)...)
		}
	}
	if len(command) > 0 {
		var p gccutil.Params
		if msvcutil.IsClangCl(command[0]) {
			p = msvcutil.ScanDepsParams(ctx, command, nil)
		} else {
			p = gccutil.ScanDepsParams(ctx, command, nil)
		}
		cfg.AddParams(dir, p)
		sources = append(sources, absPaths(dir, p.Sources)...)
		sources = append(sources, absPaths(dir, p.ForcedIncludes)...)
	}
	search := cfg.SearchConfig(dir)
	search.QuoteDirs = uniq(search.QuoteDirs)
	search.Dirs = uniq(search.Dirs)
	search.Sysroots = uniq(search.Sysroots)
	u := &Unit{
		Dir:         dir,
		Sources:     uniq(sources),
		Search:      search,
		StateFile:   cfg.StateFilename(dir),
		Hash:        cfg.Hash,
		Parallelism: cfg.Parallelism,
	}
	if len(u.Sources) == 0 {
		return nil, fmt.Errorf("no sources in %s", dir)
	}
	if log.V(1) {
		clog.Infof(ctx, "unit %s: sources=%d quote_dirs=%q dirs=%q sysroots=%q defines=%d", dir, len(u.Sources), u.Search.QuoteDirs, u.Search.Dirs, u.Search.Sysroots, len(u.Search.Defines))
	}
	return u, nil
}

func absPaths(dir string, paths []string) []string {
	var r []string
	for _, p := range paths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		r = append(r, filepath.Clean(p))
	}
	return r
}

func uniq(s []string) []string {
	seen := make(map[string]bool)
	var r []string
	for _, v := range s {
		if seen[v] {
			continue
		}
		seen[v] = true
		r = append(r, v)
	}
	return r
}

// LoadState loads the previous state of the unit.
// nil state means no previous build.
func (u *Unit) LoadState(ctx context.Context) (*incremental.State, error) {
	return statefile.Load(ctx, u.StateFile)
}

// SaveState persists state for the next build.
func (u *Unit) SaveState(ctx context.Context, state *incremental.State) error {
	return statefile.Save(ctx, u.StateFile, state)
}

// Analyze checks the unit's sources against previous.
// It returns the verdict and the new state to be persisted.
// Files are read afresh in each call.
func (u *Unit) Analyze(ctx context.Context, previous *incremental.State, onEvent incremental.EventFunc) (incremental.Result, *incremental.State, error) {
	started := time.Now()
	hfs, err := hashfs.New(ctx, hashfs.Option{Hash: u.Hash})
	if err != nil {
		return incremental.Result{}, nil, err
	}
	defer func() {
		err := hfs.Close(ctx)
		if err != nil {
			clog.Warningf(ctx, "failed to close hashfs: %v", err)
		}
	}()
	resolver, err := scandeps.NewResolver(ctx, hfs, u.Search)
	if err != nil {
		return incremental.Result{}, nil, err
	}
	factory := incremental.NewFactory(scandeps.NewParser(hfs), resolver, hfs, incremental.Option{
		OnEvent:     onEvent,
		Parallelism: u.Parallelism,
	})
	files := factory.FilesFor(previous)
	err = files.ProcessSources(ctx, slices.Clone(u.Sources))
	if err != nil {
		return incremental.Result{}, nil, err
	}
	result := files.Result()
	clog.Infof(ctx, "analyzed %d sources in %s: modified=%d removed=%d visits=%d parses=%d io=%s", len(u.Sources), time.Since(started), len(result.ModifiedSources), len(result.RemovedSources), result.Stats.Visits, result.Stats.Parses, hfs.IOMetrics.Stats())
	return result, files.Current(), nil
}
