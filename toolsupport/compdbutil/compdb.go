// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package compdbutil provides utilities of JSON compilation database
// (compile_commands.json).
// https://clang.llvm.org/docs/JSONCompilationDatabase.html
package compdbutil

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/golang/glog"
	"github.com/muhammadmuzzammil1998/jsonc"

	"go.chromium.org/infra/build/ccdelta/o11y/clog"
	"go.chromium.org/infra/build/ccdelta/toolsupport/cmdutil"
	"go.chromium.org/infra/build/ccdelta/toolsupport/gccutil"
	"go.chromium.org/infra/build/ccdelta/toolsupport/msvcutil"
)

// Entry is an entry of compilation database.
type Entry struct {
	// Directory is the working directory of the compilation.
	Directory string `json:"directory"`

	// File is the main translation unit source.
	File string `json:"file"`

	// Command is the compile command line. Either Command or
	// Arguments is set.
	Command   string   `json:"command,omitempty"`
	Arguments []string `json:"arguments,omitempty"`

	Output string `json:"output,omitempty"`
}

// Load loads compilation database in fname.
// Comments are accepted.
func Load(ctx context.Context, fname string) ([]Entry, error) {
	b, err := os.ReadFile(fname)
	if err != nil {
		return nil, err
	}
	entries, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", fname, err)
	}
	if log.V(1) {
		clog.Infof(ctx, "compdb %s: %d entries", fname, len(entries))
	}
	return entries, nil
}

// Parse parses compilation database in b.
func Parse(b []byte) ([]Entry, error) {
	var entries []Entry
	err := json.Unmarshal(jsonc.ToJSON(b), &entries)
	if err != nil {
		return nil, err
	}
	for i, e := range entries {
		if e.File == "" {
			return nil, fmt.Errorf("entry %d: no file", i)
		}
		if e.Command == "" && len(e.Arguments) == 0 {
			return nil, fmt.Errorf("entry %d %s: no command nor arguments", i, e.File)
		}
	}
	return entries, nil
}

// Args returns the compile command line args.
func (e Entry) Args() ([]string, error) {
	if len(e.Arguments) > 0 {
		return e.Arguments, nil
	}
	args, err := cmdutil.Split(e.Command)
	if err != nil {
		return nil, fmt.Errorf("split command for %s: %w", e.File, err)
	}
	return args, nil
}

// Source returns the absolute path of the source.
func (e Entry) Source() string {
	if filepath.IsAbs(e.File) {
		return filepath.Clean(e.File)
	}
	return filepath.Join(e.Directory, e.File)
}

// Params returns scandeps params of the compile command.
// Paths in params are relative to Directory, as in the command line.
func (e Entry) Params(ctx context.Context) (gccutil.Params, error) {
	args, err := e.Args()
	if err != nil {
		return gccutil.Params{}, err
	}
	if len(args) > 0 && msvcutil.IsClangCl(args[0]) {
		return msvcutil.ScanDepsParams(ctx, args, nil), nil
	}
	return gccutil.ScanDepsParams(ctx, args, nil), nil
}
