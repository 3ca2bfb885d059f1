// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package gccutil provides utilities of gcc.
package gccutil

import (
	"context"
	"path/filepath"
	"strings"

	log "github.com/golang/glog"

	"go.chromium.org/infra/build/ccdelta/o11y/clog"
	"go.chromium.org/infra/build/ccdelta/scandeps"
)

// Params are scandeps parameters extracted from a compile command line.
type Params struct {
	// Sources are source files in the command line.
	Sources []string

	// ForcedIncludes are files given by -include.
	ForcedIncludes []string

	Search scandeps.SearchConfig
}

// ScanDepsParams parses args and returns params for scandeps.
// It only parses major command line flags used in chromium.
// full set of command line flags for include dirs can be found in
// https://clang.llvm.org/docs/ClangCommandLineReference.html#include-path-management
func ScanDepsParams(ctx context.Context, args, env []string) Params {
	p := Params{
		Search: scandeps.SearchConfig{
			Defines: make(map[string]string),
		},
	}
	next := func(i int) (string, bool) {
		if i+1 >= len(args) {
			clog.Warningf(ctx, "missing value for %s", args[i])
			return "", false
		}
		return args[i+1], true
	}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if i == 0 && !strings.HasPrefix(arg, "-") {
			cmdname := filepath.Base(arg)
			switch {
			case strings.HasSuffix(cmdname, "clang"),
				strings.HasSuffix(cmdname, "clang++"),
				strings.HasSuffix(cmdname, "gcc"),
				strings.HasSuffix(cmdname, "g++"):
				// add toolchain top dir as sysroots too
				p.Search.Sysroots = append(p.Search.Sysroots, filepath.ToSlash(filepath.Dir(filepath.Dir(arg))))
			}
			continue
		}
		switch arg {
		case "-I", "--include-directory", "-isystem", "-idirafter", "-iquote", "-D", "-include", "-isysroot":
			v, ok := next(i)
			if !ok {
				continue
			}
			i++
			p.add(arg, v)
			continue
		}
		switch {
		case strings.HasPrefix(arg, "--include-directory="):
			p.add("-I", strings.TrimPrefix(arg, "--include-directory="))
		case strings.HasPrefix(arg, "--sysroot="):
			p.add("-isysroot", strings.TrimPrefix(arg, "--sysroot="))
		case strings.HasPrefix(arg, "-isystem"):
			p.add("-isystem", strings.TrimPrefix(arg, "-isystem"))
		case strings.HasPrefix(arg, "-idirafter"):
			p.add("-idirafter", strings.TrimPrefix(arg, "-idirafter"))
		case strings.HasPrefix(arg, "-iquote"):
			p.add("-iquote", strings.TrimPrefix(arg, "-iquote"))
		case strings.HasPrefix(arg, "-isysroot"):
			p.add("-isysroot", strings.TrimPrefix(arg, "-isysroot"))
		case strings.HasPrefix(arg, "-I"):
			p.add("-I", strings.TrimPrefix(arg, "-I"))
		case strings.HasPrefix(arg, "-D"):
			p.add("-D", strings.TrimPrefix(arg, "-D"))

		case !strings.HasPrefix(arg, "-"):
			switch filepath.Ext(arg) {
			case ".c", ".cc", ".cxx", ".cpp", ".m", ".mm", ".S":
				p.Sources = append(p.Sources, arg)
			}
		}
	}
	if log.V(1) {
		clog.Infof(ctx, "scandeps params %#v", p)
	}
	return p
}

func (p *Params) add(flag, v string) {
	switch flag {
	case "-I", "--include-directory", "-isystem", "-idirafter":
		p.Search.Dirs = append(p.Search.Dirs, v)
	case "-iquote":
		p.Search.QuoteDirs = append(p.Search.QuoteDirs, v)
	case "-isysroot":
		p.Search.Sysroots = append(p.Search.Sysroots, v)
	case "-include":
		p.ForcedIncludes = append(p.ForcedIncludes, v)
	case "-D":
		DefineMacro(p.Search.Defines, v)
	}
}

// DefineMacro records -D arg in defines if the value may be used
// in #include, i.e. <path.h> or "path.h".
func DefineMacro(defines map[string]string, arg string) {
	// arg: macro=value
	macro, value, ok := strings.Cut(arg, "=")
	if !ok {
		// just `-D MACRO`
		return
	}
	if value == "" {
		// `-D MACRO=`
		// no value
		return
	}
	switch value[0] {
	case '<', '"':
		defines[macro] = value
	}
}
