// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package msvcutil provides utilities of msvc.
package msvcutil

import (
	"context"
	"path/filepath"
	"runtime"
	"strings"

	log "github.com/golang/glog"

	"go.chromium.org/infra/build/ccdelta/o11y/clog"
	"go.chromium.org/infra/build/ccdelta/toolsupport/gccutil"
)

// IsClangCl reports whether cmd is clang-cl or cl.exe.
func IsClangCl(cmd string) bool {
	cmd = strings.ReplaceAll(cmd, `\`, "/")
	base := filepath.Base(cmd)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return base == "clang-cl" || base == "cl"
}

// ScanDepsParams parses args and returns params for scandeps.
// It only parses major command line flags used in chromium.
// full set of command line flags for include dirs can be found in
// https://learn.microsoft.com/en-us/cpp/build/reference/compiler-options-listed-by-category?view=msvc-170
// https://clang.llvm.org/docs/ClangCommandLineReference.html#include-path-management
func ScanDepsParams(ctx context.Context, args, env []string) gccutil.Params {
	var p gccutil.Params
	p.Search.Defines = make(map[string]string)
	toSlash := func(s string) string {
		if runtime.GOOS != "windows" {
			s = strings.ReplaceAll(s, `\`, "/")
		}
		return filepath.ToSlash(s)
	}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if i == 0 && !strings.HasPrefix(arg, "-") {
			cmd := toSlash(arg)
			base := filepath.Base(cmd)
			if strings.TrimSuffix(base, filepath.Ext(base)) == "clang-cl" {
				// add toolchain top dir as sysroots too
				// cl.exe has no such semantics?
				p.Search.Sysroots = append(p.Search.Sysroots, filepath.Dir(filepath.Dir(cmd)))
			}
			continue
		}
		switch arg {
		case "-I", "/I", "-imsvc", "/imsvc", "-D", "/D", "/FI":
			if i+1 >= len(args) {
				clog.Warningf(ctx, "missing value for %s", arg)
				continue
			}
			i++
			add(&p, arg[1:], args[i], toSlash)
			continue
		}
		switch {
		case strings.HasPrefix(arg, "/winsysroot"):
			p.Search.Sysroots = append(p.Search.Sysroots, toSlash(strings.TrimPrefix(arg, "/winsysroot")))
		case strings.HasPrefix(arg, "-imsvc"), strings.HasPrefix(arg, "/imsvc"):
			add(&p, "imsvc", arg[len("-imsvc"):], toSlash)
		case strings.HasPrefix(arg, "/FI"):
			add(&p, "FI", strings.TrimPrefix(arg, "/FI"), toSlash)
		case strings.HasPrefix(arg, "-I"), strings.HasPrefix(arg, "/I"):
			add(&p, "I", arg[2:], toSlash)
		case strings.HasPrefix(arg, "-D"), strings.HasPrefix(arg, "/D"):
			add(&p, "D", arg[2:], toSlash)

		case !strings.HasPrefix(arg, "-") && !strings.HasPrefix(arg, "/"):
			switch filepath.Ext(arg) {
			case ".c", ".cc", ".cxx", ".cpp", ".S":
				p.Sources = append(p.Sources, toSlash(arg))
			}
		}
	}
	if log.V(1) {
		clog.Infof(ctx, "scandeps params %#v", p)
	}
	return p
}

func add(p *gccutil.Params, flag, v string, toSlash func(string) string) {
	switch flag {
	case "I", "imsvc":
		p.Search.Dirs = append(p.Search.Dirs, toSlash(v))
	case "FI":
		p.ForcedIncludes = append(p.ForcedIncludes, toSlash(v))
	case "D":
		gccutil.DefineMacro(p.Search.Defines, v)
	}
}
