// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scandeps

import (
	"bytes"
	"context"
	"strings"
	"time"

	log "github.com/golang/glog"

	"go.chromium.org/infra/build/ccdelta/o11y/clog"
)

// includeNextPrefix marks an #include_next operand in
// incremental.IncludeDirectives.Includes.
const includeNextPrefix = "include_next "

// CPPScan scans C preprocessor directives for #include/#define in buf.
// It returns include operands as written, and object-like macros whose
// value may be used in #include.
// Operands of #include_next are prefixed with "include_next ".
// Operands that are neither "path" nor <path> are kept as is, so
// the resolver reports them as unknown unless they name a macro.
func CPPScan(ctx context.Context, fname string, buf []byte) ([]string, map[string][]string, error) {
	started := time.Now()

	var includes []string
	defines := make(map[string][]string)
	for len(buf) > 0 {
		var line []byte
		line, buf, _ = bytes.Cut(buf, []byte("\n"))
		for bytes.HasSuffix(bytes.TrimRight(line, " \t\r"), []byte(`\`)) && len(buf) > 0 {
			var next []byte
			next, buf, _ = bytes.Cut(buf, []byte("\n"))
			line = bytes.TrimRight(line, " \t\r")
			line = append(append(line[:len(line)-1:len(line)-1], ' '), next...)
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 || line[0] != '#' {
			if log.V(3) {
				clog.Infof(ctx, "skip %q", line)
			}
			continue
		}
		directive, arg := splitDirective(line[1:])
		switch directive {
		case "include", "include_next", "import":
			arg = stripComments(arg)
			if len(arg) == 0 {
				if log.V(2) {
					clog.Infof(ctx, "no path for #%s in %s", directive, fname)
				}
				continue
			}
			n := len(includes)
			includes = addInclude(ctx, includes, arg)
			if directive == "include_next" && len(includes) > n {
				includes[n] = includeNextPrefix + includes[n]
			}
		case "define":
			arg = stripComments(arg)
			if len(arg) == 0 {
				continue
			}
			addDefine(ctx, defines, fname, arg)
		default:
			if log.V(3) {
				clog.Infof(ctx, "skip directive %q", line)
			}
		}
	}
	dur := time.Since(started)
	if dur > time.Second {
		clog.Infof(ctx, "slow cppScan %s %s", fname, dur)
	}
	return includes, defines, nil
}

// stripComments removes /* */ and // comments outside of "path" or <path>.
// A comment continued to the next line is removed to the end of line.
func stripComments(line []byte) []byte {
	if !bytes.Contains(line, []byte("/")) {
		return line
	}
	var out []byte
	var delim byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case delim != 0:
			if c == delim {
				delim = 0
			}
		case c == '"':
			delim = '"'
		case c == '<':
			delim = '>'
		case bytes.HasPrefix(line[i:], []byte("//")):
			return bytes.TrimSpace(out)
		case bytes.HasPrefix(line[i:], []byte("/*")):
			j := bytes.Index(line[i+2:], []byte("*/"))
			if j < 0 {
				return bytes.TrimSpace(out)
			}
			out = append(out, ' ')
			i += 2 + j + 1
			continue
		}
		out = append(out, c)
	}
	return bytes.TrimSpace(out)
}

// splitDirective splits "include <foo.h>" into "include" and "<foo.h>".
// The directive name must be followed by a space, a tab, or a path
// delimiter.
func splitDirective(line []byte) (string, []byte) {
	line = bytes.TrimLeft(line, " \t")
	i := 0
	for i < len(line) && (line[i] == '_' || ('a' <= line[i] && line[i] <= 'z')) {
		i++
	}
	name := string(line[:i])
	rest := line[i:]
	if len(rest) > 0 {
		switch rest[0] {
		case ' ', '\t', '"', '<':
		default:
			// e.g. #includefoo, or #include\
			return "", nil
		}
	}
	return name, bytes.TrimSpace(rest)
}

func expandMacros(ctx context.Context, paths []string, incname string, macros func(string) []string, seen map[string]bool) ([]string, bool) {
	if incname == "" {
		return paths, false
	}
	if !isMacro(incname) {
		return append(paths, incname), true
	}
	if seen[incname] {
		// recursive macro definition.
		return paths, false
	}
	values := macros(incname)
	if len(values) == 0 {
		return paths, false
	}
	seen[incname] = true
	defer delete(seen, incname)
	ok := true
	for _, v := range values {
		var vok bool
		paths, vok = expandMacros(ctx, paths, v, macros, seen)
		ok = ok && vok
	}
	if log.V(1) {
		clog.Infof(ctx, "expand %q -> %q ok=%t", incname, paths, ok)
	}
	return paths, ok
}

func addInclude(ctx context.Context, paths []string, incpath []byte) []string {
	if log.V(1) {
		clog.Infof(ctx, "addInclude %q", incpath)
	}
	delim := " \t"
	switch incpath[0] {
	case '"':
		delim = `"`
	case '<':
		delim = ">"
	}
	i := bytes.IndexAny(incpath[1:], delim)
	switch {
	case i < 0 && (delim == ">" || delim == `"`):
		if log.V(1) {
			clog.Infof(ctx, "unclosed path? %q", incpath)
		}
		return paths
	case i < 0:
		// use rest of line as token.
	case delim == `"` || delim == ">":
		incpath = incpath[:i+2] // include delim both side.
	default:
		incpath = incpath[:i+1]
	}
	return append(paths, strings.Clone(string(incpath)))
}

func addDefine(ctx context.Context, defines map[string][]string, fname string, line []byte) {
	// line
	//  MACRO "path.h"
	//  MACRO <path.h>
	//  MACRO OTHER_MACRO
	i := bytes.IndexAny(line, " \t")
	if i < 0 {
		if log.V(2) {
			clog.Infof(ctx, "%s: just define macro %q?", fname, line)
		}
		return
	}
	macro := strings.Clone(string(line[:i]))
	if strings.Contains(macro, "(") {
		if log.V(1) {
			clog.Infof(ctx, "%s: ignore func macro: %q", fname, macro)
		}
		return
	}
	value := bytes.TrimSpace(line[i+1:])
	if len(value) == 0 {
		return
	}
	switch value[0] {
	case '<', '"':
		delim := value[0]
		if delim == '<' {
			delim = '>'
		}
		i = bytes.IndexByte(value[1:], delim)
		if i < 0 {
			if log.V(1) {
				clog.Infof(ctx, "%s: unclosed path for macro %q: %q", fname, macro, value)
			}
			return
		}
		defines[macro] = appendUnique(defines[macro], strings.Clone(string(value[:i+2])))
	default:
		// support only one token starting with an identifier.
		// e.g.
		//  #define FT_DRIVER_H <freetype/ftdriver.h>
		//  #define FT_AUTHHINTER_H FT_DRIVER_H
		//  #define CONFIG_H STRINGIFY(config.h)
		// values such as numbers can't expand to an include path.
		if i = bytes.IndexAny(value, " \t"); i >= 0 {
			value = value[:i]
		}
		if !isIdentStart(value[0]) {
			if log.V(1) {
				clog.Infof(ctx, "%s: ignore macro %s=%s", fname, macro, value)
			}
			return
		}
		defines[macro] = appendUnique(defines[macro], strings.Clone(string(value)))
	}
}

func appendUnique(values []string, v string) []string {
	for _, x := range values {
		if x == v {
			return values
		}
	}
	return append(values, v)
}

func isIdentStart(c byte) bool {
	return c == '_' || ('A' <= c && c <= 'Z') || ('a' <= c && c <= 'z')
}

func isMacro(s string) bool {
	if s == "" {
		return false
	}
	switch s[0] {
	case '<', '"':
		return false
	}
	return true
}
