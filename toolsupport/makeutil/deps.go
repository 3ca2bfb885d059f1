// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package makeutil provides utilities for make.
package makeutil

import (
	"bytes"
	"context"
	"io/fs"
	"strings"

	log "github.com/golang/glog"

	"go.chromium.org/infra/build/ccdelta/o11y/clog"
)

// ParseDepsFile parses *.d file in fname on fsys.
func ParseDepsFile(ctx context.Context, fsys fs.FS, fname string) ([]string, error) {
	if fname == "" {
		return nil, nil
	}
	b, err := fs.ReadFile(fsys, fname)
	if err != nil {
		return nil, err
	}
	deps := ParseDeps(b)
	if log.V(1) {
		clog.Infof(ctx, "deps %s => %q", fname, deps)
	}
	return deps, nil
}

// ParseDeps parses deps and returns inputs of the first rule.
//
//	<output>: <input> ...
//
// <input> is space separated.
// '\'+newline is space, and '\'+space is an escaped space in a name.
// Other rules (e.g. phony targets by -MP) are ignored.
func ParseDeps(b []byte) []string {
	i := bytes.IndexByte(b, ':')
	if i < 0 {
		return nil
	}
	var inputs []string
	var sb strings.Builder
	flush := func() {
		if sb.Len() > 0 {
			inputs = append(inputs, sb.String())
			sb.Reset()
		}
	}
	s := b[i+1:]
	for j := 0; j < len(s); j++ {
		c := s[j]
		switch c {
		case '\\':
			if j+1 >= len(s) {
				sb.WriteByte(c)
				continue
			}
			switch s[j+1] {
			case ' ':
				sb.WriteByte(' ')
				j++
			case '\n':
				flush()
				j++
			case '\r':
				if j+2 < len(s) && s[j+2] == '\n' {
					flush()
					j += 2
					continue
				}
				sb.WriteByte(c)
			default:
				sb.WriteByte(c)
			}
		case '\n':
			// end of the first rule.
			flush()
			return inputs
		case ' ', '\t', '\r':
			flush()
		default:
			sb.WriteByte(c)
		}
	}
	flush()
	return inputs
}
