// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scandeps

import (
	"context"
	"sync"

	log "github.com/golang/glog"

	"go.chromium.org/infra/build/ccdelta/hashfs"
	"go.chromium.org/infra/build/ccdelta/incremental"
	"go.chromium.org/infra/build/ccdelta/o11y/clog"
)

// Parser parses include directives of files in HashFS.
// Results are cached per file, with the same assumption as HashFS
// that files are not modified while in use.
type Parser struct {
	hfs *hashfs.HashFS

	files sync.Map // filename -> *parseResult
}

type parseResult struct {
	mu         sync.Mutex
	done       bool
	directives incremental.IncludeDirectives
	err        error
}

// NewParser creates a parser reading files via hfs.
func NewParser(hfs *hashfs.HashFS) *Parser {
	return &Parser{hfs: hfs}
}

// ParseIncludes parses include directives in fname.
func (p *Parser) ParseIncludes(ctx context.Context, fname string) (incremental.IncludeDirectives, error) {
	v, _ := p.files.LoadOrStore(fname, &parseResult{})
	r := v.(*parseResult)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return r.directives, r.err
	}
	r.directives, r.err = p.parse(ctx, fname)
	r.done = true
	return r.directives, r.err
}

func (p *Parser) parse(ctx context.Context, fname string) (incremental.IncludeDirectives, error) {
	buf, err := p.hfs.ReadFile(ctx, fname)
	if err != nil {
		return incremental.IncludeDirectives{}, err
	}
	includes, defines, err := CPPScan(ctx, fname, buf)
	if err != nil {
		return incremental.IncludeDirectives{}, err
	}
	if len(defines) == 0 {
		defines = nil
	}
	if log.V(1) {
		clog.Infof(ctx, "parse %s: includes=%q defines=%d", fname, includes, len(defines))
	}
	return incremental.IncludeDirectives{
		Includes: includes,
		Macros:   defines,
	}, nil
}
