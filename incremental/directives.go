// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package incremental

import (
	"context"
	"slices"
	"sort"

	"go.chromium.org/infra/build/ccdelta/reapi/digest"
)

// IncludeDirectives are include directives found in one file.
type IncludeDirectives struct {
	// Includes are operands of #include, #include_next or #import,
	// as written in the file. Parsers may mark the directive kind,
	// e.g.
	//
	//	"foo.h"
	//	<foo.h>
	//	FOO_H
	//	include_next <foo.h>
	Includes []string

	// Macros are object-like macro definitions that may be used
	// by macro includes. A macro may have several values, e.g.
	// when it is defined in #ifdef and #else.
	Macros map[string][]string
}

// Equal reports whether d and o are the same directives.
func (d IncludeDirectives) Equal(o IncludeDirectives) bool {
	if !slices.Equal(d.Includes, o.Includes) {
		return false
	}
	if len(d.Macros) != len(o.Macros) {
		return false
	}
	for k, v := range d.Macros {
		ov, ok := o.Macros[k]
		if !ok || !slices.Equal(v, ov) {
			return false
		}
	}
	return true
}

// IsEmpty reports whether d has neither includes nor macros.
func (d IncludeDirectives) IsEmpty() bool {
	return len(d.Includes) == 0 && len(d.Macros) == 0
}

// ResolvedInclude is an outcome of resolving one include directive.
// It is either a known file, or unknown when the include couldn't be
// statically determined, e.g. the include path depends on a macro
// whose value is not known.
type ResolvedInclude struct {
	// Include is the include directive as written.
	Include string

	// File is the resolved file. Empty when unknown.
	File string
}

// Known returns a ResolvedInclude for include resolved to fname.
func Known(include, fname string) ResolvedInclude {
	return ResolvedInclude{Include: include, File: fname}
}

// Unknown returns a ResolvedInclude for include that couldn't be resolved
// to a file statically.
func Unknown(include string) ResolvedInclude {
	return ResolvedInclude{Include: include}
}

// IsUnknown reports whether the include couldn't be resolved statically.
func (r ResolvedInclude) IsUnknown() bool {
	return r.File == ""
}

func (r ResolvedInclude) String() string {
	if r.IsUnknown() {
		return "unknown:" + r.Include
	}
	return r.Include + "->" + r.File
}

// Resolution is a result of resolving include directives of a file.
type Resolution struct {
	// Includes are resolved includes in directive order.
	// An include directive may resolve to several files, or to none
	// when no candidate exists.
	Includes []ResolvedInclude

	// CheckedLocations are all paths probed during resolution,
	// whether they existed or not.
	CheckedLocations []string
}

// Files returns sorted, de-duplicated known files of the resolution.
func (r Resolution) Files() []string {
	var files []string
	for _, inc := range r.Includes {
		if inc.IsUnknown() {
			continue
		}
		files = append(files, inc.File)
	}
	sort.Strings(files)
	return slices.Compact(files)
}

// Parser extracts include directives from a file.
// It must be a pure function of the file's content.
type Parser interface {
	ParseIncludes(ctx context.Context, fname string) (IncludeDirectives, error)
}

// Resolver resolves include directives of fname.
//
// included is the chain of include directives already visited in the
// current traversal, including fname's own directives as the last
// element. Resolvers may use it, e.g. to expand macros defined by
// ancestors. It must be deterministic given identical filesystem
// state and search configuration.
type Resolver interface {
	ResolveIncludes(ctx context.Context, fname string, directives IncludeDirectives, included []IncludeDirectives) (Resolution, error)
}

// Hasher computes content digests of files.
//
// Digests are a change detection proxy: a collision silently skips
// a real change.
type Hasher interface {
	// IsFile reports whether fname exists as a regular file.
	IsFile(ctx context.Context, fname string) bool

	// Hash returns the digest of fname's content.
	Hash(ctx context.Context, fname string) (digest.Digest, error)
}
