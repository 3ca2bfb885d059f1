// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package incremental

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/infra/build/ccdelta/reapi/digest"
)

func TestIncludeDirectivesEqual(t *testing.T) {
	base := IncludeDirectives{
		Includes: []string{`"a.h"`, "FOO_H"},
		Macros:   map[string][]string{"FOO_H": {"<foo.h>"}},
	}
	for _, tc := range []struct {
		name string
		o    IncludeDirectives
		want bool
	}{
		{
			name: "same",
			o: IncludeDirectives{
				Includes: []string{`"a.h"`, "FOO_H"},
				Macros:   map[string][]string{"FOO_H": {"<foo.h>"}},
			},
			want: true,
		},
		{
			name: "include-order",
			o: IncludeDirectives{
				Includes: []string{"FOO_H", `"a.h"`},
				Macros:   map[string][]string{"FOO_H": {"<foo.h>"}},
			},
		},
		{
			name: "macro-value",
			o: IncludeDirectives{
				Includes: []string{`"a.h"`, "FOO_H"},
				Macros:   map[string][]string{"FOO_H": {"<bar.h>"}},
			},
		},
		{
			name: "macro-name",
			o: IncludeDirectives{
				Includes: []string{`"a.h"`, "FOO_H"},
				Macros:   map[string][]string{"BAR_H": {"<foo.h>"}},
			},
		},
		{
			name: "no-macro",
			o: IncludeDirectives{
				Includes: []string{`"a.h"`, "FOO_H"},
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := base.Equal(tc.o); got != tc.want {
				t.Errorf("Equal=%t; want %t", got, tc.want)
			}
		})
	}
	if !(IncludeDirectives{}).IsEmpty() {
		t.Errorf("IncludeDirectives{}.IsEmpty()=false; want true")
	}
	if base.IsEmpty() {
		t.Errorf("base.IsEmpty()=true; want false")
	}
}

func TestResolutionFiles(t *testing.T) {
	res := Resolution{
		Includes: []ResolvedInclude{
			Known(`"b.h"`, "b.h"),
			Unknown("FOO_H"),
			Known(`"a.h"`, "a.h"),
			Known("<b.h>", "b.h"),
		},
	}
	if diff := cmp.Diff([]string{"a.h", "b.h"}, res.Files()); diff != "" {
		t.Errorf("Files diff -want +got:\n%s", diff)
	}
	if got := (Resolution{}).Files(); len(got) != 0 {
		t.Errorf("empty Files=%q; want empty", got)
	}
}

func TestFileState(t *testing.T) {
	d := digest.FromBytes(digest.XXHash, []byte("a"))
	fs := NewFileState(d, IncludeDirectives{}, []string{"b.h", "a.h", "b.h"})
	if diff := cmp.Diff([]string{"a.h", "b.h"}, fs.ResolvedFiles); diff != "" {
		t.Errorf("ResolvedFiles diff -want +got:\n%s", diff)
	}
	if !fs.SameDigest(d) {
		t.Errorf("SameDigest(%v)=false; want true", d)
	}
	if fs.SameDigest(digest.FromBytes(digest.XXHash, []byte("b"))) {
		t.Errorf("SameDigest(other)=true; want false")
	}
	if !fs.SameResolved(NewFileState(digest.Digest{}, IncludeDirectives{}, []string{"a.h", "b.h"})) {
		t.Errorf("SameResolved(same files)=false; want true")
	}
	if fs.SameResolved(NewFileState(d, IncludeDirectives{}, []string{"a.h"})) {
		t.Errorf("SameResolved(other files)=true; want false")
	}

	var nilState *FileState
	if nilState.SameDigest(d) || nilState.SameResolved(fs) || fs.SameResolved(nil) {
		t.Errorf("nil FileState matched")
	}
}

func TestStateNil(t *testing.T) {
	var s *State
	if s.Sources() != nil || s.HasSource("a.c") || s.FileState("a.c") != nil || s.Files() != nil || s.Len() != 0 {
		t.Errorf("nil State is not empty")
	}
}

func TestBuildableState(t *testing.T) {
	b := NewBuildableState()
	var wg sync.WaitGroup
	for _, src := range []string{"a.c", "b.c", "c.c"} {
		b.AddSource(src)
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.SetFileState(src, NewFileState(digest.Digest{}, IncludeDirectives{}, []string{"common.h"}))
			b.SetFileState("common.h", NewFileState(digest.Digest{}, IncludeDirectives{}, nil))
		}()
	}
	b.AddSource("a.c")
	wg.Wait()

	s := b.Snapshot()
	b.AddSource("d.c")
	b.SetFileState("d.c", NewFileState(digest.Digest{}, IncludeDirectives{}, nil))

	if diff := cmp.Diff([]string{"a.c", "b.c", "c.c"}, s.Sources()); diff != "" {
		t.Errorf("Sources diff -want +got:\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a.c", "b.c", "c.c", "common.h"}, s.Files()); diff != "" {
		t.Errorf("Files diff -want +got:\n%s", diff)
	}
	if s.HasSource("d.c") || s.FileState("d.c") != nil {
		t.Errorf("snapshot has d.c added after Snapshot")
	}
	if !b.HasSource("d.c") {
		t.Errorf("HasSource(d.c)=false; want true")
	}
}

func TestNewStateDedupSources(t *testing.T) {
	s := NewState([]string{"a.c", "b.c", "a.c"}, nil)
	if diff := cmp.Diff([]string{"a.c", "b.c"}, s.Sources()); diff != "" {
		t.Errorf("Sources diff -want +got:\n%s", diff)
	}
	if s.Len() != 0 {
		t.Errorf("Len=%d; want 0", s.Len())
	}
}

func TestEventString(t *testing.T) {
	for _, tc := range []struct {
		e    Event
		want string
	}{
		{
			e:    Event{Kind: EventMacroInclude, File: "config.h", Include: "USER_CONFIG_H"},
			want: "cannot determine changed state of included USER_CONFIG_H in config.h. assuming changed",
		},
		{
			e:    Event{Kind: EventMissingFile, File: "a.h"},
			want: "a.h doesn't exist. assuming changed",
		},
	} {
		if got := tc.e.String(); got != tc.want {
			t.Errorf("%v.String()=%q; want %q", tc.e.Kind, got, tc.want)
		}
	}
}
