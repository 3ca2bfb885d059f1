// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package compdbutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/infra/build/ccdelta/scandeps"
	"go.chromium.org/infra/build/ccdelta/toolsupport/gccutil"
)

const testCompdb = `[
  // generated by ninja -t compdb
  {
    "directory": "/work/out/Default",
    "command": "../../third_party/llvm-build/Release+Asserts/bin/clang++ -DCONFIG_H=\\\"config.h\\\" -I../.. -Igen -c ../../base/base64.cc -o obj/base/base64.o",
    "file": "../../base/base64.cc",
    "output": "obj/base/base64.o"
  },
  {
    "directory": "/work/out/Default",
    "arguments": ["cl.exe", "/c", "../../base/win.cc", "/I../../win"],
    "file": "../../base/win.cc"
  }
]`

func TestLoad(t *testing.T) {
	ctx := context.Background()
	fname := filepath.Join(t.TempDir(), "compile_commands.json")
	err := os.WriteFile(fname, []byte(testCompdb), 0644)
	if err != nil {
		t.Fatal(err)
	}
	entries, err := Load(ctx, fname)
	if err != nil {
		t.Fatalf("Load(ctx, %q)=%v; want nil err", fname, err)
	}
	if len(entries) != 2 {
		t.Fatalf("Load(ctx, %q)=%d entries; want 2", fname, len(entries))
	}

	if got, want := entries[0].Source(), "/work/base/base64.cc"; got != want {
		t.Errorf("entries[0].Source()=%q; want %q", got, want)
	}
	got, err := entries[0].Params(ctx)
	if err != nil {
		t.Fatalf("entries[0].Params=%v; want nil err", err)
	}
	want := gccutil.Params{
		Sources: []string{"../../base/base64.cc"},
		Search: scandeps.SearchConfig{
			Dirs:     []string{"../..", "gen"},
			Sysroots: []string{"../../third_party/llvm-build/Release+Asserts"},
			Defines: map[string]string{
				"CONFIG_H": `"config.h"`,
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("entries[0].Params diff -want +got:\n%s", diff)
	}

	got, err = entries[1].Params(ctx)
	if err != nil {
		t.Fatalf("entries[1].Params=%v; want nil err", err)
	}
	want = gccutil.Params{
		Sources: []string{"../../base/win.cc"},
		Search: scandeps.SearchConfig{
			Dirs:    []string{"../../win"},
			Defines: map[string]string{},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("entries[1].Params diff -want +got:\n%s", diff)
	}
}

func TestParseError(t *testing.T) {
	for name, data := range map[string]string{
		"not-json":   `not json`,
		"no-file":    `[{"directory": "/work", "command": "cc -c a.c"}]`,
		"no-command": `[{"directory": "/work", "file": "a.c"}]`,
	} {
		t.Run(name, func(t *testing.T) {
			got, err := Parse([]byte(data))
			if err == nil {
				t.Errorf("Parse(%q)=%v, nil; want err", data, got)
			}
		})
	}
}

func TestArgsSplitError(t *testing.T) {
	e := Entry{Directory: "/work", File: "a.c", Command: "cc -c a.c 2>/dev/null"}
	_, err := e.Args()
	if err == nil {
		t.Errorf("Args()=_, nil; want err")
	}
}
