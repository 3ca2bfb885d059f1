// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package statefile

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"
	"google.golang.org/protobuf/encoding/protowire"

	"go.chromium.org/infra/build/ccdelta/incremental"
	"go.chromium.org/infra/build/ccdelta/reapi/digest"
)

func testState() *incremental.State {
	return incremental.NewState(
		[]string{"src/main.c", "src/other.c"},
		map[string]*incremental.FileState{
			"src/main.c": incremental.NewFileState(
				digest.FromBytes(digest.XXHash, []byte("main")),
				incremental.IncludeDirectives{
					Includes: []string{`"a.h"`, "<config.h>"},
				},
				[]string{"src/a.h", "include/config.h"}),
			"src/other.c": incremental.NewFileState(
				digest.FromBytes(digest.SHA256, []byte("other")),
				incremental.IncludeDirectives{},
				nil),
			"include/config.h": incremental.NewFileState(
				digest.FromBytes(digest.XXHash, []byte("config")),
				incremental.IncludeDirectives{
					Includes: []string{"USER_CONFIG_H"},
					Macros: map[string][]string{
						"USER_CONFIG_H": {`"user_release.h"`, `"user_debug.h"`},
						"OTHER_H":       {"USER_CONFIG_H"},
					},
				},
				[]string{"include/user_release.h", "include/user_debug.h"}),
		})
}

func diffState(t *testing.T, want, got *incremental.State) {
	t.Helper()
	if diff := cmp.Diff(want.Sources(), got.Sources()); diff != "" {
		t.Errorf("sources diff -want +got:\n%s", diff)
	}
	if diff := cmp.Diff(want.Files(), got.Files()); diff != "" {
		t.Errorf("files diff -want +got:\n%s", diff)
	}
	for _, f := range want.Files() {
		if diff := cmp.Diff(want.FileState(f), got.FileState(f)); diff != "" {
			t.Errorf("file state %s diff -want +got:\n%s", f, diff)
		}
	}
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	fname := filepath.Join(t.TempDir(), "out", ".ccdelta_state")
	state := testState()

	err := Save(ctx, fname, state)
	if err != nil {
		t.Fatalf("Save(ctx, %q, state)=%v; want nil err", fname, err)
	}
	got, err := Load(ctx, fname)
	if err != nil {
		t.Fatalf("Load(ctx, %q)=%v; want nil err", fname, err)
	}
	diffState(t, state, got)
	if _, err := os.Stat(fname + ".0"); err == nil {
		t.Errorf("%s.0 exists after first save", fname)
	}

	err = Save(ctx, fname, incremental.NewState([]string{"src/main.c"}, nil))
	if err != nil {
		t.Fatalf("Save(ctx, %q, state)=%v; want nil err", fname, err)
	}
	old, err := Load(ctx, fname+".0")
	if err != nil {
		t.Fatalf("Load(ctx, %q.0)=%v; want nil err", fname, err)
	}
	diffState(t, state, old)
	got, err = Load(ctx, fname)
	if err != nil {
		t.Fatalf("Load(ctx, %q)=%v; want nil err", fname, err)
	}
	if diff := cmp.Diff([]string{"src/main.c"}, got.Sources()); diff != "" {
		t.Errorf("sources diff -want +got:\n%s", diff)
	}
	if got.Len() != 0 {
		t.Errorf("Len=%d; want 0", got.Len())
	}
}

func TestLoadNotExist(t *testing.T) {
	ctx := context.Background()
	got, err := Load(ctx, filepath.Join(t.TempDir(), "no-such-state"))
	if got != nil || err != nil {
		t.Errorf("Load(ctx, no-such-state)=%v, %v; want nil, nil", got, err)
	}
}

func TestLoadCorrupt(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	var truncated bytes.Buffer
	w := gzip.NewWriter(&truncated)
	b := Marshal(testState())
	_, err := w.Write(b[:len(b)-3])
	if err != nil {
		t.Fatal(err)
	}
	err = w.Close()
	if err != nil {
		t.Fatal(err)
	}

	for name, data := range map[string][]byte{
		"not-gzip":  []byte("not gzip"),
		"truncated": truncated.Bytes(),
	} {
		t.Run(name, func(t *testing.T) {
			fname := filepath.Join(dir, name)
			err := os.WriteFile(fname, data, 0644)
			if err != nil {
				t.Fatal(err)
			}
			got, err := Load(ctx, fname)
			if err == nil {
				t.Errorf("Load(ctx, %q)=%v, nil; want err", fname, got)
			}
		})
	}
}

func TestMarshalDeterministic(t *testing.T) {
	want := Marshal(testState())
	for range 5 {
		if got := Marshal(testState()); !bytes.Equal(got, want) {
			t.Fatalf("Marshal is not deterministic")
		}
	}
}

func TestUnmarshalUnknownField(t *testing.T) {
	b := Marshal(testState())
	b = protowire.AppendTag(b, 100, protowire.VarintType)
	b = protowire.AppendVarint(b, 42)
	b = protowire.AppendTag(b, 101, protowire.BytesType)
	b = protowire.AppendString(b, "future")
	got, err := Unmarshal(b)
	if err != nil {
		t.Fatalf("Unmarshal=%v; want nil err", err)
	}
	diffState(t, testState(), got)
}

func TestUnmarshalError(t *testing.T) {
	var wrongType []byte
	wrongType = protowire.AppendTag(wrongType, stateSources, protowire.VarintType)
	wrongType = protowire.AppendVarint(wrongType, 1)

	var noName []byte
	noName = protowire.AppendTag(noName, stateFiles, protowire.BytesType)
	noName = protowire.AppendBytes(noName, nil)

	for name, b := range map[string][]byte{
		"wrong-type": wrongType,
		"no-name":    noName,
		"bad-tag":    {0xff},
	} {
		t.Run(name, func(t *testing.T) {
			got, err := Unmarshal(b)
			if err == nil {
				t.Errorf("Unmarshal(%q)=%v, nil; want err", b, got)
			}
		})
	}
}
