// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package digest

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestDigest(t *testing.T) {
	b := []byte{1, 2, 3}
	d := FromBytes(SHA256, b)

	wantStr := "039058c6f2c0cb492c533b0a4d14ef77cc0f78abccced5287d84a1a2011cfb81/3"
	if d.String() != wantStr {
		t.Errorf("FromBytes(SHA256, %v).String() = %s, want %s", b, d.String(), wantStr)
	}

	empty := FromBytes(XXHash, []byte{})
	if empty.SizeBytes != 0 {
		t.Errorf("FromBytes(XXHash, []byte{}).SizeBytes = %v, want 0", empty.SizeBytes)
	}
	if empty.IsZero() {
		t.Errorf("FromBytes(XXHash, []byte{}).IsZero() = true, want false")
	}
	if !(Digest{}).IsZero() {
		t.Errorf("Digest{}.IsZero() = false, want true")
	}
}

func TestFromReader(t *testing.T) {
	for _, alg := range []Algorithm{XXHash, SHA256} {
		b := []byte("#include \"foo.h\"\n")
		got, err := FromReader(alg, bytes.NewReader(b))
		if err != nil {
			t.Fatalf("FromReader(%s)=%v, %v; want nil err", alg, got, err)
		}
		if want := FromBytes(alg, b); got != want {
			t.Errorf("FromReader(%s)=%v; want %v", alg, got, want)
		}
	}
}

func TestFromLocalFile(t *testing.T) {
	dir := t.TempDir()
	fname := filepath.Join(dir, "foo.h")
	err := os.WriteFile(fname, []byte("int foo;\n"), 0644)
	if err != nil {
		t.Fatal(err)
	}
	got, err := FromLocalFile(XXHash, fname)
	if err != nil {
		t.Fatalf("FromLocalFile(%q)=%v, %v; want nil err", fname, got, err)
	}
	if want := FromBytes(XXHash, []byte("int foo;\n")); got != want {
		t.Errorf("FromLocalFile(%q)=%v; want %v", fname, got, want)
	}
	_, err = FromLocalFile(XXHash, filepath.Join(dir, "nonexist.h"))
	if !os.IsNotExist(err) {
		t.Errorf("FromLocalFile(nonexist)=_, %v; want not exist error", err)
	}
}

func TestParseAlgorithm(t *testing.T) {
	for _, tc := range []struct {
		name    string
		want    Algorithm
		wantErr bool
	}{
		{name: "", want: XXHash},
		{name: "xxhash", want: XXHash},
		{name: "sha256", want: SHA256},
		{name: "md5", wantErr: true},
	} {
		got, err := ParseAlgorithm(tc.name)
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Errorf("ParseAlgorithm(%q)=%q, %v; want %q, err=%t", tc.name, got, err, tc.want, tc.wantErr)
		}
	}
}
