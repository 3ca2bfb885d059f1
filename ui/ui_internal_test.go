// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package ui

import (
	"bytes"
	"testing"
)

func TestElideMiddle(t *testing.T) {
	for _, tc := range []struct {
		msg   string
		width int
		want  string
	}{
		{
			msg:   "changed include/foo.h",
			width: 80,
			want:  "changed include/foo.h",
		},
		{
			msg:   "changed third_party/boringssl/src/include/openssl/base.h third_party/boringssl/src/include/openssl/ssl.h",
			width: 40,
			want:  "changed third_part...lude/openssl/ssl.h",
		},
		{
			msg:   "\033[33mmodified\033[0m base/a.cc",
			width: 20,
			want:  "\033[33mmodified\033[0m base/a.cc",
		},
		{
			msg:   "\033[33mmodified\033[0m base/files/file_path.cc",
			width: 20,
			want:  "modified..._path.cc",
		},
		{
			msg:   "watching",
			width: 4,
			want:  "watc",
		},
	} {
		got := elideMiddle(tc.msg, tc.width)
		if got != tc.want {
			t.Errorf("elideMiddle(%q, %d)=%q; want %q", tc.msg, tc.width, got, tc.want)
		}
	}
}

func TestWriteLines(t *testing.T) {
	for _, tc := range []struct {
		name  string
		msgs  []string
		width int
		want  string
	}{
		{
			name:  "no-limit",
			msgs:  []string{"watching 3 files in 2 dirs", "changed a.h\n"},
			width: 0,
			want:  "watching 3 files in 2 dirs\nchanged a.h\n",
		},
		{
			name:  "elide-keeps-newline",
			msgs:  []string{"12:00:00 changed include/foo.h include/bar.h\n"},
			width: 21,
			want:  "12:00:00...de/bar.h\n",
		},
		{
			name:  "multi-line-message",
			msgs:  []string{"first line of a long message\nsecond"},
			width: 10,
			want:  "first line of a long message\nsecond",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			writeLines(&buf, tc.msgs, tc.width)
			if got := buf.String(); got != tc.want {
				t.Errorf("writeLines(%q, %d)=%q; want %q", tc.msgs, tc.width, got, tc.want)
			}
		})
	}
}
