// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scandeps

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type hmapBucket struct {
	key, prefix, suffix string
}

// buildHeaderMap builds *.hmap content in the same layout as
// chromium's build/config/ios/write_framework_hmap.py.
func buildHeaderMap(buckets []hmapBucket) []byte {
	strs := []byte{0}
	offset := func(s string) uint32 {
		if s == "" {
			return 0
		}
		off := uint32(len(strs))
		strs = append(strs, s...)
		strs = append(strs, 0)
		return off
	}
	var table bytes.Buffer
	maxLen := 0
	for _, b := range buckets {
		binary.Write(&table, binary.LittleEndian, [3]uint32{offset(b.key), offset(b.prefix), offset(b.suffix)})
		if n := len(b.prefix) + len(b.suffix); n > maxLen {
			maxLen = n
		}
	}
	var buf bytes.Buffer
	buf.WriteString("pamh")
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(0))
	binary.Write(&buf, binary.LittleEndian, uint32(hmapHeaderSize+table.Len()))
	binary.Write(&buf, binary.LittleEndian, uint32(len(buckets)))
	binary.Write(&buf, binary.LittleEndian, uint32(len(buckets)))
	binary.Write(&buf, binary.LittleEndian, uint32(maxLen))
	buf.Write(table.Bytes())
	buf.Write(strs)
	return buf.Bytes()
}

func TestParseHeaderMap(t *testing.T) {
	data := buildHeaderMap([]hmapBucket{
		{key: "Foo/Foo.h", prefix: "/tmp/ios/fooFramework/", suffix: "Foo.h"},
		{},
		{key: "Foo/Bar.h", prefix: "/tmp/ios/fooFramework/", suffix: "Bar.h"},
		{key: "Bar.h", prefix: "/tmp/ios/fooFramework/", suffix: "Bar.h"},
	})

	got, err := ParseHeaderMap(data)
	if err != nil {
		t.Errorf("ParseHeaderMap(data)=%v, %v; want nil err", got, err)
	}
	want := map[string]string{
		"foo/foo.h": "/tmp/ios/fooFramework/Foo.h",
		"foo/bar.h": "/tmp/ios/fooFramework/Bar.h",
		"bar.h":     "/tmp/ios/fooFramework/Bar.h",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseHeaderMap -want +got:\n%s", diff)
	}
}

func TestParseHeaderMapError(t *testing.T) {
	valid := buildHeaderMap([]hmapBucket{{key: "a.h", prefix: "x/", suffix: "a.h"}})
	badVersion := bytes.Clone(valid)
	badVersion[4] = 2
	badOffset := bytes.Clone(valid)
	binary.LittleEndian.PutUint32(badOffset[8:], 1<<20)
	for _, tc := range []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "magic", data: []byte("hmap0000")},
		{name: "short-header", data: valid[:10]},
		{name: "version", data: badVersion},
		{name: "string-offset", data: badOffset},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseHeaderMap(tc.data)
			if err == nil {
				t.Errorf("ParseHeaderMap(%q)=%v, nil; want err", tc.data, got)
			}
		})
	}
}
