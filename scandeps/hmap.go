// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scandeps

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// Clang header map (*.hmap) is a hash table from include names to paths.
//
//	header (24 bytes):
//	  magic "pamh", version uint16 (1), reserved uint16,
//	  string_offset uint32, string_count uint32,
//	  hash_capacity uint32, max_value_length uint32
//	buckets (hash_capacity * 12 bytes):
//	  key, prefix, suffix: uint32 offsets in string table. 0 is empty.
//	string table at string_offset: NUL terminated strings.
//
// https://source.chromium.org/chromium/chromium/src/+/main:build/config/ios/write_framework_hmap.py

var hmapMagic = []byte("pamh")

const hmapHeaderSize = 24

type hmapReader struct {
	buf  []byte
	strs []byte
	err  error
}

func (r *hmapReader) uint16(field string) uint16 {
	if r.err != nil {
		return 0
	}
	if len(r.buf) < 2 {
		r.err = fmt.Errorf("not enough for uint16 %s", field)
		return 0
	}
	v := binary.LittleEndian.Uint16(r.buf)
	r.buf = r.buf[2:]
	return v
}

func (r *hmapReader) uint32(field string) uint32 {
	if r.err != nil {
		return 0
	}
	if len(r.buf) < 4 {
		r.err = fmt.Errorf("not enough for uint32 %s", field)
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf)
	r.buf = r.buf[4:]
	return v
}

func (r *hmapReader) str(field string) string {
	off := r.uint32(field)
	if r.err != nil || off == 0 {
		return ""
	}
	if int(off) >= len(r.strs) {
		r.err = fmt.Errorf("out of index %s=%d", field, off)
		return ""
	}
	s, _, ok := bytes.Cut(r.strs[off:], []byte{0})
	if !ok {
		r.err = fmt.Errorf("unterminated %s=%d", field, off)
		return ""
	}
	return string(s)
}

// ParseHeaderMap parses *.hmap file.
// Keys are lower cased, since clang looks up header maps case insensitively.
func ParseHeaderMap(buf []byte) (map[string]string, error) {
	if !bytes.HasPrefix(buf, hmapMagic) {
		return nil, fmt.Errorf("wrong hmap magic")
	}
	r := &hmapReader{buf: buf[len(hmapMagic):]}
	if v := r.uint16("version"); r.err == nil && v != 1 {
		return nil, fmt.Errorf("unknown hmap version %d", v)
	}
	r.uint16("reserved")
	stringOffset := r.uint32("string_offset")
	r.uint32("string_count")
	capacity := r.uint32("hash_capacity")
	r.uint32("max_value_length")
	if r.err != nil {
		return nil, fmt.Errorf("failed to parse hmap header: %w", r.err)
	}
	if stringOffset < hmapHeaderSize || len(buf) < int(stringOffset) {
		return nil, fmt.Errorf("invalid string_offset=%d hmap size=%d", stringOffset, len(buf))
	}
	r.strs = buf[stringOffset:]
	m := make(map[string]string)
	for i := 0; i < int(capacity); i++ {
		key := r.str("key")
		prefix := r.str("prefix")
		suffix := r.str("suffix")
		if r.err != nil {
			return nil, fmt.Errorf("failed to get hmap bucket:%d: %w", i, r.err)
		}
		if key == "" {
			continue
		}
		m[strings.ToLower(key)] = prefix + suffix
	}
	return m, nil
}
