// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package statefile persists incremental.State in a file.
//
// The file is gzipped protobuf wire format of the following messages.
//
//	message State {
//	  repeated string sources = 1;
//	  repeated File files = 2;
//	}
//
//	message File {
//	  string name = 1;
//	  Digest digest = 2;
//	  repeated string includes = 3;
//	  repeated Macro macros = 4;
//	  repeated string resolved_files = 5;
//	}
//
//	message Digest {
//	  string hash = 1;
//	  int64 size_bytes = 2;
//	}
//
//	message Macro {
//	  string name = 1;
//	  repeated string values = 2;
//	}
package statefile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	log "github.com/golang/glog"
	"github.com/klauspost/compress/gzip"
	"google.golang.org/protobuf/encoding/protowire"

	"go.chromium.org/infra/build/ccdelta/incremental"
	"go.chromium.org/infra/build/ccdelta/o11y/clog"
	"go.chromium.org/infra/build/ccdelta/reapi/digest"
)

const (
	stateSources protowire.Number = 1
	stateFiles   protowire.Number = 2

	fileName     protowire.Number = 1
	fileDigest   protowire.Number = 2
	fileIncludes protowire.Number = 3
	fileMacros   protowire.Number = 4
	fileResolved protowire.Number = 5

	digestHash protowire.Number = 1
	digestSize protowire.Number = 2

	macroName   protowire.Number = 1
	macroValues protowire.Number = 2
)

func loadFile(ctx context.Context, fname string) ([]byte, error) {
	b, err := os.ReadFile(fname)
	if err != nil {
		return nil, err
	}
	r, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	b, err = io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	err = r.Close()
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Load loads a state from fname.
// It returns nil state without error if fname doesn't exist, i.e.
// the first build.
func Load(ctx context.Context, fname string) (*incremental.State, error) {
	b, err := loadFile(ctx, fname)
	if errors.Is(err, fs.ErrNotExist) {
		clog.Infof(ctx, "no state file %s", fname)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load state %s: %w", fname, err)
	}
	state, err := Unmarshal(b)
	if err != nil {
		return nil, fmt.Errorf("failed to load state %s: %w", fname, err)
	}
	if log.V(1) {
		clog.Infof(ctx, "loaded state %s: sources=%d files=%d", fname, len(state.Sources()), state.Len())
	}
	return state, nil
}

func saveFile(ctx context.Context, fname string, data []byte) error {
	err := os.MkdirAll(filepath.Dir(fname), 0755)
	if err != nil {
		return err
	}
	// save old state in *.0
	ofname := fname + ".0"
	if err := os.Remove(ofname); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.Rename(fname, ofname); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	f, err := os.Create(fname)
	if err != nil {
		return err
	}
	w, err := gzip.NewWriterLevel(f, gzip.BestCompression)
	if err != nil {
		f.Close()
		return err
	}
	if _, err := w.Write(data); err != nil {
		f.Close()
		return err
	}
	err = w.Close()
	if err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Save persists state in fname. The previous file is kept as fname.0.
func Save(ctx context.Context, fname string, state *incremental.State) error {
	err := saveFile(ctx, fname, Marshal(state))
	if err != nil {
		return fmt.Errorf("failed to save state %s: %w", fname, err)
	}
	return nil
}

// Marshal encodes state in protobuf wire format.
// Files and macros are encoded in sorted order, so the same state
// produces the same bytes.
func Marshal(state *incremental.State) []byte {
	var b []byte
	for _, src := range state.Sources() {
		b = protowire.AppendTag(b, stateSources, protowire.BytesType)
		b = protowire.AppendString(b, src)
	}
	for _, fname := range state.Files() {
		b = protowire.AppendTag(b, stateFiles, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalFile(fname, state.FileState(fname)))
	}
	return b
}

func marshalFile(fname string, st *incremental.FileState) []byte {
	var b []byte
	b = protowire.AppendTag(b, fileName, protowire.BytesType)
	b = protowire.AppendString(b, fname)

	var d []byte
	d = protowire.AppendTag(d, digestHash, protowire.BytesType)
	d = protowire.AppendString(d, st.Digest.Hash)
	d = protowire.AppendTag(d, digestSize, protowire.VarintType)
	d = protowire.AppendVarint(d, uint64(st.Digest.SizeBytes))
	b = protowire.AppendTag(b, fileDigest, protowire.BytesType)
	b = protowire.AppendBytes(b, d)

	for _, inc := range st.Directives.Includes {
		b = protowire.AppendTag(b, fileIncludes, protowire.BytesType)
		b = protowire.AppendString(b, inc)
	}
	names := make([]string, 0, len(st.Directives.Macros))
	for name := range st.Directives.Macros {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		var m []byte
		m = protowire.AppendTag(m, macroName, protowire.BytesType)
		m = protowire.AppendString(m, name)
		for _, v := range st.Directives.Macros[name] {
			m = protowire.AppendTag(m, macroValues, protowire.BytesType)
			m = protowire.AppendString(m, v)
		}
		b = protowire.AppendTag(b, fileMacros, protowire.BytesType)
		b = protowire.AppendBytes(b, m)
	}
	for _, f := range st.ResolvedFiles {
		b = protowire.AppendTag(b, fileResolved, protowire.BytesType)
		b = protowire.AppendString(b, f)
	}
	return b
}

// Unmarshal decodes state in protobuf wire format.
// Unknown fields are ignored.
func Unmarshal(b []byte) (*incremental.State, error) {
	var sources []string
	files := make(map[string]*incremental.FileState)
	err := forEachField(b, func(f field) error {
		switch f.num {
		case stateSources:
			s, err := f.str()
			if err != nil {
				return err
			}
			sources = append(sources, s)
		case stateFiles:
			if f.typ != protowire.BytesType {
				return f.typeError()
			}
			name, st, err := unmarshalFile(f.bytes)
			if err != nil {
				return fmt.Errorf("file %d: %w", len(files), err)
			}
			files[name] = st
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return incremental.NewState(sources, files), nil
}

func unmarshalFile(b []byte) (string, *incremental.FileState, error) {
	var name string
	var d digest.Digest
	var directives incremental.IncludeDirectives
	var resolved []string
	err := forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case fileName:
			name, err = f.str()
		case fileDigest:
			if f.typ != protowire.BytesType {
				return f.typeError()
			}
			d, err = unmarshalDigest(f.bytes)
		case fileIncludes:
			var s string
			s, err = f.str()
			directives.Includes = append(directives.Includes, s)
		case fileMacros:
			if f.typ != protowire.BytesType {
				return f.typeError()
			}
			var macro string
			var values []string
			macro, values, err = unmarshalMacro(f.bytes)
			if err != nil {
				return err
			}
			if directives.Macros == nil {
				directives.Macros = make(map[string][]string)
			}
			directives.Macros[macro] = values
		case fileResolved:
			var s string
			s, err = f.str()
			resolved = append(resolved, s)
		}
		return err
	})
	if err != nil {
		return "", nil, err
	}
	if name == "" {
		return "", nil, errors.New("no file name")
	}
	return name, incremental.NewFileState(d, directives, resolved), nil
}

func unmarshalDigest(b []byte) (digest.Digest, error) {
	var d digest.Digest
	err := forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case digestHash:
			d.Hash, err = f.str()
		case digestSize:
			if f.typ != protowire.VarintType {
				return f.typeError()
			}
			d.SizeBytes = int64(f.varint)
		}
		return err
	})
	return d, err
}

func unmarshalMacro(b []byte) (string, []string, error) {
	var name string
	var values []string
	err := forEachField(b, func(f field) error {
		var err error
		switch f.num {
		case macroName:
			name, err = f.str()
		case macroValues:
			var s string
			s, err = f.str()
			values = append(values, s)
		}
		return err
	})
	return name, values, err
}

type field struct {
	num    protowire.Number
	typ    protowire.Type
	bytes  []byte
	varint uint64
}

func (f field) str() (string, error) {
	if f.typ != protowire.BytesType {
		return "", f.typeError()
	}
	return string(f.bytes), nil
}

func (f field) typeError() error {
	return fmt.Errorf("field %d: unexpected wire type %d", f.num, f.typ)
}

func forEachField(b []byte, fn func(field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		f := field{num: num, typ: typ}
		switch typ {
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		case protowire.VarintType:
			f.varint, n = protowire.ConsumeVarint(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		err := fn(f)
		if err != nil {
			return err
		}
	}
	return nil
}
