// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package hashfs provides a filesystem view that caches file metadata
// and content digests, so a header included from many sources is
// stat'ed and hashed only once per process.
package hashfs

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/golang/glog"
	"golang.org/x/sync/singleflight"

	"go.chromium.org/infra/build/ccdelta/o11y/clog"
	"go.chromium.org/infra/build/ccdelta/o11y/iometrics"
	"go.chromium.org/infra/build/ccdelta/reapi/digest"
	"go.chromium.org/infra/build/ccdelta/runtimex"
	"go.chromium.org/infra/build/ccdelta/sync/semaphore"
)

// DigestSemaphore is a semaphore to control concurrent digest calculation.
var DigestSemaphore = semaphore.New("file-digest", runtimex.NumCPU())

// Option is an option for HashFS.
type Option struct {
	// Hash is a name of digest algorithm. "xxhash" or "sha256".
	Hash string
}

// RegisterFlags registers flags for the option.
func (o *Option) RegisterFlags(flagSet *flag.FlagSet) {
	flagSet.StringVar(&o.Hash, "hash", string(digest.XXHash), `digest algorithm for change detection. "xxhash" or "sha256"`)
}

// HashFS is a filesystem for digest hash.
// It assumes files are not modified while it is in use, or that callers
// call Forget for files they know are modified.
type HashFS struct {
	alg digest.Algorithm

	entries sync.Map // filename -> *entry
	group   singleflight.Group

	// IOMetrics stores the metrics of I/O operations on the HashFS.
	IOMetrics *iometrics.IOMetrics
}

// New creates a HashFS.
func New(ctx context.Context, opt Option) (*HashFS, error) {
	alg, err := digest.ParseAlgorithm(opt.Hash)
	if err != nil {
		return nil, err
	}
	return &HashFS{
		alg:       alg,
		IOMetrics: iometrics.New("fs"),
	}, nil
}

// Algorithm returns the digest algorithm used by the HashFS.
func (hfs *HashFS) Algorithm() digest.Algorithm {
	return hfs.alg
}

// Close closes the HashFS.
func (hfs *HashFS) Close(ctx context.Context) error {
	clog.Infof(ctx, "fs close: %s", hfs.IOMetrics.Stats())
	return nil
}

func (hfs *HashFS) lookup(ctx context.Context, fname string) *entry {
	fname = filepath.Clean(fname)
	v, ok := hfs.entries.Load(fname)
	if ok {
		return v.(*entry)
	}
	e := &entry{}
	e.init(ctx, fname, hfs.IOMetrics)
	v, loaded := hfs.entries.LoadOrStore(fname, e)
	if loaded {
		if log.V(1) {
			clog.Infof(ctx, "stat race %s", fname)
		}
	}
	return v.(*entry)
}

// Stat returns a FileInfo of fname.
func (hfs *HashFS) Stat(ctx context.Context, fname string) (*FileInfo, error) {
	e := hfs.lookup(ctx, fname)
	if e.err != nil {
		return nil, e.err
	}
	return &FileInfo{fname: fname, e: e}, nil
}

// IsFile reports whether fname exists and is a regular file.
// Symlinks are followed.
func (hfs *HashFS) IsFile(ctx context.Context, fname string) bool {
	fi, err := hfs.Stat(ctx, fname)
	if err != nil {
		return false
	}
	return fi.Mode().IsRegular()
}

// Hash returns the digest of fname's content.
func (hfs *HashFS) Hash(ctx context.Context, fname string) (digest.Digest, error) {
	e := hfs.lookup(ctx, fname)
	if e.err != nil {
		return digest.Digest{}, e.err
	}
	if d := e.digest(); !d.IsZero() {
		return d, nil
	}
	if !e.mode.IsRegular() {
		return digest.Digest{}, fmt.Errorf("hash %s: not a regular file: %s", fname, e.mode)
	}
	key := filepath.Clean(fname)
	v, err, shared := hfs.group.Do(key, func() (any, error) {
		var d digest.Digest
		err := DigestSemaphore.Do(ctx, func(ctx context.Context) error {
			var err error
			d, err = digest.FromLocalFile(hfs.alg, key)
			hfs.IOMetrics.ReadDone(d.SizeBytes, err)
			return err
		})
		if err != nil {
			return digest.Digest{}, err
		}
		e.setDigest(d)
		return d, nil
	})
	if err != nil {
		return digest.Digest{}, fmt.Errorf("hash %s: %w", fname, err)
	}
	if shared {
		if log.V(2) {
			clog.Infof(ctx, "shared digest %s", fname)
		}
	}
	return v.(digest.Digest), nil
}

// ReadFile reads the content of fname.
// It also records the digest of the content, so a following Hash
// doesn't need to read the file again.
func (hfs *HashFS) ReadFile(ctx context.Context, fname string) ([]byte, error) {
	e := hfs.lookup(ctx, fname)
	if e.err != nil {
		return nil, e.err
	}
	buf, err := os.ReadFile(fname)
	hfs.IOMetrics.ReadDone(int64(len(buf)), err)
	if err != nil {
		return nil, err
	}
	if e.digest().IsZero() && int64(len(buf)) == e.size {
		e.setDigest(digest.FromBytes(hfs.alg, buf))
	}
	return buf, nil
}

// Forget forgets cached entries for fnames.
func (hfs *HashFS) Forget(ctx context.Context, fnames ...string) {
	for _, fname := range fnames {
		if log.V(1) {
			clog.Infof(ctx, "forget %s", fname)
		}
		hfs.entries.Delete(filepath.Clean(fname))
	}
}

type entry struct {
	err   error
	size  int64
	mode  fs.FileMode
	mtime time.Time

	mu sync.Mutex
	d  digest.Digest
}

func (e *entry) init(ctx context.Context, fname string, m *iometrics.IOMetrics) {
	fi, err := os.Stat(fname)
	notExist := errors.Is(err, fs.ErrNotExist)
	m.OpsDone(err, notExist)
	if notExist {
		if log.V(1) {
			clog.Infof(ctx, "not exist %s", fname)
		}
		e.err = err
		return
	}
	if err != nil {
		clog.Warningf(ctx, "failed to stat %s: %v", fname, err)
		e.err = err
		return
	}
	e.size = fi.Size()
	e.mode = fi.Mode()
	e.mtime = fi.ModTime()
}

func (e *entry) digest() digest.Digest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.d
}

func (e *entry) setDigest(d digest.Digest) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.d = d
}

// FileInfo implements https://pkg.go.dev/io/fs#FileInfo.
type FileInfo struct {
	fname string
	e     *entry
}

// Name is a base name of the file.
func (fi *FileInfo) Name() string {
	return filepath.Base(fi.fname)
}

// Size is a size of the file.
func (fi *FileInfo) Size() int64 {
	return fi.e.size
}

// Mode is a file mode of the file.
func (fi *FileInfo) Mode() fs.FileMode {
	return fi.e.mode
}

// ModTime is a modification time of the file.
func (fi *FileInfo) ModTime() time.Time {
	return fi.e.mtime
}

// IsDir returns true if it is the directory.
func (fi *FileInfo) IsDir() bool {
	return fi.e.mode.IsDir()
}

// Sys returns nil.
func (fi *FileInfo) Sys() any {
	return nil
}

// Path returns the file name given to Stat.
func (fi *FileInfo) Path() string {
	return fi.fname
}
