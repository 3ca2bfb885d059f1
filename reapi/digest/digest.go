// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package digest handles content digests of files.
//
// Digests are used as a change detection proxy, so a collision means a
// changed file is considered unchanged. The sha256 algorithm produces
// digests compatible with the remote execution API; xxhash is much
// cheaper and is the default for local change detection.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// Algorithm is a digest function.
type Algorithm string

const (
	// XXHash is 64bit xxHash.
	XXHash Algorithm = "xxhash"
	// SHA256 is sha256, as used by the remote execution API.
	SHA256 Algorithm = "sha256"
)

// ParseAlgorithm parses the name of the digest function.
// Empty name means the default, XXHash.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(name) {
	case "", XXHash:
		return XXHash, nil
	case SHA256:
		return SHA256, nil
	}
	return "", fmt.Errorf("unknown digest algorithm %q", name)
}

func (a Algorithm) newHash() hash.Hash {
	if a == SHA256 {
		return sha256.New()
	}
	return xxhash.New()
}

// Digest is a digest of content.
type Digest struct {
	Hash      string
	SizeBytes int64
}

// IsZero returns true when the digest is zero value struct.
// Note that a digest of empty content is not zero.
func (d Digest) IsZero() bool {
	return d.Hash == ""
}

// String returns "hash/size_bytes".
func (d Digest) String() string {
	return fmt.Sprintf("%s/%d", d.Hash, d.SizeBytes)
}

// FromBytes computes a digest of b.
func FromBytes(alg Algorithm, b []byte) Digest {
	h := alg.newHash()
	h.Write(b)
	return Digest{
		Hash:      hex.EncodeToString(h.Sum(nil)),
		SizeBytes: int64(len(b)),
	}
}

// FromReader computes a digest of the content read from r.
func FromReader(alg Algorithm, r io.Reader) (Digest, error) {
	h := alg.newHash()
	n, err := io.Copy(h, r)
	if err != nil {
		return Digest{}, err
	}
	return Digest{
		Hash:      hex.EncodeToString(h.Sum(nil)),
		SizeBytes: n,
	}, nil
}

// FromLocalFile computes a digest of the local file fname.
func FromLocalFile(alg Algorithm, fname string) (Digest, error) {
	f, err := os.Open(fname)
	if err != nil {
		return Digest{}, err
	}
	defer f.Close()
	return FromReader(alg, f)
}
