// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package iometrics counts filesystem operations done while scanning
// include graphs.
package iometrics

import (
	"fmt"
	"sync/atomic"
)

// IOMetrics holds I/O metrics.
type IOMetrics struct {
	name string

	ops     atomic.Int64
	opsErrs atomic.Int64
	rOps    atomic.Int64
	rBytes  atomic.Int64
	rErrs   atomic.Int64
}

// New returns new iometrics for name.
func New(name string) *IOMetrics {
	return &IOMetrics{name: name}
}

// OpsDone counts when a non read I/O operation is done, e.g. stat.
// err is an I/O operation error. A missing file is not counted as
// an error since probing absent headers is the common case.
func (m *IOMetrics) OpsDone(err error, notExist bool) {
	if m == nil {
		return
	}
	m.ops.Add(1)
	if err != nil && !notExist {
		m.opsErrs.Add(1)
	}
}

// ReadDone counts when a read operation is done.
// n is the number of bytes, and err is a read error.
func (m *IOMetrics) ReadDone(n int64, err error) {
	if m == nil {
		return
	}
	m.rOps.Add(1)
	m.rBytes.Add(n)
	if err != nil {
		m.rErrs.Add(1)
	}
}

// Name returns the name of the iometrics.
func (m *IOMetrics) Name() string {
	if m == nil {
		return "<nil>"
	}
	return m.name
}

// Stats holds iometrics.
type Stats struct {
	// Number of I/O operations other than reads.
	Ops int64
	// Number of I/O operation errors other than read errors.
	OpsErrs int64

	// Number of read operations.
	ROps int64
	// Number of read bytes.
	RBytes int64
	// Number of read errors.
	RErrs int64
}

func (s Stats) String() string {
	return fmt.Sprintf("ops:%d(err:%d) read:%d(err:%d) %dbytes", s.Ops, s.OpsErrs, s.ROps, s.RErrs, s.RBytes)
}

// Stats returns the snapshot of the iometrics.
func (m *IOMetrics) Stats() Stats {
	if m == nil {
		return Stats{}
	}
	return Stats{
		Ops:     m.ops.Load(),
		OpsErrs: m.opsErrs.Load(),
		ROps:    m.rOps.Load(),
		RBytes:  m.rBytes.Load(),
		RErrs:   m.rErrs.Load(),
	}
}
