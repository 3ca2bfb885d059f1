// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package iometrics

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestIOMetrics(t *testing.T) {
	m := New("fs")
	m.OpsDone(nil, false)
	m.OpsDone(fs.ErrNotExist, true)
	m.OpsDone(fs.ErrPermission, false)
	m.ReadDone(10, nil)
	m.ReadDone(0, errors.New("broken"))

	want := Stats{
		Ops:     3,
		OpsErrs: 1,
		ROps:    2,
		RBytes:  10,
		RErrs:   1,
	}
	if diff := cmp.Diff(want, m.Stats()); diff != "" {
		t.Errorf("Stats diff -want +got:\n%s", diff)
	}
	if got := m.Name(); got != "fs" {
		t.Errorf("Name()=%q; want %q", got, "fs")
	}
}

func TestIOMetricsNil(t *testing.T) {
	var m *IOMetrics
	m.OpsDone(nil, false)
	m.ReadDone(1, nil)
	if got := m.Stats(); got != (Stats{}) {
		t.Errorf("nil Stats()=%v; want zero", got)
	}
	if got := m.Name(); got != "<nil>" {
		t.Errorf("nil Name()=%q; want <nil>", got)
	}
}
