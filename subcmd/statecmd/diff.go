// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package statecmd

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sort"

	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"

	"go.chromium.org/infra/build/ccdelta/incremental"
	"go.chromium.org/infra/build/ccdelta/incremental/statefile"
	"go.chromium.org/infra/build/ccdelta/unitconfig"
)

func cmdStateDiff() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "diff",
		ShortDesc: "diff ccdelta state data",
		LongDesc: `show difference between two ccdelta state data.

 $ ccdelta state diff -C <dir>

It will print mismatched file entries between .ccdelta_state (--state)
and .ccdelta_state.0 (--state_base).
`,
		CommandRun: func() subcommands.CommandRun {
			c := &diffRun{}
			c.init()
			return c
		},
	}
}

type diffRun struct {
	subcommands.CommandRunBase
	dir           string
	stateFile     string
	stateFileBase string
}

func (c *diffRun) init() {
	c.Flags.StringVar(&c.dir, "C", ".", "working directory")
	c.Flags.StringVar(&c.stateFile, "state", unitconfig.DefaultStateFile, "state filename")
	c.Flags.StringVar(&c.stateFileBase, "state_base", unitconfig.DefaultStateFile+".0", "state filename for diff base")
}

func (c *diffRun) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, c, env)
	fname := stateFilename(c.dir, c.stateFile)
	st, err := statefile.Load(ctx, fname)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", fname, err)
		return 1
	}
	baseFname := stateFilename(c.dir, c.stateFileBase)
	stBase, err := statefile.Load(ctx, baseFname)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", baseFname, err)
		return 1
	}
	for _, d := range Diff(st, stBase) {
		buf, err := json.MarshalIndent(d, "", " ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "marshal error: %v\n", err)
			return 1
		}
		fmt.Printf("%s\n", buf)
	}
	return 0
}

// EntryDiff is a difference of a file between two states.
type EntryDiff struct {
	Name     string `json:"name"`
	DiffType string `json:"diff_type"`
	Cur      *File  `json:"cur,omitempty"`
	Base     *File  `json:"base,omitempty"`
}

// Diff returns differences of cur from base, sorted by name.
// Sources added or removed are reported with diff type
// "source_added" or "source_removed".
func Diff(cur, base *incremental.State) []EntryDiff {
	var diffs []EntryDiff
	for _, src := range cur.Sources() {
		if !base.HasSource(src) {
			diffs = append(diffs, EntryDiff{Name: src, DiffType: "source_added"})
		}
	}
	for _, src := range base.Sources() {
		if !cur.HasSource(src) {
			diffs = append(diffs, EntryDiff{Name: src, DiffType: "source_removed"})
		}
	}
	names := cur.Files()
	for _, fname := range base.Files() {
		if cur.FileState(fname) == nil {
			names = append(names, fname)
		}
	}
	sort.Strings(names)
	for _, fname := range names {
		d, found := checkDiff(fname, cur.FileState(fname), base.FileState(fname))
		if !found {
			continue
		}
		diffs = append(diffs, d)
	}
	sort.SliceStable(diffs, func(i, j int) bool {
		return diffs[i].Name < diffs[j].Name
	})
	return diffs
}

func checkDiff(name string, cur, base *incremental.FileState) (EntryDiff, bool) {
	var diffType string
	switch {
	case cur == nil && base == nil:
		return EntryDiff{}, false
	case base == nil:
		diffType = "new"
	case cur == nil:
		diffType = "removed"
	case cur.Digest != base.Digest:
		diffType = "content_modified"
	case !cur.Directives.Equal(base.Directives):
		diffType = "directives_modified"
	case !slices.Equal(cur.ResolvedFiles, base.ResolvedFiles):
		diffType = "resolved_modified"
	default:
		return EntryDiff{}, false
	}
	d := EntryDiff{
		Name:     name,
		DiffType: diffType,
	}
	if cur != nil {
		f := fileFromState(name, cur)
		d.Cur = &f
	}
	if base != nil {
		f := fileFromState(name, base)
		d.Base = &f
	}
	return d, true
}
