// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package statecmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"

	"go.chromium.org/infra/build/ccdelta/incremental"
	"go.chromium.org/infra/build/ccdelta/incremental/statefile"
	"go.chromium.org/infra/build/ccdelta/unitconfig"
)

func cmdStateExport() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "export",
		ShortDesc: "export ccdelta state data",
		LongDesc:  "export ccdelta state data to stdout.",
		CommandRun: func() subcommands.CommandRun {
			c := &exportRun{}
			c.init()
			return c
		},
	}
}

type exportRun struct {
	subcommands.CommandRunBase
	dir       string
	format    string
	stateFile string
}

func (c *exportRun) init() {
	c.Flags.StringVar(&c.dir, "C", ".", "working directory")
	c.Flags.StringVar(&c.format, "format", "json", "output format. json or text")
	c.Flags.StringVar(&c.stateFile, "state", unitconfig.DefaultStateFile, "state filename")
}

func (c *exportRun) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, c, env)
	fname := stateFilename(c.dir, c.stateFile)
	st, err := statefile.Load(ctx, fname)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", fname, err)
		return 1
	}
	if st == nil {
		fmt.Fprintf(os.Stderr, "no state in %s\n", fname)
		return 1
	}
	switch c.format {
	case "json":
		buf, err := json.MarshalIndent(FromState(st), "", " ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "marshal error: %v\n", err)
			return 1
		}
		os.Stdout.Write(buf)
		fmt.Println()
	case "text":
		writeText(os.Stdout, st)
	default:
		fmt.Fprintf(os.Stderr, "unknown format %s\n", c.format)
		return 2
	}
	return 0
}

func writeText(w io.Writer, st *incremental.State) {
	for _, src := range st.Sources() {
		fmt.Fprintf(w, "source %s\n", src)
	}
	for _, fname := range st.Files() {
		fs := st.FileState(fname)
		fmt.Fprintf(w, "file %s %s\n", fname, fs.Digest)
		for _, inc := range fs.Directives.Includes {
			fmt.Fprintf(w, "  include %s\n", inc)
		}
		for _, m := range sortedKeys(fs.Directives.Macros) {
			fmt.Fprintf(w, "  define %s %s\n", m, strings.Join(fs.Directives.Macros[m], " "))
		}
		for _, r := range fs.ResolvedFiles {
			fmt.Fprintf(w, "  resolved %s\n", r)
		}
	}
}
