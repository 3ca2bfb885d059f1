// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package scandeps is scandeps subcommand for debugging include scanning.
package scandeps

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"

	"go.chromium.org/infra/build/ccdelta/hashfs"
	"go.chromium.org/infra/build/ccdelta/incremental"
	"go.chromium.org/infra/build/ccdelta/scandeps"
	"go.chromium.org/infra/build/ccdelta/unit"
	"go.chromium.org/infra/build/ccdelta/unitconfig"
)

const usage = `run scandeps

 $ ccdelta scandeps -C <dir> [-checked] -- <compile command>

prints the include tree of sources as resolved by include scanning.
Unresolved macro includes are marked as "?", and files already
printed in the tree are marked as "*".
`

// Cmd returns the Command for the `scandeps` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "scandeps <args>...",
		ShortDesc: "run scandeps",
		LongDesc:  usage,
		Advanced:  true,
		CommandRun: func() subcommands.CommandRun {
			c := &run{}
			c.init()
			return c
		},
	}
}

type run struct {
	subcommands.CommandRunBase

	dir        string
	configFile string
	checked    bool
	flags      unitconfig.Config
}

func (c *run) init() {
	c.Flags.StringVar(&c.dir, "C", ".", "working directory of the compile command")
	c.Flags.StringVar(&c.configFile, "config", "", "config file. default "+unitconfig.DefaultConfigFile+" if exists")
	c.Flags.BoolVar(&c.checked, "checked", false, "print locations checked for each include")
	c.flags.RegisterFlags(&c.Flags)
}

func (c *run) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, c, env)
	err := c.run(ctx, args)
	if err != nil {
		switch {
		case errors.Is(err, flag.ErrHelp):
			fmt.Fprintf(os.Stderr, "%v\n%s\n", err, usage)
		default:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func (c *run) run(ctx context.Context, args []string) error {
	if len(args) > 0 && args[0] == "--" {
		args = args[1:]
	}
	cfg, err := unitconfig.LoadWithFlags(ctx, c.dir, c.configFile, c.flags)
	if err != nil {
		return err
	}
	u, err := unit.New(ctx, c.dir, cfg, args)
	if err != nil {
		return err
	}
	hashFS, err := hashfs.New(ctx, hashfs.Option{Hash: u.Hash})
	if err != nil {
		return err
	}
	defer hashFS.Close(ctx)
	resolver, err := scandeps.NewResolver(ctx, hashFS, u.Search)
	if err != nil {
		return err
	}
	t := &tree{
		w:        os.Stdout,
		hfs:      hashFS,
		parser:   scandeps.NewParser(hashFS),
		resolver: resolver,
		checked:  c.checked,
	}
	for _, src := range u.Sources {
		t.visited = make(map[string]bool)
		t.included = nil
		err := t.print(ctx, src, 0)
		if err != nil {
			return err
		}
	}
	return nil
}

type tree struct {
	w        io.Writer
	hfs      *hashfs.HashFS
	parser   incremental.Parser
	resolver incremental.Resolver
	checked  bool

	visited  map[string]bool
	included []incremental.IncludeDirectives
}

func (t *tree) print(ctx context.Context, fname string, depth int) error {
	indent := strings.Repeat("  ", depth)
	if t.visited[fname] {
		fmt.Fprintf(t.w, "%s%s *\n", indent, fname)
		return nil
	}
	t.visited[fname] = true
	if !t.hfs.IsFile(ctx, fname) {
		fmt.Fprintf(t.w, "%s%s (missing)\n", indent, fname)
		return nil
	}
	fmt.Fprintf(t.w, "%s%s\n", indent, fname)
	directives, err := t.parser.ParseIncludes(ctx, fname)
	if err != nil {
		return err
	}
	t.included = append(t.included, directives)
	res, err := t.resolver.ResolveIncludes(ctx, fname, directives, t.included)
	if err != nil {
		return err
	}
	if t.checked {
		for _, loc := range res.CheckedLocations {
			fmt.Fprintf(t.w, "%s  - checked %s\n", indent, loc)
		}
	}
	for _, inc := range res.Includes {
		if inc.IsUnknown() {
			fmt.Fprintf(t.w, "%s  %s ?\n", indent, inc.Include)
			continue
		}
		err := t.print(ctx, inc.File, depth+1)
		if err != nil {
			return err
		}
	}
	return nil
}
