// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package depcheck provides depcheck subcommand.
package depcheck

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"

	"go.chromium.org/infra/build/ccdelta/o11y/clog"
	"go.chromium.org/infra/build/ccdelta/subcmd/check"
	"go.chromium.org/infra/build/ccdelta/toolsupport/makeutil"
	"go.chromium.org/infra/build/ccdelta/unit"
	"go.chromium.org/infra/build/ccdelta/unitconfig"
)

const usage = `check scanned headers against a compiler generated depfile

 $ ccdelta depcheck -C <dir> -depfile <file.d> -- <compile command>

Headers in the depfile (generated by -MD or -MMD) that are not found
by include scanning are reported as missing. Changes of missing headers
are not detected by "ccdelta check", so it fails if any.
Headers found by include scanning but not in the depfile are reported
as extra with -v. They are expected for headers in #if blocks.
`

// Cmd returns the Command for the `depcheck` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "depcheck -depfile <file.d> -- <compile command>",
		ShortDesc: "check scanned headers against a depfile",
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
	depfile    string
	verbose    bool
	flags      unitconfig.Config
}

func (c *run) init() {
	c.Flags.StringVar(&c.dir, "C", ".", "working directory of the compile command")
	c.Flags.StringVar(&c.configFile, "config", "", "config file. default "+unitconfig.DefaultConfigFile+" if exists")
	c.Flags.StringVar(&c.depfile, "depfile", "", "depfile generated by the compile command. relative to -C dir")
	c.Flags.BoolVar(&c.verbose, "v", false, "also print extra headers")
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
	if c.depfile == "" {
		return fmt.Errorf("no -depfile: %w", flag.ErrHelp)
	}
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
	depfile := c.depfile
	if !filepath.IsAbs(depfile) {
		depfile = filepath.Join(u.Dir, depfile)
	}
	deps, err := makeutil.ParseDepsFile(ctx, os.DirFS(filepath.Dir(depfile)), filepath.Base(depfile))
	if err != nil {
		return err
	}
	result, _, err := u.Analyze(ctx, nil, check.LogEvent)
	if err != nil {
		return err
	}
	missing, extra := Compare(u.Dir, deps, u.Sources, result.ExistingHeaders)
	clog.Infof(ctx, "depcheck %s: deps=%d headers=%d missing=%d extra=%d", depfile, len(deps), len(result.ExistingHeaders), len(missing), len(extra))
	if c.verbose {
		for _, f := range extra {
			fmt.Printf("extra %s\n", f)
		}
	}
	for _, f := range missing {
		fmt.Printf("missing %s\n", f)
	}
	if len(missing) > 0 {
		if result.UsesMacroIncludes {
			log.Warnf("some includes use macros and couldn't be resolved. it may cause missing headers")
		}
		return fmt.Errorf("%d headers in %s are not found by include scanning", len(missing), depfile)
	}
	return nil
}

// Compare compares deps in a depfile, relative to dir, with headers
// found by include scanning. Sources are ignored.
// It returns sorted headers missing in headers, and headers not in
// deps.
func Compare(dir string, deps, sources, headers []string) (missing, extra []string) {
	depSet := make(map[string]bool)
	for _, d := range deps {
		if !filepath.IsAbs(d) {
			d = filepath.Join(dir, d)
		}
		depSet[filepath.Clean(d)] = true
	}
	srcSet := make(map[string]bool)
	for _, s := range sources {
		srcSet[s] = true
	}
	headerSet := make(map[string]bool)
	for _, h := range headers {
		headerSet[h] = true
		if !depSet[h] && !srcSet[h] {
			extra = append(extra, h)
		}
	}
	for d := range depSet {
		if srcSet[d] || headerSet[d] {
			continue
		}
		missing = append(missing, d)
	}
	sort.Strings(missing)
	sort.Strings(extra)
	return missing, extra
}
