// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package check provides check subcommand.
package check

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"

	"go.chromium.org/infra/build/ccdelta/incremental"
	"go.chromium.org/infra/build/ccdelta/o11y/clog"
	"go.chromium.org/infra/build/ccdelta/ui"
	"go.chromium.org/infra/build/ccdelta/unit"
	"go.chromium.org/infra/build/ccdelta/unitconfig"
)

const usage = `check which sources need to be recompiled

 $ ccdelta check -C <dir> [-config <file>] [-src <glob>]... [-- <compile command>]

It compares sources and headers included by them with the state
saved by the previous check, prints sources to recompile and
sources removed since the previous check, and saves the new state.

Sources, include dirs and defines are taken from the config file
(default: .ccdelta.toml in <dir>, if exists), flags, the compilation
database and the compile command after "--".
`

// Cmd returns the Command for the `check` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "check [-- <compile command>]",
		ShortDesc: "check which sources need to be recompiled",
		LongDesc:  usage,
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
	dryRun     bool
	jsonOutput bool
	flags      unitconfig.Config
}

func (c *run) init() {
	c.Flags.StringVar(&c.dir, "C", ".", "working directory. relative paths are relative to this dir")
	c.Flags.StringVar(&c.configFile, "config", "", "config file. default "+unitconfig.DefaultConfigFile+" if exists")
	c.Flags.BoolVar(&c.dryRun, "dry_run", false, "don't save the new state")
	c.Flags.BoolVar(&c.jsonOutput, "json", false, "print the result in json")
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
	ctx = clog.NewSpan(ctx, uuid.New().String(), "check", map[string]string{
		"dir": u.Dir,
	})

	prev := LoadState(ctx, u)
	spin := ui.Default.NewSpinner()
	spin.Start("checking %d sources", len(u.Sources))
	result, state, err := u.Analyze(ctx, prev, LogEvent)
	if err != nil {
		spin.Stop(err)
		return err
	}
	spin.Done("visits:%d parses:%d", result.Stats.Visits, result.Stats.Parses)

	if c.jsonOutput {
		buf, err := json.MarshalIndent(result, "", " ")
		if err != nil {
			return err
		}
		fmt.Printf("%s\n", buf)
	} else {
		PrintResult(os.Stdout, u.Dir, result)
	}
	if c.dryRun {
		return nil
	}
	return u.SaveState(ctx, state)
}

// LoadState loads the previous state of u.
// A corrupt state is reported and ignored, so every source is
// checked as new.
func LoadState(ctx context.Context, u *unit.Unit) *incremental.State {
	prev, err := u.LoadState(ctx)
	if err != nil {
		log.Warnf("ignore previous state: %v", err)
		clog.Warningf(ctx, "ignore previous state: %v", err)
		return nil
	}
	return prev
}

// LogEvent logs e.
func LogEvent(ctx context.Context, e incremental.Event) {
	switch e.Kind {
	case incremental.EventRevisit:
		if clog.FromContext(ctx).V(1) {
			clog.Infof(ctx, "%s", e)
		}
	default:
		clog.Infof(ctx, "%s", e)
	}
}

// PrintResult prints the result to w with paths relative to dir.
func PrintResult(w io.Writer, dir string, result incremental.Result) {
	rel := func(fname string) string {
		r, err := filepath.Rel(dir, fname)
		if err != nil {
			return fname
		}
		return r
	}
	for _, src := range result.ModifiedSources {
		fmt.Fprintf(w, "%s %s\n", sgr(ui.Yellow, "modified"), rel(src))
	}
	for _, src := range result.RemovedSources {
		fmt.Fprintf(w, "%s %s\n", sgr(ui.Red, "removed"), rel(src))
	}
	if result.UsesMacroIncludes {
		ui.Default.Warningf("some includes use macros. sources including them are always checked as modified")
	}
	if len(result.ModifiedSources)+len(result.RemovedSources) == 0 {
		fmt.Fprintln(w, sgr(ui.Green, "everything is up-to-date"))
	}
}

func sgr(n ui.SGRCode, s string) string {
	if !ui.IsTerminal() {
		return s
	}
	return ui.SGR(n, s)
}
