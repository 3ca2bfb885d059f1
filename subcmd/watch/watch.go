// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package watch provides watch subcommand.
package watch

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"

	"go.chromium.org/infra/build/ccdelta/incremental"
	"go.chromium.org/infra/build/ccdelta/o11y/clog"
	"go.chromium.org/infra/build/ccdelta/subcmd/check"
	"go.chromium.org/infra/build/ccdelta/ui"
	"go.chromium.org/infra/build/ccdelta/unit"
	"go.chromium.org/infra/build/ccdelta/unitconfig"
	"go.chromium.org/infra/build/ccdelta/watcher"
)

const usage = `watch sources and report which need to be recompiled

 $ ccdelta watch -C <dir> [-config <file>] [-- <compile command>]

It checks sources as "ccdelta check" does, then waits for changes
of sources, included headers and locations probed for includes, and
reports sources to recompile on each change. Sources once reported
are regarded as recompiled. The state is kept in memory and saved
on exit unless -dry_run.
`

// Cmd returns the Command for the `watch` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "watch [-- <compile command>]",
		ShortDesc: "watch sources and report which need to be recompiled",
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

	dir         string
	configFile  string
	dryRun      bool
	debounce    time.Duration
	minInterval time.Duration
	flags       unitconfig.Config
}

func (c *run) init() {
	c.Flags.StringVar(&c.dir, "C", ".", "working directory. relative paths are relative to this dir")
	c.Flags.StringVar(&c.configFile, "config", "", "config file. default "+unitconfig.DefaultConfigFile+" if exists")
	c.Flags.BoolVar(&c.dryRun, "dry_run", false, "don't save the state on exit")
	c.Flags.DurationVar(&c.debounce, "debounce", 200*time.Millisecond, "quiet period after the last change to check sources")
	c.Flags.DurationVar(&c.minInterval, "min_interval", 1*time.Second, "minimum interval between checks")
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
	ctx = clog.NewSpan(ctx, uuid.New().String(), "watch", map[string]string{
		"dir": u.Dir,
	})
	w, err := watcher.New(watcher.Option{
		Debounce:    c.debounce,
		MinInterval: c.minInterval,
	})
	if err != nil {
		return err
	}
	defer w.Close()

	state := check.LoadState(ctx, u)
	defer func() {
		if c.dryRun || state == nil {
			return
		}
		// ctx may be canceled by interrupt.
		err := u.SaveState(context.WithoutCancel(ctx), state)
		if err != nil {
			ui.Default.Errorf("failed to save state: %v", err)
		}
	}()
	for {
		var err error
		state, err = c.check(ctx, u, w, state)
		if err != nil {
			ui.Default.Errorf("check failed: %v", err)
		}
		changed, err := w.Wait(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return err
		}
		ui.Default.PrintLines(changedLine(u.Dir, time.Now(), changed))
	}
}

// changedLine formats changed files relative to dir, replacing the
// status line printed by check.
func changedLine(dir string, now time.Time, changed []string) string {
	var sb strings.Builder
	sb.WriteString(now.Format(time.TimeOnly))
	sb.WriteString(" changed")
	for _, fname := range changed {
		rel, err := filepath.Rel(dir, fname)
		if err != nil {
			rel = fname
		}
		sb.WriteString(" ")
		sb.WriteString(rel)
	}
	sb.WriteString("\n")
	return sb.String()
}

// check checks u against state, and returns the new state.
// On error, it returns state as is, and keeps watching files.
func (c *run) check(ctx context.Context, u *unit.Unit, w *watcher.Watcher, state *incremental.State) (*incremental.State, error) {
	result, newState, err := u.Analyze(ctx, state, check.LogEvent)
	if err != nil {
		if w.Len() == 0 {
			w.SetFiles(ctx, u.Sources)
		}
		return state, err
	}
	check.PrintResult(os.Stdout, u.Dir, result)
	files := make([]string, 0, len(u.Sources)+len(result.DiscoveredInputs)+len(result.ExistingHeaders))
	files = append(files, u.Sources...)
	files = append(files, result.DiscoveredInputs...)
	files = append(files, result.ExistingHeaders...)
	n := w.SetFiles(ctx, files)
	clog.Infof(ctx, "watching %d files in %d dirs", len(files), n)
	ui.Default.PrintLines(fmt.Sprintf("watching %d files in %d dirs...", len(files), n))
	return newState, nil
}
