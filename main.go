// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// ccdelta reports which C/C++ sources need to be recompiled since the
// previous check, by comparing their include graphs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	log "github.com/golang/glog"
	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"
	"go.chromium.org/luci/common/system/signals"

	"go.chromium.org/infra/build/ccdelta/subcmd/check"
	"go.chromium.org/infra/build/ccdelta/subcmd/depcheck"
	"go.chromium.org/infra/build/ccdelta/subcmd/help"
	"go.chromium.org/infra/build/ccdelta/subcmd/scandeps"
	"go.chromium.org/infra/build/ccdelta/subcmd/statecmd"
	"go.chromium.org/infra/build/ccdelta/subcmd/version"
	"go.chromium.org/infra/build/ccdelta/subcmd/watch"
	"go.chromium.org/infra/build/ccdelta/ui"
)

const ccdeltaVersion = "ccdelta v0.1.0"

func getApplication(ctx context.Context) *cli.Application {
	return &cli.Application{
		Name:  "ccdelta",
		Title: "incremental C/C++ change detection",
		Context: func(context.Context) context.Context {
			return ctx
		},
		Commands: []*subcommands.Command{
			check.Cmd(),
			watch.Cmd(),
			depcheck.Cmd(),
			scandeps.Cmd(),
			statecmd.Cmd(),

			help.Cmd(),
			version.Cmd(ccdeltaVersion),
		},
	}
}

func main() {
	os.Exit(ccdeltaMain())
}

func ccdeltaMain() int {
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer signals.HandleInterrupt(cancel)()

	// Flush the log on exit to not lose any messages.
	defer log.Flush()

	// Print a stack trace when a panic occurs.
	defer func() {
		if r := recover(); r != nil {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			log.Fatalf("panic: %v\n%s", r, buf)
		}
	}()

	ui.Init()
	defer ui.Restore()

	// Print build information to the log.
	buildinfo, ok := debug.ReadBuildInfo()
	if ok {
		log.Infof("main module: %s %s", moduleInfo(&buildinfo.Main), vcsInfo(buildinfo))
		if log.V(1) {
			for _, m := range buildinfo.Deps {
				log.Infof("deps module: %s", moduleInfo(m))
			}
			for _, bs := range buildinfo.Settings {
				log.Infof("build %s=%s", bs.Key, bs.Value)
			}
		}
	}

	return subcommands.Run(getApplication(ctx), flag.Args())
}

func moduleInfo(m *debug.Module) string {
	if m == nil {
		return "<nil>"
	}
	return fmt.Sprintf("path:%s version:%s sum:%s replace:%s", m.Path, m.Version, m.Sum, moduleInfo(m.Replace))
}

func vcsInfo(buildinfo *debug.BuildInfo) string {
	m := make(map[string]string)
	for _, bs := range buildinfo.Settings {
		if strings.HasPrefix(bs.Key, "vcs.") {
			m[bs.Key] = bs.Value
		}
	}
	return fmt.Sprintf("vcs[revision=%s time=%s modified=%s]", m["vcs.revision"], m["vcs.time"], m["vcs.modified"])
}
