// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package statecmd provides state subcommand.
package statecmd

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/maruel/subcommands"

	"go.chromium.org/infra/build/ccdelta/incremental"
)

// Cmd returns the Command for the `state` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "state <subcommand>",
		ShortDesc: "access ccdelta state data",
		LongDesc:  "access ccdelta state data.",
		Advanced:  true,
		CommandRun: func() subcommands.CommandRun {
			c := &stateRun{
				app: &subcommands.DefaultApplication{
					Name:  "ccdelta state",
					Title: "tool to access ccdelta state data",
					Commands: []*subcommands.Command{
						cmdStateDiff(),
						cmdStateExport(),
						subcommands.CmdHelp,
					},
				},
			}
			c.Flags.Usage = func() {
				subcommands.Usage(os.Stderr, c.app, true)
			}
			return c
		},
	}
}

type stateRun struct {
	subcommands.CommandRunBase
	app *subcommands.DefaultApplication
}

func (c *stateRun) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	return subcommands.Run(c.app, args)
}

func stateFilename(dir, fname string) string {
	if filepath.IsAbs(fname) {
		return fname
	}
	return filepath.Join(dir, fname)
}

// File is a json representation of a file state.
type File struct {
	Name          string              `json:"name"`
	Digest        string              `json:"digest"`
	Includes      []string            `json:"includes,omitempty"`
	Macros        map[string][]string `json:"macros,omitempty"`
	ResolvedFiles []string            `json:"resolved_files,omitempty"`
}

// State is a json representation of a state.
type State struct {
	Sources []string `json:"sources"`
	Files   []File   `json:"files"`
}

// FromState converts st to json representation.
func FromState(st *incremental.State) State {
	s := State{
		Sources: st.Sources(),
		Files:   []File{},
	}
	for _, fname := range st.Files() {
		s.Files = append(s.Files, fileFromState(fname, st.FileState(fname)))
	}
	return s
}

func fileFromState(fname string, fs *incremental.FileState) File {
	return File{
		Name:          fname,
		Digest:        fs.Digest.String(),
		Includes:      fs.Directives.Includes,
		Macros:        fs.Directives.Macros,
		ResolvedFiles: fs.ResolvedFiles,
	}
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
