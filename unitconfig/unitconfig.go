// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package unitconfig provides the configuration of compile units to check.
//
// A config file is TOML, e.g.
//
//	state_file = "out/Default/.ccdelta_state"
//	hash = "xxhash"
//	sources = ["base/**/*.cc", "net/**/*.cc"]
//	exclude = ["**/*_unittest.cc"]
//	include_dirs = [".", "out/Default/gen"]
//	sysroots = ["build/linux/debian_bullseye_amd64-sysroot"]
//	compile_commands = "out/Default/compile_commands.json"
//
//	[defines]
//	USER_CONFIG_H = '"user_release.h"'
//
// Relative paths are relative to the working directory.
package unitconfig

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	log "github.com/golang/glog"

	"go.chromium.org/infra/build/ccdelta/o11y/clog"
	"go.chromium.org/infra/build/ccdelta/scandeps"
	"go.chromium.org/infra/build/ccdelta/toolsupport/gccutil"
)

const (
	// DefaultStateFile is the default state filename.
	DefaultStateFile = ".ccdelta_state"

	// DefaultConfigFile is the config filename used if exists
	// and no config file is specified.
	DefaultConfigFile = ".ccdelta.toml"
)

// Config is a configuration of compile units.
type Config struct {
	// StateFile is a filename to persist the compilation state.
	StateFile string `toml:"state_file"`

	// Hash is a digest algorithm. "xxhash" or "sha256".
	Hash string `toml:"hash"`

	// Parallelism is the number of sources checked concurrently.
	Parallelism int `toml:"parallelism"`

	// Sources are doublestar glob patterns of source files.
	Sources []string `toml:"sources"`

	// Exclude are doublestar glob patterns to exclude from Sources.
	Exclude []string `toml:"exclude"`

	QuoteDirs   []string          `toml:"quote_dirs"`
	IncludeDirs []string          `toml:"include_dirs"`
	Sysroots    []string          `toml:"sysroots"`
	Defines     map[string]string `toml:"defines"`

	// CompileCommands is a JSON compilation database.
	CompileCommands string `toml:"compile_commands"`
}

// Load loads a config from fname.
// Unknown keys are error to catch typos.
func Load(ctx context.Context, fname string) (Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(fname, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to load config %s: %w", fname, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		var keys []string
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("failed to load config %s: unknown keys %q", fname, keys)
	}
	if log.V(1) {
		clog.Infof(ctx, "config %s: %#v", fname, cfg)
	}
	return cfg, nil
}

// LoadWithFlags loads the config in dir and merges flags into it.
// If fname is empty, DefaultConfigFile in dir is loaded if it exists.
func LoadWithFlags(ctx context.Context, dir, fname string, flags Config) (Config, error) {
	if fname == "" {
		fname = filepath.Join(dir, DefaultConfigFile)
		_, err := os.Stat(fname)
		if errors.Is(err, fs.ErrNotExist) {
			return flags, nil
		}
	} else if !filepath.IsAbs(fname) {
		fname = filepath.Join(dir, fname)
	}
	cfg, err := Load(ctx, fname)
	if err != nil {
		return Config{}, err
	}
	return cfg.Merge(flags), nil
}

// RegisterFlags registers flags for the config.
// Flags are parsed into their own Config, and merged with a Config
// loaded from file by Merge.
func (c *Config) RegisterFlags(flagSet *flag.FlagSet) {
	flagSet.StringVar(&c.StateFile, "state", "", "state filename. default "+DefaultStateFile)
	flagSet.StringVar(&c.Hash, "hash", "", `digest algorithm. "xxhash" (default) or "sha256"`)
	flagSet.IntVar(&c.Parallelism, "j", 0, "number of sources checked concurrently. 0 means number of CPUs")
	flagSet.Var((*stringsFlag)(&c.Sources), "src", "doublestar glob pattern of source files. can be repeated")
	flagSet.Var((*stringsFlag)(&c.Exclude), "exclude", "doublestar glob pattern to exclude. can be repeated")
	flagSet.Var((*stringsFlag)(&c.QuoteDirs), "iquote", "quote include dir. can be repeated")
	flagSet.Var((*stringsFlag)(&c.IncludeDirs), "I", "include dir or *.hmap. can be repeated")
	flagSet.Var((*stringsFlag)(&c.Sysroots), "sysroot", "sysroot dir. can be repeated")
	flagSet.Var((*definesFlag)(&c.Defines), "D", `macro definition MACRO="path.h". can be repeated`)
	flagSet.StringVar(&c.CompileCommands, "compdb", "", "compile_commands.json")
}

// Merge returns c overridden by o. Scalar values in o override c's,
// and lists and maps are appended.
func (c Config) Merge(o Config) Config {
	r := c
	if o.StateFile != "" {
		r.StateFile = o.StateFile
	}
	if o.Hash != "" {
		r.Hash = o.Hash
	}
	if o.Parallelism != 0 {
		r.Parallelism = o.Parallelism
	}
	if o.CompileCommands != "" {
		r.CompileCommands = o.CompileCommands
	}
	r.Sources = concat(c.Sources, o.Sources)
	r.Exclude = concat(c.Exclude, o.Exclude)
	r.QuoteDirs = concat(c.QuoteDirs, o.QuoteDirs)
	r.IncludeDirs = concat(c.IncludeDirs, o.IncludeDirs)
	r.Sysroots = concat(c.Sysroots, o.Sysroots)
	if len(c.Defines)+len(o.Defines) > 0 {
		r.Defines = make(map[string]string)
		for k, v := range c.Defines {
			r.Defines[k] = v
		}
		for k, v := range o.Defines {
			r.Defines[k] = v
		}
	}
	return r
}

func concat(a, b []string) []string {
	if len(a)+len(b) == 0 {
		return nil
	}
	r := make([]string, 0, len(a)+len(b))
	r = append(r, a...)
	return append(r, b...)
}

// StateFilename returns the state filename in dir.
func (c Config) StateFilename(dir string) string {
	fname := c.StateFile
	if fname == "" {
		fname = DefaultStateFile
	}
	if filepath.IsAbs(fname) {
		return fname
	}
	return filepath.Join(dir, fname)
}

// SearchConfig returns include search config, with dirs in dir.
func (c Config) SearchConfig(dir string) scandeps.SearchConfig {
	cfg := scandeps.SearchConfig{
		QuoteDirs: absPaths(dir, c.QuoteDirs),
		Dirs:      absPaths(dir, c.IncludeDirs),
		Sysroots:  absPaths(dir, c.Sysroots),
		Defines:   make(map[string]string),
	}
	for k, v := range c.Defines {
		cfg.Defines[k] = v
	}
	return cfg
}

// AddParams adds scandeps params extracted from a compile command line.
// Paths in p are relative to dir.
func (c *Config) AddParams(dir string, p gccutil.Params) {
	c.QuoteDirs = append(c.QuoteDirs, absPaths(dir, p.Search.QuoteDirs)...)
	c.IncludeDirs = append(c.IncludeDirs, absPaths(dir, p.Search.Dirs)...)
	c.Sysroots = append(c.Sysroots, absPaths(dir, p.Search.Sysroots)...)
	if len(p.Search.Defines) > 0 && c.Defines == nil {
		c.Defines = make(map[string]string)
	}
	for k, v := range p.Search.Defines {
		c.Defines[k] = v
	}
}

func absPaths(dir string, paths []string) []string {
	var r []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		r = append(r, filepath.Clean(p))
	}
	return r
}

// ExpandSources expands Sources glob patterns in dir, and returns
// sorted, de-duplicated paths joined with dir.
// A pattern without meta characters is used as is, even if the file
// doesn't exist, so removed sources are still checked.
func (c Config) ExpandSources(ctx context.Context, dir string) ([]string, error) {
	fsys := os.DirFS(dir)
	seen := make(map[string]bool)
	for _, pat := range c.Sources {
		pat = filepath.ToSlash(pat)
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("bad source pattern %q: %w", pat, doublestar.ErrBadPattern)
		}
		if !hasMeta(pat) {
			seen[pat] = true
			continue
		}
		matches, err := doublestar.Glob(fsys, pat, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pat, err)
		}
		if log.V(1) {
			clog.Infof(ctx, "glob %q: %d matches", pat, len(matches))
		}
		for _, m := range matches {
			seen[m] = true
		}
	}
	var sources []string
	for src := range seen {
		excluded, err := c.excluded(src)
		if err != nil {
			return nil, err
		}
		if excluded {
			continue
		}
		sources = append(sources, src)
	}
	sort.Strings(sources)
	for i, src := range sources {
		if filepath.IsAbs(src) {
			continue
		}
		sources[i] = filepath.Join(dir, filepath.FromSlash(src))
	}
	return sources, nil
}

func (c Config) excluded(src string) (bool, error) {
	for _, pat := range c.Exclude {
		ok, err := doublestar.Match(filepath.ToSlash(pat), src)
		if err != nil {
			return false, fmt.Errorf("bad exclude pattern %q: %w", pat, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func hasMeta(pat string) bool {
	return strings.ContainsAny(pat, `*?[{\`)
}

type stringsFlag []string

func (f *stringsFlag) String() string {
	if f == nil {
		return ""
	}
	return strings.Join(*f, ",")
}

func (f *stringsFlag) Set(v string) error {
	*f = append(*f, v)
	return nil
}

type definesFlag map[string]string

func (f *definesFlag) String() string {
	if f == nil || *f == nil {
		return ""
	}
	var kv []string
	for k, v := range *f {
		kv = append(kv, k+"="+v)
	}
	sort.Strings(kv)
	return strings.Join(kv, ",")
}

func (f *definesFlag) Set(v string) error {
	k, val, ok := strings.Cut(v, "=")
	if !ok || k == "" {
		return fmt.Errorf("bad define %q. want MACRO=value", v)
	}
	if *f == nil {
		*f = make(map[string]string)
	}
	(*f)[k] = val
	return nil
}
