// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package incremental detects which C/C++ sources need to be recompiled
// given the compilation state of the previous build.
//
// For each source, it walks the include graph depth first. A file is
// changed when its content digest differs from the previous build, when
// its includes resolve to a different set of files, when it doesn't
// exist, or when one of its includes can't be resolved statically
// (macro include). A change of any transitively included file makes the
// source modified. Sources not in the previous state are always
// modified, since there is no previous output to reuse.
//
// Collaborators parse include directives (Parser), resolve them to files
// (Resolver) and hash file contents (Hasher). The package doesn't persist
// states; see package statefile.
package incremental
