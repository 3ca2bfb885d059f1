// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package scandeps provides a forged C/C++ include scanner and resolver
// used as collaborators of incremental change detection.
//
// It only checks the following forms of #include
//
//	#include "foo.h"
//	#include <foo.h>
//	#include FOO_H
//
// to support last case, it also checks the following forms of #define
//
//	#define FOO_H "foo.h"
//	#define FOO_H <foo.h>
//	#define FOO_H OTHER_FOO_H
//
// Since it doesn't process `#if` or `#ifdef`, it expands all possible
// values of macros for `#include FOO_H`. A macro include whose value
// is not known is reported as unknown, and the including file is
// treated as changed.
//
// It doesn't allow comments nor multiline (\ at the end of line)
// for the directives.
package scandeps
