// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build unix

// Package cmdutil splits command lines in the platform's convention.
package cmdutil

import "go.chromium.org/infra/build/ccdelta/toolsupport/shutil"

// Split splits cmdline as posix shell does.
func Split(cmdline string) ([]string, error) {
	return shutil.Split(cmdline)
}
