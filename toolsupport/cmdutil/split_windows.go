// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build windows

// Package cmdutil splits command lines in the platform's convention.
package cmdutil

import (
	"runtime"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Split splits cmd.exe's cmdline.
func Split(cmdline string) ([]string, error) {
	var argc int32
	argsPtr, err := windows.UTF16PtrFromString(cmdline)
	if err != nil {
		return nil, err
	}
	sysArgv, err := windows.CommandLineToArgv(argsPtr, &argc)
	if err != nil {
		return nil, err
	}
	defer windows.LocalFree(windows.Handle(unsafe.Pointer(sysArgv)))
	args := make([]string, 0, argc)
	for _, v := range (*sysArgv)[:argc] {
		// v may be longer than [8192]uint16. read until NUL.
		args = append(args, windows.UTF16PtrToString(&v[0]))
	}
	runtime.KeepAlive(argsPtr)
	return args, nil
}
