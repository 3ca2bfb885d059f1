// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package ui

import (
	"os"

	log "github.com/golang/glog"
	"golang.org/x/sys/windows"
)

var savedConsoleMode *uint32

// Init enables virtual terminal processing of the console, which
// TermUI needs for colors and line erasure. If it can't be enabled,
// Default falls back to LogUI.
func Init() {
	if !IsTerminal() {
		return
	}
	h := windows.Handle(os.Stdout.Fd())
	var mode uint32
	err := windows.GetConsoleMode(h, &mode)
	if err != nil {
		log.Warningf("no console mode, use log ui: %v", err)
		Default = &LogUI{}
		return
	}
	if mode&windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING != 0 {
		return
	}
	err = windows.SetConsoleMode(h, mode|windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING)
	if err != nil {
		log.Warningf("failed to enable virtual terminal processing (mode=0x%x), use log ui: %v", mode, err)
		Default = &LogUI{}
		return
	}
	savedConsoleMode = &mode
}

// Restore restores the console mode changed by Init.
func Restore() {
	if savedConsoleMode == nil {
		return
	}
	err := windows.SetConsoleMode(windows.Handle(os.Stdout.Fd()), *savedConsoleMode)
	if err != nil {
		log.Errorf("SetConsoleMode 0x%x: %v", *savedConsoleMode, err)
	}
}
