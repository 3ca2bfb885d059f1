// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package ui provides progress and verdict output for terminals and logs.
package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// Spinner shows progress of a long operation.
type Spinner interface {
	// Start starts the spinner with the specified formatted string.
	Start(format string, args ...any)
	// Stop stops the spinner, outputting an error if provided.
	Stop(err error)
	// Done finishes the spinner with message.
	Done(format string, args ...any)
}

// UI is a user interface.
type UI interface {
	// PrintLines replaces the last len(msgs) lines with msgs.
	// A line that doesn't fit in the terminal is elided in the middle.
	// A message ending with \n moves to the next line, so it is
	// not replaced by the next call.
	PrintLines(msgs ...string)
	// NewSpinner returns a new spinner.
	NewSpinner() Spinner

	Infof(format string, args ...any)
	Warningf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Default holds the default UI interface.
// It is TermUI if stdout is a terminal, LogUI otherwise.
// Init may change it to LogUI.
var Default UI

func init() {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		termUI := &TermUI{}
		termUI.init()
		Default = termUI
		return
	}
	Default = &LogUI{}
}

// IsTerminal returns whether currently using a terminal UI.
func IsTerminal() bool {
	_, ok := Default.(*TermUI)
	return ok
}

// SGRCode is a SGR (select graphic rendition) parameter.
// https://en.wikipedia.org/wiki/ANSI_escape_code#SGR_(Select_Graphic_Rendition)_parameters
type SGRCode int

const (
	Reset SGRCode = iota
	Bold
	Red
	Green
	Yellow
	Cyan
)

func (s SGRCode) String() string {
	switch s {
	case Bold:
		return "\033[1m"
	case Red:
		return "\033[31;1m"
	case Green:
		return "\033[32m"
	case Yellow:
		return "\033[33m"
	case Cyan:
		return "\033[36m"
	}
	return "\033[0m"
}

// SGR formats s in SGR (select graphic rendition).
func SGR(n SGRCode, s string) string {
	return n.String() + s + Reset.String()
}

// StripANSIEscapeCodes strips ANSI escape codes.
func StripANSIEscapeCodes(s string) string {
	if !strings.Contains(s, "\033") {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\033' {
			sb.WriteByte(s[i])
			continue
		}
		if i+1 >= len(s) || s[i+1] != '[' {
			// only CSIs are stripped. drop lone ESC.
			continue
		}
		// skip parameters up to and including the final byte [a-zA-Z].
		for i += 2; i < len(s); i++ {
			c := s[i]
			if ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') {
				break
			}
		}
	}
	return sb.String()
}
