// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package shutil provides utilities of posix shell command lines.
package shutil

import (
	"fmt"
	"strings"
)

type quoteState int

const (
	unquoted quoteState = iota
	inSingleQuote
	inDoubleQuote
)

// Split splits a command line.
// It supports single quotes, double quotes and backslash escapes.
// It would return error for complicated pipe line.
func Split(cmdline string) ([]string, error) {
	var args []string
	var sb strings.Builder
	inArg := false
	state := unquoted
	for i := 0; i < len(cmdline); i++ {
		ch := cmdline[i]
		switch state {
		case inSingleQuote:
			if ch == '\'' {
				state = unquoted
				continue
			}
			sb.WriteByte(ch)

		case inDoubleQuote:
			switch ch {
			case '"':
				state = unquoted
			case '\\':
				if i+1 >= len(cmdline) {
					return nil, fmt.Errorf("failed to split: unterminated escape in quote")
				}
				switch cmdline[i+1] {
				case '$', '`', '"', '\\', '\n':
					i++
					sb.WriteByte(cmdline[i])
				default:
					sb.WriteByte(ch)
				}
			default:
				sb.WriteByte(ch)
			}

		default:
			switch ch {
			case ' ', '\t', '\n':
				if inArg {
					args = append(args, sb.String())
					sb.Reset()
					inArg = false
				}
			case '\\':
				if i+1 >= len(cmdline) {
					return nil, fmt.Errorf("failed to split: unterminated escape")
				}
				i++
				sb.WriteByte(cmdline[i])
				inArg = true
			case '\'':
				state = inSingleQuote
				inArg = true
			case '"':
				state = inDoubleQuote
				inArg = true
			case ';', '&', '|', '<', '>', '$', '#', '`':
				return nil, fmt.Errorf("failed to split: cmdline contains shell metachar %c", ch)
			default:
				sb.WriteByte(ch)
				inArg = true
			}
		}
	}
	if state != unquoted {
		return nil, fmt.Errorf("failed to split: unclosed quote")
	}
	if inArg {
		args = append(args, sb.String())
	}
	if len(args) >= 1 && strings.Contains(args[0], "=") {
		// if initial args contains =, it would set env var and need to invoke via sh
		return nil, fmt.Errorf("argv[0] is env set %q", args[0])
	}
	return args, nil
}
