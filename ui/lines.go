// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package ui

import (
	"bytes"
	"strings"
)

const elideMarker = "..."

// writeLines writes msgs to buf, one per line, eliding lines longer
// than width. width <= 0 means no limit.
func writeLines(buf *bytes.Buffer, msgs []string, width int) {
	for i, msg := range msgs {
		if i > 0 {
			buf.WriteByte('\n')
		}
		body, nl := strings.CutSuffix(msg, "\n")
		if width > 0 && !strings.Contains(body, "\n") {
			body = elideMiddle(body, width-1)
		}
		buf.WriteString(body)
		if nl {
			buf.WriteByte('\n')
		}
	}
}

// elideMiddle elides msg in the middle to fit in width columns.
// An elided msg loses its escape sequences.
func elideMiddle(msg string, width int) string {
	visible := StripANSIEscapeCodes(msg)
	if len(visible) <= width {
		return msg
	}
	n := (width - len(elideMarker)) / 2
	if n <= 0 {
		return visible[:max(width, 0)]
	}
	return visible[:n] + elideMarker + visible[len(visible)-n:]
}
