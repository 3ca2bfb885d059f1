// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package incremental

import (
	"context"
	"fmt"
)

// EventKind is a kind of diagnostic event.
type EventKind int

const (
	// EventMacroInclude is emitted when an include couldn't be
	// resolved statically and the including file is assumed changed.
	EventMacroInclude EventKind = iota

	// EventMissingFile is emitted when a visited file doesn't exist,
	// and is treated as changed.
	EventMissingFile

	// EventRevisit is emitted when a file was already visited in
	// the current traversal, either by an include cycle or by
	// another include path, and is treated as unchanged there.
	EventRevisit
)

func (k EventKind) String() string {
	switch k {
	case EventMacroInclude:
		return "macro-include"
	case EventMissingFile:
		return "missing-file"
	case EventRevisit:
		return "revisit"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is a diagnostic event of conservative decisions made during
// analysis. These are expected behaviors, not errors.
type Event struct {
	Kind EventKind

	// File is the visited file.
	File string

	// Include is the include directive for EventMacroInclude.
	Include string
}

func (e Event) String() string {
	switch e.Kind {
	case EventMacroInclude:
		return fmt.Sprintf("cannot determine changed state of included %s in %s. assuming changed", e.Include, e.File)
	case EventMissingFile:
		return fmt.Sprintf("%s doesn't exist. assuming changed", e.File)
	}
	return fmt.Sprintf("%s %s", e.Kind, e.File)
}

// EventFunc receives diagnostic events.
// It may be called concurrently when sources are processed in parallel.
type EventFunc func(context.Context, Event)
