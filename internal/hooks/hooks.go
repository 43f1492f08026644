// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package hooks wires the sync engines to the events a host application
// raises: a field losing focus in the editor, a collection sync about to
// start, and the manual "sync this note" command.
package hooks

import (
	"context"
	"fmt"

	"github.com/pdiddy/fieldsync/internal/bidir"
	"github.com/pdiddy/fieldsync/internal/unidir"
	"github.com/pdiddy/fieldsync/pkg/types"
)

// Hooks holds the engines a host drives.
type Hooks struct {
	Uni      *unidir.Syncer
	Bi       *bidir.Syncer
	Resolver bidir.Resolver
	Options  unidir.Options
}

// FieldUnfocused runs after the user leaves field fieldIndex of note.
// changed is what earlier handlers reported; the result tells the host
// whether to reload the note. Both engines always run, unidirectional
// first.
func (h *Hooks) FieldUnfocused(ctx context.Context, changed bool, note *types.Note, fieldIndex int) (bool, error) {
	c, err := h.syncField(ctx, note, fieldIndex)
	return changed || c, err
}

// SyncWillStart refreshes every unidirectional marker in the collection.
func (h *Hooks) SyncWillStart(ctx context.Context) (unidir.Summary, error) {
	return h.Uni.SyncAll(ctx, h.Options)
}

// SyncNote runs both engines over every field of note and reports whether
// anything changed.
func (h *Hooks) SyncNote(ctx context.Context, note *types.Note) (bool, error) {
	if note == nil {
		return false, nil
	}
	changed := false
	for i := range note.Fields {
		c, err := h.syncField(ctx, note, i)
		changed = changed || c
		if err != nil {
			return changed, err
		}
	}
	return changed, nil
}

func (h *Hooks) syncField(ctx context.Context, note *types.Note, fieldIndex int) (bool, error) {
	uni, err := h.Uni.SyncField(ctx, note, fieldIndex)
	if err != nil {
		return false, fmt.Errorf("unidirectional sync of field %d: %w", fieldIndex, err)
	}
	bi, err := h.Bi.SyncField(ctx, note, fieldIndex, h.Resolver)
	if err != nil {
		return uni, fmt.Errorf("bidirectional sync of field %d: %w", fieldIndex, err)
	}
	return uni || bi, nil
}
