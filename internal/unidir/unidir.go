// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package unidir keeps unidirectional markers up to date. A marker
// <span class="sync" note="ID" fields="..."> displays content extracted
// from note ID; syncing a field re-extracts that content and replaces
// whatever the marker held. References are one level deep: markers inside
// the extracted content are copied as they are, never followed.
package unidir

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/net/html"

	"github.com/pdiddy/fieldsync/internal/fetch"
	"github.com/pdiddy/fieldsync/internal/htmldoc"
	"github.com/pdiddy/fieldsync/internal/marker"
	"github.com/pdiddy/fieldsync/pkg/types"
)

var (
	// ErrInvalidNoteID reports a marker whose note attribute does not name
	// an existing note.
	ErrInvalidNoteID = errors.New("invalid note id")

	// ErrCycleDetected reports a marker whose target points straight back
	// at the note holding the marker.
	ErrCycleDetected = errors.New("cycle detected")
)

// Store is the subset of the note store the engine uses.
type Store interface {
	GetNote(ctx context.Context, id int64) (*types.Note, error)
	UpdateNote(ctx context.Context, n *types.Note) error
	FindNotes(ctx context.Context, substr string) ([]int64, error)
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Syncer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Syncer runs unidirectional sync against a store.
type Syncer struct {
	store  Store
	logger *slog.Logger
}

// New returns a Syncer reading and writing notes through store.
func New(store Store, opts ...Option) *Syncer {
	s := &Syncer{
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncField refreshes every unidirectional marker among the direct
// children of field fieldIndex of note. If any marker changed, the field is
// rewritten and the note is persisted once, and SyncField returns true.
//
// A nil note, a note that has not been stored yet (ID 0) and an
// out-of-range index are no-ops. Markers that cannot be resolved get a
// diagnostic as content instead of failing the call; only store failures
// other than a missing note are returned as errors.
func (s *Syncer) SyncField(ctx context.Context, note *types.Note, fieldIndex int) (bool, error) {
	if note == nil || note.ID == 0 || fieldIndex < 0 || fieldIndex >= len(note.Fields) {
		return false, nil
	}

	doc, err := htmldoc.Parse(note.Fields[fieldIndex].Value)
	if err != nil {
		return false, fmt.Errorf("parsing field %d of note %d: %w", fieldIndex, note.ID, err)
	}

	changed := false
	for _, m := range marker.FindUnidirectional(doc) {
		before := htmldoc.RenderNode(m)

		nodes, err := s.content(ctx, note.ID, m)
		if text, ok := diagnostic(err); ok {
			s.logger.Debug("marker unresolved", "note", note.ID, "field", fieldIndex, "reason", err)
			nodes = []*html.Node{marker.Diagnostic(text)}
		} else if err != nil {
			return false, err
		}
		htmldoc.ReplaceChildren(m, nodes...)

		if htmldoc.RenderNode(m) != before {
			changed = true
		}
	}
	if !changed {
		return false, nil
	}

	if err := s.persist(ctx, note, fieldIndex, doc.Render()); err != nil {
		return false, err
	}
	s.logger.Debug("field synced", "note", note.ID, "field", note.Fields[fieldIndex].Name)
	return true, nil
}

// content resolves one marker to the nodes it should hold.
func (s *Syncer) content(ctx context.Context, origin int64, m *html.Node) ([]*html.Node, error) {
	id, err := marker.NoteID(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNoteID, err)
	}
	target, err := s.store.GetNote(ctx, id)
	if errors.Is(err, types.ErrNotFound) {
		return nil, fmt.Errorf("note %d: %w", id, ErrInvalidNoteID)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching note %d: %w", id, err)
	}
	if RefersTo(target, origin) {
		return nil, fmt.Errorf("note %d refers to note %d: %w", id, origin, ErrCycleDetected)
	}
	frag, err := fetch.Extract(target, marker.Fields(m))
	if err != nil {
		return nil, err
	}
	return frag.Nodes(), nil
}

func diagnostic(err error) (string, bool) {
	switch {
	case err == nil:
		return "", false
	case errors.Is(err, ErrInvalidNoteID):
		return marker.TextInvalidNoteID, true
	case errors.Is(err, fetch.ErrUnknownModel):
		return marker.TextUnknownModel, true
	case errors.Is(err, ErrCycleDetected):
		return marker.TextCycleDetected, true
	}
	return "", false
}

// RefersTo reports whether any field of n holds, as a direct child, a
// unidirectional marker pointing at note id.
func RefersTo(n *types.Note, id int64) bool {
	for _, f := range n.Fields {
		doc, err := htmldoc.Parse(f.Value)
		if err != nil {
			continue
		}
		for _, m := range marker.FindUnidirectional(doc) {
			if ref, err := marker.NoteID(m); err == nil && ref == id {
				return true
			}
		}
	}
	return false
}

// SyncNote runs SyncField on every field of note and reports whether any
// changed.
func (s *Syncer) SyncNote(ctx context.Context, note *types.Note) (bool, error) {
	if note == nil {
		return false, nil
	}
	changed := false
	for i := range note.Fields {
		c, err := s.SyncField(ctx, note, i)
		if err != nil {
			return changed, err
		}
		changed = changed || c
	}
	return changed, nil
}

// Options restrict SyncAll.
type Options struct {
	// NoteTypes limits the run to notes whose type matches one of these
	// glob patterns. Empty means every note.
	NoteTypes []string
}

// Summary holds counts from a SyncAll run. Scanned counts every candidate
// note; the other counts are subsets of it.
type Summary struct {
	Scanned int
	Changed int
	Skipped int
	Failed  int
}

// SyncAll syncs every note that holds a marker. Notes that fail are counted
// and logged; the run continues. An error is returned only when the
// candidate notes cannot be listed, a pattern is malformed, or ctx is done.
func (s *Syncer) SyncAll(ctx context.Context, opts Options) (Summary, error) {
	for _, p := range opts.NoteTypes {
		if !doublestar.ValidatePattern(p) {
			return Summary{}, fmt.Errorf("invalid note type pattern %q", p)
		}
	}

	ids, err := s.store.FindNotes(ctx, marker.AnyQuery())
	if err != nil {
		return Summary{}, fmt.Errorf("finding notes with markers: %w", err)
	}

	var summary Summary
	for _, id := range ids {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}
		summary.Scanned++

		note, err := s.store.GetNote(ctx, id)
		if err != nil {
			s.logger.Warn("note unreadable", "note", id, "error", err)
			summary.Failed++
			continue
		}
		if !matchNoteType(opts.NoteTypes, note.NoteType) {
			summary.Skipped++
			continue
		}

		changed, err := s.SyncNote(ctx, note)
		if err != nil {
			s.logger.Warn("sync failed", "note", id, "error", err)
			summary.Failed++
			continue
		}
		if changed {
			summary.Changed++
		}
	}

	s.logger.Info("sync complete",
		"scanned", summary.Scanned, "changed", summary.Changed,
		"skipped", summary.Skipped, "failed", summary.Failed)
	return summary, nil
}

func matchNoteType(patterns []string, noteType string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, noteType); ok {
			return true
		}
	}
	return false
}

// persist stores note with field fieldIndex set to value. The caller's note
// is only modified once the store has accepted the update.
func (s *Syncer) persist(ctx context.Context, note *types.Note, fieldIndex int, value string) error {
	updated := note.Clone()
	updated.Fields[fieldIndex].Value = value
	if err := s.store.UpdateNote(ctx, updated); err != nil {
		return fmt.Errorf("updating note %d: %w", note.ID, err)
	}
	note.Fields[fieldIndex].Value = value
	return nil
}
