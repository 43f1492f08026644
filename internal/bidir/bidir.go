// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bidir reconciles bidirectional markers. Every
// <span class="sync" sid="S"> in the collection with the same sid belongs
// to one peer group, and after a successful pass all of them hold the same
// content. When the content of a group diverges, a Resolver decides
// whether the marker being edited wins (Upload) or takes over the content
// of a peer (Download).
package bidir

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"

	"golang.org/x/net/html"

	"github.com/pdiddy/fieldsync/internal/htmldoc"
	"github.com/pdiddy/fieldsync/internal/marker"
	"github.com/pdiddy/fieldsync/pkg/types"
)

// Resolution is the answer to a diverged peer group.
type Resolution int

const (
	// Download copies a peer's content into the local marker.
	Download Resolution = iota
	// Upload copies the local marker over every peer.
	Upload
)

// String returns the lower-case name of the resolution.
func (r Resolution) String() string {
	if r == Upload {
		return "upload"
	}
	return "download"
}

// Resolver settles a diverged peer group identified by sid.
type Resolver interface {
	Resolve(sid string) Resolution
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(sid string) Resolution

// Resolve calls f.
func (f ResolverFunc) Resolve(sid string) Resolution {
	return f(sid)
}

// Always returns a Resolver that answers r without asking.
func Always(r Resolution) Resolver {
	return ResolverFunc(func(string) Resolution { return r })
}

// Store is the subset of the note store the engine uses.
type Store interface {
	GetNote(ctx context.Context, id int64) (*types.Note, error)
	UpdateNote(ctx context.Context, n *types.Note) error
	FindNotes(ctx context.Context, substr string) ([]int64, error)
}

// maxSIDAttempts bounds the search for an unused sid.
const maxSIDAttempts = 1000

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

// WithResolver sets the resolver used when SyncField is given none. The
// default downloads.
func WithResolver(r Resolver) Option {
	return func(s *Syncer) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithRand sets the source of the random sid suffix.
func WithRand(r *rand.Rand) Option {
	return func(s *Syncer) {
		if r != nil {
			s.intN = r.IntN
		}
	}
}

// Syncer runs bidirectional sync against a store.
type Syncer struct {
	store    Store
	logger   *slog.Logger
	resolver Resolver
	intN     func(int) int
}

// New returns a Syncer reading and writing notes through store.
func New(store Store, opts ...Option) *Syncer {
	s := &Syncer{
		store:    store,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		resolver: Always(Download),
		intN:     rand.IntN,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncField reconciles every bidirectional marker among the direct
// children of field fieldIndex of note.
//
// A marker without a sid gets a fresh one and is otherwise left alone
// until the next pass; a marker with neither sid nor content is skipped.
// A marker with a sid is compared with its peers; when they differ, an
// empty local marker downloads without asking and any other is settled by
// resolver, or by the Syncer's default resolver when resolver is nil.
//
// The local note is persisted once if anything changed; peers touched by
// an upload are persisted individually. A nil note, a note that has not
// been stored yet (ID 0) and an out-of-range index are no-ops.
func (s *Syncer) SyncField(ctx context.Context, note *types.Note, fieldIndex int, resolver Resolver) (bool, error) {
	if note == nil || note.ID == 0 || fieldIndex < 0 || fieldIndex >= len(note.Fields) {
		return false, nil
	}
	if resolver == nil {
		resolver = s.resolver
	}

	doc, err := htmldoc.Parse(note.Fields[fieldIndex].Value)
	if err != nil {
		return false, fmt.Errorf("parsing field %d of note %d: %w", fieldIndex, note.ID, err)
	}

	taken := marker.SIDs(doc)
	changed := false
	for _, m := range marker.FindBidirectional(doc) {
		sid, ok := marker.SID(m)
		if !ok {
			if marker.Content(m) == "" {
				continue
			}
			fresh, err := s.GenerateSID(ctx, note, fieldIndex, taken)
			if err != nil {
				return false, err
			}
			marker.SetSID(m, fresh)
			taken[fresh] = true
			changed = true
			s.logger.Debug("sid assigned", "note", note.ID, "field", fieldIndex, "sid", fresh)
			continue
		}

		c, err := s.reconcile(ctx, note, m, sid, resolver)
		if err != nil {
			return false, err
		}
		changed = changed || c
	}
	if !changed {
		return false, nil
	}

	if err := s.persist(ctx, note, fieldIndex, doc.Render()); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Syncer) reconcile(ctx context.Context, local *types.Note, m *html.Node, sid string, resolver Resolver) (bool, error) {
	ids, err := s.store.FindNotes(ctx, marker.SIDQuery(sid))
	if err != nil {
		return false, fmt.Errorf("finding peers of sid %s: %w", sid, err)
	}
	peers, err := s.load(ctx, local, ids)
	if err != nil {
		return false, err
	}
	if coherent(peers, sid) {
		return false, nil
	}

	others := make([]*types.Note, 0, len(peers))
	for _, p := range peers {
		if p.ID != local.ID {
			others = append(others, p)
		}
	}
	if len(others) == 0 {
		return false, nil
	}

	answer := Download
	if marker.Content(m) != "" {
		answer = resolver.Resolve(sid)
	}
	s.logger.Debug("peer group diverged", "sid", sid, "peers", len(others), "resolution", answer)

	if answer == Upload {
		return true, s.upload(ctx, others, m, sid)
	}
	return download(others, m, sid), nil
}

// load returns the notes with the given ids. The local note takes the
// place of its stored copy, and is included even when the store does not
// list it.
func (s *Syncer) load(ctx context.Context, local *types.Note, ids []int64) ([]*types.Note, error) {
	notes := []*types.Note{local}
	for _, id := range ids {
		if id == local.ID {
			continue
		}
		n, err := s.store.GetNote(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("fetching peer note %d: %w", id, err)
		}
		notes = append(notes, n)
	}
	return notes, nil
}

// upload replaces every marker with sid in others by a copy of m and
// persists each note that changed.
func (s *Syncer) upload(ctx context.Context, others []*types.Note, m *html.Node, sid string) error {
	for _, n := range others {
		modified := false
		for i := range n.Fields {
			doc, err := htmldoc.Parse(n.Fields[i].Value)
			if err != nil {
				return fmt.Errorf("parsing field %d of note %d: %w", i, n.ID, err)
			}
			targets := marker.FindBySID(doc, sid)
			if len(targets) == 0 {
				continue
			}
			for _, t := range targets {
				htmldoc.ReplaceWith(t, htmldoc.Clone(m))
			}
			n.Fields[i].Value = doc.Render()
			modified = true
		}
		if !modified {
			continue
		}
		if err := s.store.UpdateNote(ctx, n); err != nil {
			return fmt.Errorf("updating peer note %d: %w", n.ID, err)
		}
	}
	return nil
}

// download copies the content of the first marker with sid found in others
// into m. It reports whether a source was found.
func download(others []*types.Note, m *html.Node, sid string) bool {
	for _, n := range others {
		for _, f := range n.Fields {
			doc, err := htmldoc.Parse(f.Value)
			if err != nil {
				continue
			}
			src := marker.FindBySID(doc, sid)
			if len(src) == 0 {
				continue
			}
			var nodes []*html.Node
			for c := src[0].FirstChild; c != nil; c = c.NextSibling {
				nodes = append(nodes, htmldoc.Clone(c))
			}
			htmldoc.ReplaceChildren(m, nodes...)
			return true
		}
	}
	return false
}

// coherent reports whether every marker with sid in notes holds the same
// content. Fewer than two markers are always coherent.
func coherent(notes []*types.Note, sid string) bool {
	var first *string
	for _, n := range notes {
		for _, f := range n.Fields {
			doc, err := htmldoc.Parse(f.Value)
			if err != nil {
				continue
			}
			for _, m := range marker.FindBySID(doc, sid) {
				content := marker.Content(m)
				if first == nil {
					first = &content
					continue
				}
				if content != *first {
					return false
				}
			}
		}
	}
	return true
}

// GenerateSID returns a sid of the form {noteID}_{fieldIndex}_{NNNN} that
// no stored note uses and that is not in taken.
func (s *Syncer) GenerateSID(ctx context.Context, note *types.Note, fieldIndex int, taken map[string]bool) (string, error) {
	for range maxSIDAttempts {
		sid := fmt.Sprintf("%d_%d_%04d", note.ID, fieldIndex, s.intN(10000))
		if taken[sid] {
			continue
		}
		ids, err := s.store.FindNotes(ctx, marker.SIDQuery(sid))
		if err != nil {
			return "", fmt.Errorf("checking sid %s: %w", sid, err)
		}
		if len(ids) == 0 {
			return sid, nil
		}
	}
	return "", fmt.Errorf("no free sid for note %d field %d after %d attempts", note.ID, fieldIndex, maxSIDAttempts)
}

// persist stores note with field fieldIndex set to value, touching the
// caller's note only after the update succeeded.
func (s *Syncer) persist(ctx context.Context, note *types.Note, fieldIndex int, value string) error {
	updated := note.Clone()
	updated.Fields[fieldIndex].Value = value
	if err := s.store.UpdateNote(ctx, updated); err != nil {
		return fmt.Errorf("updating note %d: %w", note.ID, err)
	}
	note.Fields[fieldIndex].Value = value
	return nil
}
