// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package unidir

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/fieldsync/internal/notetest"
	"github.com/pdiddy/fieldsync/pkg/types"
)

func ref(id int64) string {
	return fmt.Sprintf(`<span class="sync" note="%d"></span>`, id)
}

func cloze(store *notetest.Memory, text string) *types.Note {
	return store.Add(notetest.NewNote("Cloze", map[string]string{"Text": text}))
}

func TestSyncFieldCloze(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "single", text: "{{c1::one}}", want: "\n<div>one</div>\n"},
		{name: "several", text: "{{c1::one}} {{c2::two}}", want: "\n<div>one two</div>\n"},
		{name: "hint", text: "{{c1::one::hint}}", want: "\n<div>one</div>\n"},
		{name: "nbsp", text: "{{c1::one&nbsp;two}}", want: "\n<div>one&nbsp;two</div>\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := notetest.NewMemory()
			target := cloze(store, tt.text)
			n := store.Add(notetest.Basic(ref(target.ID), ""))

			changed, err := New(store).SyncField(context.Background(), n, 0)
			require.NoError(t, err)
			assert.True(t, changed)

			want := fmt.Sprintf(`<span class="sync" note="%d">%s</span>`, target.ID, tt.want)
			assert.Equal(t, want, n.Value("Front"))
			assert.Equal(t, want, store.Stored(n.ID).Value("Front"))
			assert.Equal(t, 1, store.Updates[n.ID])
		})
	}
}

func TestSyncFieldEqWithAssumptions(t *testing.T) {
	store := notetest.NewMemory()
	target := store.Add(notetest.NewNote("EQ", map[string]string{
		"EQ1": "EQ1::hint_eq1", "Delimiter": "Delimiter", "EQ2": "EQ2::hint_eq2",
		"Assumptions": `<ol><li>Assumption1</li><li>Before [[assumption2::assumption hint]]</li></ol>`,
	}))
	n := store.Add(notetest.Basic(ref(target.ID), ""))

	changed, err := New(store).SyncField(context.Background(), n, 0)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, fmt.Sprintf(`<span class="sync" note="%d">`, target.ID)+"\n"+
		`<div id="assumptions"><ol><li>Assumption1</li><li>Before assumption2</li></ol></div>`+"\n"+
		`<div class="first-upper">EQ1DelimiterEQ2.</div>`+"\n</span>", n.Value("Front"))
}

func TestSyncFieldUnchanged(t *testing.T) {
	store := notetest.NewMemory()
	target := cloze(store, `<div class="first-upper">cringeis&nbsp;cringe.</div>`)
	front := fmt.Sprintf(`<span class="sync" note="%d">`+"\n"+
		`<div><div class="first-upper">cringeis&nbsp;cringe.</div></div>`+"\n</span>", target.ID)
	n := store.Add(notetest.Basic(front, ""))

	changed, err := New(store).SyncField(context.Background(), n, 0)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, front, n.Value("Front"))
	assert.Zero(t, store.TotalUpdates())
}

func TestSyncFieldDiagnostics(t *testing.T) {
	tests := []struct {
		name  string
		front func(store *notetest.Memory) string
		want  string
	}{
		{
			name:  "missing note",
			front: func(*notetest.Memory) string { return `<span class="sync" note="1234"></span>` },
			want:  `<span class="sync" note="1234"><div>Invalid note ID</div></span>`,
		},
		{
			name:  "non-numeric id",
			front: func(*notetest.Memory) string { return `<span class="sync" note="foo"></span>` },
			want:  `<span class="sync" note="foo"><div>Invalid note ID</div></span>`,
		},
		{
			name: "unknown model",
			front: func(store *notetest.Memory) string {
				return ref(store.Add(notetest.Basic("one", "")).ID)
			},
			want: `<span class="sync" note="1001"><div>Unknown model</div></span>`,
		},
		{
			name: "stale content replaced",
			front: func(*notetest.Memory) string {
				return `<span class="sync" note="x">old <b>content</b></span>`
			},
			want: `<span class="sync" note="x"><div>Invalid note ID</div></span>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := notetest.NewMemory()
			n := store.Add(notetest.Basic(tt.front(store), ""))

			changed, err := New(store).SyncField(context.Background(), n, 0)
			require.NoError(t, err)
			assert.True(t, changed)
			assert.Equal(t, tt.want, n.Value("Front"))

			// A second pass finds nothing to do.
			changed, err = New(store).SyncField(context.Background(), n, 0)
			require.NoError(t, err)
			assert.False(t, changed)
		})
	}
}

func TestSyncFieldCycle(t *testing.T) {
	store := notetest.NewMemory()
	n1 := store.Add(notetest.NewNote("Cloze", nil))
	n2 := store.Add(notetest.NewNote("Cloze", map[string]string{
		"Text": fmt.Sprintf(`Before2 %s After2`, ref(n1.ID)),
	}))
	n1.SetValue("Text", fmt.Sprintf(`Before1 %s After1`, ref(n2.ID)))
	require.NoError(t, store.UpdateNote(context.Background(), n1))

	s := New(store)
	changed, err := s.SyncField(context.Background(), n1, 0)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = s.SyncField(context.Background(), n2, 0)
	require.NoError(t, err)
	assert.True(t, changed)

	assert.Equal(t, fmt.Sprintf(`Before1 <span class="sync" note="%d"><div>Cycle detected</div></span> After1`, n2.ID), n1.Value("Text"))
	assert.Equal(t, fmt.Sprintf(`Before2 <span class="sync" note="%d"><div>Cycle detected</div></span> After2`, n1.ID), n2.Value("Text"))
}

func TestSyncFieldSelfReference(t *testing.T) {
	store := notetest.NewMemory()
	n := store.Add(notetest.Basic("", ""))
	n.SetValue("Front", ref(n.ID))
	require.NoError(t, store.UpdateNote(context.Background(), n))

	changed, err := New(store).SyncField(context.Background(), n, 0)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Contains(t, n.Value("Front"), "<div>Cycle detected</div>")
}

func TestSyncFieldNoOps(t *testing.T) {
	store := notetest.NewMemory()
	target := cloze(store, "{{c1::one}}")

	unsaved := notetest.Basic(ref(target.ID), "")
	stored := store.Add(notetest.Basic(`<span class="sync" note="foo"></span>`, ""))

	tests := []struct {
		name  string
		note  *types.Note
		index int
	}{
		{name: "nil note", note: nil, index: 0},
		{name: "note being created", note: unsaved, index: 0},
		{name: "index too large", note: stored, index: 42},
		{name: "negative index", note: stored, index: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changed, err := New(store).SyncField(context.Background(), tt.note, tt.index)
			require.NoError(t, err)
			assert.False(t, changed)
		})
	}
	assert.Zero(t, store.TotalUpdates())
}

func TestSyncFieldIgnoresNonMarkers(t *testing.T) {
	store := notetest.NewMemory()
	target := cloze(store, "{{c1::one}}")

	tests := []struct {
		name  string
		front string
	}{
		{name: "no note attribute", front: `<span class="sync"></span>`},
		{name: "no sync class", front: fmt.Sprintf(`<span note="%d"></span>`, target.ID)},
		{name: "nested marker", front: fmt.Sprintf(`<div>%s</div>`, ref(target.ID))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := store.Add(notetest.Basic(tt.front, ""))
			changed, err := New(store).SyncField(context.Background(), n, 0)
			require.NoError(t, err)
			assert.False(t, changed)
			assert.Equal(t, tt.front, n.Value("Front"))
		})
	}
}

func TestSyncFieldTransitiveNotFollowed(t *testing.T) {
	store := notetest.NewMemory()
	a := cloze(store, "{{c1::a}}")
	b := cloze(store, fmt.Sprintf(`<span class="sync" note="%d">stale</span>`, a.ID))
	n := store.Add(notetest.Basic(ref(b.ID), ""))

	_, err := New(store).SyncField(context.Background(), n, 0)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf(`<span class="sync" note="%d">`+"\n"+`<div><span class="sync" note="%d">stale</span></div>`+"\n</span>", b.ID, a.ID),
		n.Value("Front"))
}

func TestSyncFieldFieldsAttribute(t *testing.T) {
	store := notetest.NewMemory()
	target := store.Add(notetest.NewNote("IM", map[string]string{
		"Context Left": "a ", "Cloze": "b", "Assumptions": "x",
	}))
	n := store.Add(notetest.Basic(fmt.Sprintf(`<span class="sync" note="%d" fields="Assumptions"></span>`, target.ID), ""))

	_, err := New(store).SyncField(context.Background(), n, 0)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf(`<span class="sync" note="%d" fields="Assumptions">`+"\n"+`<div id="assumptions">x</div>`+"\n</span>", target.ID),
		n.Value("Front"))
}

func TestSyncFieldMultipleMarkersOneUpdate(t *testing.T) {
	store := notetest.NewMemory()
	a := cloze(store, "{{c1::a}}")
	b := cloze(store, "{{c1::b}}")
	n := store.Add(notetest.Basic(ref(a.ID)+" and "+ref(b.ID), ""))

	changed, err := New(store).SyncField(context.Background(), n, 0)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, store.Updates[n.ID])
	assert.Contains(t, n.Value("Front"), "<div>a</div>")
	assert.Contains(t, n.Value("Front"), "<div>b</div>")
}

func TestSyncFieldStoreError(t *testing.T) {
	store := notetest.NewMemory()
	target := cloze(store, "{{c1::one}}")
	n := store.Add(notetest.Basic(ref(target.ID), ""))
	before := n.Value("Front")

	boom := errors.New("disk on fire")
	store.Err = boom
	changed, err := New(store).SyncField(context.Background(), n, 0)
	assert.ErrorIs(t, err, boom)
	assert.False(t, changed)
	assert.Equal(t, before, n.Value("Front"))
}

func TestSyncFieldUpdateFailureLeavesNoteUntouched(t *testing.T) {
	store := notetest.NewMemory()
	target := cloze(store, "{{c1::one}}")
	n := store.Add(notetest.Basic(ref(target.ID), ""))

	boom := errors.New("disk full")
	store.UpdateErr = boom
	changed, err := New(store).SyncField(context.Background(), n, 0)
	assert.ErrorIs(t, err, boom)
	assert.False(t, changed)
	assert.Equal(t, ref(target.ID), n.Value("Front"))
	assert.Equal(t, ref(target.ID), store.Stored(n.ID).Value("Front"))
}

func TestSyncFieldSelfClosingMarkerKeepsFollowingText(t *testing.T) {
	store := notetest.NewMemory()
	target := cloze(store, "{{c1::one}}")
	n := store.Add(notetest.Basic(fmt.Sprintf(`<span class="sync" note="%d"/> After text`, target.ID), ""))

	changed, err := New(store).SyncField(context.Background(), n, 0)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, fmt.Sprintf(`<span class="sync" note="%d">`+"\n<div>one</div>\n</span> After text", target.ID),
		n.Value("Front"))
}

func TestSyncFieldKeepsMarkupOutsideMarkers(t *testing.T) {
	store := notetest.NewMemory()
	target := cloze(store, "{{c1::one}}")
	table := "<table><tr><td>a</td></tr></table>\r\n"
	n := store.Add(notetest.Basic(table+ref(target.ID)+"\r\nend", ""))

	changed, err := New(store).SyncField(context.Background(), n, 0)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, table+fmt.Sprintf(`<span class="sync" note="%d">`+"\n<div>one</div>\n</span>\r\nend", target.ID),
		n.Value("Front"))
}

func TestSyncNote(t *testing.T) {
	store := notetest.NewMemory()
	target := cloze(store, "{{c1::one}}")
	n := store.Add(notetest.Basic(ref(target.ID), ref(target.ID)))

	changed, err := New(store).SyncNote(context.Background(), n)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, n.Value("Front"), n.Value("Back"))
	assert.Equal(t, 2, store.Updates[n.ID])
}

func TestSyncAll(t *testing.T) {
	store := notetest.NewMemory()
	target := cloze(store, "{{c1::one}}")
	a := store.Add(notetest.Basic(ref(target.ID), ""))
	b := store.Add(notetest.NewNote("Cloze (center)", map[string]string{"Text": ref(target.ID)}))
	store.Add(notetest.Basic("no markers", ""))

	summary, err := New(store).SyncAll(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, Summary{Scanned: 2, Changed: 2}, summary)
	assert.Equal(t, []string{"sync"}, store.Queries)
	assert.Contains(t, store.Stored(a.ID).Value("Front"), "<div>one</div>")
	assert.Contains(t, store.Stored(b.ID).Value("Text"), "<div>one</div>")

	summary, err = New(store).SyncAll(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, Summary{Scanned: 2}, summary)
}

func TestSyncAllNoteTypeFilter(t *testing.T) {
	store := notetest.NewMemory()
	target := cloze(store, "{{c1::one}}")
	a := store.Add(notetest.Basic(ref(target.ID), ""))
	b := store.Add(notetest.NewNote("Cloze (center)", map[string]string{"Text": ref(target.ID)}))

	summary, err := New(store).SyncAll(context.Background(), Options{NoteTypes: []string{"Cloze*"}})
	require.NoError(t, err)
	assert.Equal(t, Summary{Scanned: 2, Changed: 1, Skipped: 1}, summary)
	assert.Equal(t, ref(target.ID), store.Stored(a.ID).Value("Front"))
	assert.Contains(t, store.Stored(b.ID).Value("Text"), "<div>one</div>")
}

func TestSyncAllInvalidPattern(t *testing.T) {
	_, err := New(notetest.NewMemory()).SyncAll(context.Background(), Options{NoteTypes: []string{"[unclosed"}})
	assert.Error(t, err)
}

func TestSyncAllCanceled(t *testing.T) {
	store := notetest.NewMemory()
	target := cloze(store, "{{c1::one}}")
	store.Add(notetest.Basic(ref(target.ID), ""))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(store).SyncAll(ctx, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRefersTo(t *testing.T) {
	n := notetest.Basic("", `x <span class="sync" note="7"></span>`)
	assert.True(t, RefersTo(n, 7))
	assert.False(t, RefersTo(n, 8))

	nested := notetest.Basic(`<div><span class="sync" note="7"></span></div>`, "")
	assert.False(t, RefersTo(nested, 7))
}
