// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package marker defines sync markers: the <span class="sync"> elements a
// note field embeds to pull content from another note (unidirectional,
// note attribute) or to share content with a peer group (bidirectional,
// sid attribute).
//
// Only direct children of a field's root are markers. A marker nested in
// other markup, including inside another marker's content, is inert.
package marker

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/pdiddy/fieldsync/internal/htmldoc"
)

const (
	Tag        = "span"
	Class      = "sync"
	AttrNote   = "note"
	AttrFields = "fields"
	AttrSID    = "sid"
)

// Diagnostic texts written into a marker in place of content it could not
// resolve.
const (
	TextInvalidNoteID = "Invalid note ID"
	TextUnknownModel  = "Unknown model"
	TextCycleDetected = "Cycle detected"
)

// Kind classifies a node.
type Kind int

const (
	NotMarker Kind = iota
	Unidirectional
	Bidirectional
)

// IsMarker reports whether n is a span carrying the sync class.
func IsMarker(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == Tag && htmldoc.HasClass(n, Class)
}

// KindOf classifies n. The presence of the note attribute, whatever its
// value, makes a marker unidirectional.
func KindOf(n *html.Node) Kind {
	if !IsMarker(n) {
		return NotMarker
	}
	if htmldoc.HasAttr(n, AttrNote) {
		return Unidirectional
	}
	return Bidirectional
}

// FindUnidirectional returns the unidirectional markers among the direct
// children of doc.
func FindUnidirectional(doc *htmldoc.Document) []*html.Node {
	return doc.DirectChildren(Tag, func(n *html.Node) bool { return KindOf(n) == Unidirectional })
}

// FindBidirectional returns the bidirectional markers among the direct
// children of doc, with or without a sid.
func FindBidirectional(doc *htmldoc.Document) []*html.Node {
	return doc.DirectChildren(Tag, func(n *html.Node) bool { return KindOf(n) == Bidirectional })
}

// FindBySID returns every direct-child marker of doc whose sid equals sid.
func FindBySID(doc *htmldoc.Document, sid string) []*html.Node {
	return doc.DirectChildren(Tag, func(n *html.Node) bool {
		if !IsMarker(n) {
			return false
		}
		v, ok := htmldoc.Attr(n, AttrSID)
		return ok && v == sid
	})
}

// NoteID parses the note attribute of a unidirectional marker.
func NoteID(n *html.Node) (int64, error) {
	v, ok := htmldoc.Attr(n, AttrNote)
	if !ok {
		return 0, fmt.Errorf("marker has no %s attribute", AttrNote)
	}
	id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing note id %q: %w", v, err)
	}
	return id, nil
}

// Fields returns the field names listed in the fields attribute, or nil
// when the attribute is absent so that the note type's defaults apply.
func Fields(n *html.Node) []string {
	v, ok := htmldoc.Attr(n, AttrFields)
	if !ok {
		return nil
	}
	return strings.Fields(v)
}

// SID returns the peer-group identifier of a bidirectional marker.
func SID(n *html.Node) (string, bool) {
	return htmldoc.Attr(n, AttrSID)
}

// SetSID assigns the peer-group identifier.
func SetSID(n *html.Node, sid string) {
	htmldoc.SetAttr(n, AttrSID, sid)
}

// Content returns the serialized inner content of a marker. An empty
// marker yields "".
func Content(n *html.Node) string {
	return htmldoc.InnerHTML(n)
}

// SIDs returns every sid used by a direct-child marker of doc.
func SIDs(doc *htmldoc.Document) map[string]bool {
	out := make(map[string]bool)
	for _, n := range doc.DirectChildren(Tag, IsMarker) {
		if sid, ok := SID(n); ok {
			out[sid] = true
		}
	}
	return out
}

// Diagnostic returns a detached <div> carrying text.
func Diagnostic(text string) *html.Node {
	div := htmldoc.NewElement("div")
	div.AppendChild(htmldoc.NewText(text))
	return div
}

// AnyQuery is the store substring that every note holding a marker
// contains. It over-matches; callers parse the fields to confirm.
func AnyQuery() string {
	return Class
}

// SIDQuery is the store substring that every note holding a marker with
// the given sid contains, as the field serializer writes it.
func SIDQuery(sid string) string {
	return AttrSID + `="` + htmldoc.EscapeAttr(sid) + `"`
}
