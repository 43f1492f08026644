// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch turns a note into the HTML fragment that a unidirectional
// marker pointing at it displays. What is extracted depends on the note
// type; see Lookup for the table of known types.
package fetch

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/net/html"

	"github.com/pdiddy/fieldsync/internal/htmldoc"
	"github.com/pdiddy/fieldsync/pkg/types"
)

// ErrUnknownModel is returned for note types without an extraction rule.
var ErrUnknownModel = errors.New("unknown model")

// Nested deletions are not supported: the patterns are single-pass and
// non-greedy.
var (
	reCloze       = regexp.MustCompile(`(?s)\{\{c\d+::(.*?)(::.*?)?\}\}`)
	reOverlapping = regexp.MustCompile(`(?s)\[\[oc\d+::(.*?)(::.*?)?\]\]`)
	reAssumption  = regexp.MustCompile(`(?s)\[\[(.*?)::.*?\]\]`)
	reHint        = regexp.MustCompile(`(?s)::.*$`)
)

// Algo labels, as they appear on the cards.
const (
	labelInput  = "Vstup: "
	labelOutput = "Výstup: "
)

// StripCloze replaces every {{cN::answer}} or {{cN::answer::hint}} with
// answer.
func StripCloze(s string) string {
	return reCloze.ReplaceAllString(s, "$1")
}

// StripOverlapping replaces every [[ocN::answer]] or [[ocN::answer::hint]]
// with answer.
func StripOverlapping(s string) string {
	return reOverlapping.ReplaceAllString(s, "$1")
}

// StripAssumptionHints replaces every [[x::hint]] with x.
func StripAssumptionHints(s string) string {
	return reAssumption.ReplaceAllString(s, "$1")
}

// StripHint drops everything from the first "::" on.
func StripHint(s string) string {
	return reHint.ReplaceAllString(s, "")
}

// Extract builds the fragment for note. A nil fields selects the default
// field set of the note type; requested names that the note type does not
// know are ignored. A newline precedes the first block and follows every
// block. When no block applies the fragment is empty.
func Extract(note *types.Note, fields []string) (*htmldoc.Fragment, error) {
	rule, ok := Lookup(note.NoteType)
	if !ok {
		return nil, fmt.Errorf("note type %q: %w", note.NoteType, ErrUnknownModel)
	}
	if fields == nil {
		fields = rule.Defaults
	}

	var blocks []*html.Node
	var err error
	switch rule.Variant {
	case Cloze, ClozeCenter:
		blocks, err = clozeBlocks(note, fields)
	case ClozeOverlapping:
		blocks, err = overlappingBlocks(note, fields)
	case ClozeOverlappingAlgo:
		blocks, err = algoBlocks(note, fields)
	case EqImPlain:
		blocks, err = eqImBlocks(note, fields, rule, plainText)
	case EqImTex:
		blocks, err = eqImBlocks(note, fields, rule, texText)
	default:
		return nil, fmt.Errorf("note type %q: %w", note.NoteType, ErrUnknownModel)
	}
	if err != nil {
		return nil, fmt.Errorf("extracting from note %d: %w", note.ID, err)
	}
	return compose(blocks), nil
}

func compose(blocks []*html.Node) *htmldoc.Fragment {
	f := &htmldoc.Fragment{}
	if len(blocks) == 0 {
		return f
	}
	f.Append(htmldoc.NewText("\n"))
	for _, b := range blocks {
		f.Append(b, htmldoc.NewText("\n"))
	}
	return f
}

// div returns a <div> with the given attributes holding the parsed body.
func div(body string, kv ...string) (*html.Node, error) {
	d := htmldoc.NewElement("div", kv...)
	if err := htmldoc.AppendHTML(d, body); err != nil {
		return nil, err
	}
	return d, nil
}

func clozeBlocks(note *types.Note, fields []string) ([]*html.Node, error) {
	if !slices.Contains(fields, FieldText) {
		return nil, nil
	}
	d, err := div(StripCloze(note.Value(FieldText)))
	if err != nil {
		return nil, err
	}
	return []*html.Node{d}, nil
}

func overlappingBlocks(note *types.Note, fields []string) ([]*html.Node, error) {
	if !slices.Contains(fields, FieldOriginal) {
		return nil, nil
	}
	d, err := div(StripOverlapping(note.Value(FieldOriginal)))
	if err != nil {
		return nil, err
	}
	return []*html.Node{d}, nil
}

func algoBlocks(note *types.Note, fields []string) ([]*html.Node, error) {
	var out []*html.Node
	for _, lf := range []struct{ field, label string }{
		{FieldInput, labelInput},
		{FieldOutput, labelOutput},
	} {
		if !slices.Contains(fields, lf.field) {
			continue
		}
		v := note.Value(lf.field)
		if v == "" {
			continue
		}
		d := htmldoc.NewElement("div")
		label := htmldoc.NewElement("span", "class", "bold")
		label.AppendChild(htmldoc.NewText(lf.label))
		d.AppendChild(label)
		if err := htmldoc.AppendHTML(d, v); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	more, err := overlappingBlocks(note, fields)
	if err != nil {
		return nil, err
	}
	return append(out, more...), nil
}

type textBuilder func(note *types.Note, rule Rule) (*html.Node, error)

func eqImBlocks(note *types.Note, fields []string, rule Rule, text textBuilder) ([]*html.Node, error) {
	var out []*html.Node
	if slices.Contains(fields, FieldAssumptions) {
		if v := note.Value(FieldAssumptions); v != "" {
			d, err := div(StripAssumptionHints(v), "id", "assumptions")
			if err != nil {
				return nil, err
			}
			out = append(out, d)
		}
	}
	if slices.Contains(fields, FieldText) {
		d, err := text(note, rule)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func plainText(note *types.Note, rule Rule) (*html.Node, error) {
	var b strings.Builder
	for _, name := range rule.TextFields {
		b.WriteString(StripHint(note.Value(name)))
	}
	b.WriteByte('.')
	return div(b.String(), "class", "first-upper")
}

func texText(note *types.Note, rule Rule) (*html.Node, error) {
	parts := make([]string, 0, len(rule.TextFields))
	for _, name := range rule.TextFields {
		parts = append(parts, StripHint(note.Value(name)))
	}
	return div(`\[` + strings.Join(parts, " ") + `\]`)
}
