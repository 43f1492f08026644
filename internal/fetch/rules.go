// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"sort"

	"github.com/pdiddy/fieldsync/pkg/types"
)

// Variant selects how content is extracted from a note type.
type Variant int

const (
	Unknown Variant = iota
	Cloze
	ClozeCenter
	ClozeOverlapping
	ClozeOverlappingAlgo
	EqImPlain
	EqImTex
)

// Requestable field names. Text and Assumptions are pseudo-fields on EQ/IM
// note types: Text stands for the ordered text fields of the rule.
const (
	FieldText        = "Text"
	FieldAssumptions = "Assumptions"
	FieldOriginal    = "Original"
	FieldInput       = "Input"
	FieldOutput      = "Output"
)

// Rule describes extraction for one note type.
type Rule struct {
	Variant Variant

	// TextFields are concatenated (plain) or space-joined (TeX) to build the
	// Text block of EQ/IM note types.
	TextFields []string

	// Defaults are the fields extracted when a marker lists none.
	Defaults []string

	// Schema is the field layout of the note type.
	Schema []string
}

var (
	eqText         = []string{"EQ1", "Delimiter", "EQ2"}
	imText         = []string{"Context Left", "Cloze"}
	imReversedText = []string{"Context Left", "Cloze Left", "Context Middle", "Cloze Right"}
	imTexText      = []string{"Cloze Left", "Context Middle", "Cloze Right"}

	eqImDefaults = []string{FieldAssumptions, FieldText}
)

func eqIm(v Variant, text []string) Rule {
	schema := append(append([]string(nil), text...), FieldAssumptions)
	return Rule{Variant: v, TextFields: text, Defaults: eqImDefaults, Schema: schema}
}

var rules = map[string]Rule{
	"Cloze": {
		Variant:  Cloze,
		Defaults: []string{FieldText},
		Schema:   []string{FieldText, "Back Extra"},
	},
	"Cloze (center)": {
		Variant:  ClozeCenter,
		Defaults: []string{FieldText},
		Schema:   []string{FieldText, "Back Extra"},
	},
	"Cloze (overlapping)": {
		Variant:  ClozeOverlapping,
		Defaults: []string{FieldOriginal},
		Schema:   []string{FieldOriginal, "Remarks"},
	},
	"Cloze (overlapping) - algo": {
		Variant:  ClozeOverlappingAlgo,
		Defaults: []string{FieldInput, FieldOutput, FieldOriginal},
		Schema:   []string{FieldInput, FieldOutput, FieldOriginal, "Remarks"},
	},

	"EQ":                    eqIm(EqImPlain, eqText),
	"EQ (assumptions)":      eqIm(EqImPlain, eqText),
	"EQ (TEX)":              eqIm(EqImTex, eqText),
	"EQ (TEX, assumptions)": eqIm(EqImTex, eqText),

	"IM":                              eqIm(EqImPlain, imText),
	"IM (assumptions)":                eqIm(EqImPlain, imText),
	"IM (assumptions, reversed)":      eqIm(EqImPlain, imReversedText),
	"IM (reversed)":                   eqIm(EqImPlain, imReversedText),
	"IM (TEX)":                        eqIm(EqImTex, imTexText),
	"IM (TEX, assumptions)":           eqIm(EqImTex, imTexText),
	"IM (TEX, assumptions, reversed)": eqIm(EqImTex, imTexText),
	"IM (TEX, reversed)":              eqIm(EqImTex, imTexText),
}

// Lookup returns the rule for a note type name.
func Lookup(noteType string) (Rule, bool) {
	r, ok := rules[noteType]
	return r, ok
}

// NoteTypeNames returns every note type with an extraction rule, sorted.
func NoteTypeNames() []string {
	names := make([]string, 0, len(rules))
	for name := range rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StandardNoteTypes returns the schema of every note type with an
// extraction rule plus Basic, which carries no rule but is the usual host
// of markers.
func StandardNoteTypes() []types.NoteType {
	out := []types.NoteType{{Name: "Basic", Fields: []string{"Front", "Back"}}}
	for _, name := range NoteTypeNames() {
		out = append(out, types.NoteType{
			Name:   name,
			Fields: append([]string(nil), rules[name].Schema...),
		})
	}
	return out
}
