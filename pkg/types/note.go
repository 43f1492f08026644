// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "errors"

// Field is one named HTML field of a note.
type Field struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Note is a flashcard note: a stable identifier, the name of its note type
// and an ordered list of HTML fields. An ID of zero means the note has not
// been stored yet.
type Note struct {
	ID       int64   `json:"id" yaml:"id"`
	NoteType string  `json:"note_type" yaml:"note_type"`
	Fields   []Field `json:"fields" yaml:"fields"`
}

// Value returns the content of the named field, or "" if the note has no
// such field.
func (n *Note) Value(name string) string {
	for _, f := range n.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

// SetValue replaces the content of the named field. It reports false when
// the field does not exist.
func (n *Note) SetValue(name, value string) bool {
	for i := range n.Fields {
		if n.Fields[i].Name == name {
			n.Fields[i].Value = value
			return true
		}
	}
	return false
}

// FieldIndex returns the position of the named field, or -1.
func (n *Note) FieldIndex(name string) int {
	for i, f := range n.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the note.
func (n *Note) Clone() *Note {
	c := &Note{ID: n.ID, NoteType: n.NoteType}
	c.Fields = append([]Field(nil), n.Fields...)
	return c
}

// NoteType is a named schema: the ordered list of field names every note of
// that type carries.
type NoteType struct {
	Name   string   `json:"name" yaml:"name"`
	Fields []string `json:"fields" yaml:"fields"`
}

// NewNote returns an unsaved note of type nt with every field empty.
func (nt NoteType) NewNote() *Note {
	n := &Note{NoteType: nt.Name}
	for _, name := range nt.Fields {
		n.Fields = append(n.Fields, Field{Name: name})
	}
	return n
}

// Collection is the interchange shape used to import and export a note
// store.
type Collection struct {
	NoteTypes []NoteType `json:"note_types" yaml:"note_types"`
	Notes     []Note     `json:"notes" yaml:"notes"`
}

// ErrNotFound is returned by note stores when a note or note type does
// not exist.
var ErrNotFound = errors.New("not found")
