// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package notetest provides an in-memory note store and note builders for
// engine tests.
package notetest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pdiddy/fieldsync/internal/fetch"
	"github.com/pdiddy/fieldsync/pkg/types"
)

// Memory is a note store backed by a map. It stores and returns copies,
// so a caller's in-memory note diverges from the stored one until it is
// updated.
type Memory struct {
	mu     sync.Mutex
	notes  map[int64]*types.Note
	nextID int64

	// Updates counts UpdateNote calls per note id.
	Updates map[int64]int

	// Queries records every FindNotes argument in call order.
	Queries []string

	// Err, when set, is returned by every read and write.
	Err error

	// UpdateErr, when set, is returned by UpdateNote only.
	UpdateErr error
}

// NewMemory returns an empty store. Ids are assigned from 1000.
func NewMemory() *Memory {
	return &Memory{
		notes:   make(map[int64]*types.Note),
		nextID:  1000,
		Updates: make(map[int64]int),
	}
}

// Add stores n, assigning an id when n.ID is zero.
func (m *Memory) Add(n *types.Note) *types.Note {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.ID == 0 {
		m.nextID++
		n.ID = m.nextID
	}
	m.notes[n.ID] = n.Clone()
	return n
}

// Stored returns the stored copy of note id, or nil.
func (m *Memory) Stored(id int64) *types.Note {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.notes[id]; ok {
		return n.Clone()
	}
	return nil
}

// TotalUpdates returns the number of UpdateNote calls.
func (m *Memory) TotalUpdates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, c := range m.Updates {
		total += c
	}
	return total
}

func (m *Memory) GetNote(_ context.Context, id int64) (*types.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	n, ok := m.notes[id]
	if !ok {
		return nil, fmt.Errorf("note %d: %w", id, types.ErrNotFound)
	}
	return n.Clone(), nil
}

func (m *Memory) UpdateNote(_ context.Context, n *types.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	if _, ok := m.notes[n.ID]; !ok {
		return fmt.Errorf("note %d: %w", n.ID, types.ErrNotFound)
	}
	m.notes[n.ID] = n.Clone()
	m.Updates[n.ID]++
	return nil
}

func (m *Memory) FindNotes(_ context.Context, substr string) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries = append(m.Queries, substr)
	if m.Err != nil {
		return nil, m.Err
	}
	var ids []int64
	for id, n := range m.notes {
		for _, f := range n.Fields {
			if strings.Contains(f.Value, substr) {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// NewNote returns an unsaved note of a standard note type with the given
// field values. It panics on unknown note types or fields.
func NewNote(noteType string, values map[string]string) *types.Note {
	for _, nt := range fetch.StandardNoteTypes() {
		if nt.Name != noteType {
			continue
		}
		n := nt.NewNote()
		for k, v := range values {
			if !n.SetValue(k, v) {
				panic(fmt.Sprintf("notetest: note type %q has no field %q", noteType, k))
			}
		}
		return n
	}
	panic(fmt.Sprintf("notetest: unknown note type %q", noteType))
}

// Basic returns an unsaved Basic note.
func Basic(front, back string) *types.Note {
	return NewNote("Basic", map[string]string{"Front": front, "Back": back})
}
