// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/fieldsync/pkg/types"
)

// ImportSummary holds counts from an import run.
type ImportSummary struct {
	NoteTypes int
	Added     int
	Updated   int
}

// ImportYAML reads a collection and merges it into the store. Missing note
// types are added. Notes keep their ids: a note whose id already exists is
// overwritten, any other note is added.
func (s *Store) ImportYAML(ctx context.Context, r io.Reader) (ImportSummary, error) {
	var col types.Collection
	if err := yaml.NewDecoder(r).Decode(&col); err != nil {
		if errors.Is(err, io.EOF) {
			return ImportSummary{}, nil
		}
		return ImportSummary{}, fmt.Errorf("parsing collection: %w", err)
	}
	return s.Import(ctx, &col)
}

// Import merges col into the store; see ImportYAML. A note overwriting a
// stored one must keep its note type and field names.
func (s *Store) Import(ctx context.Context, col *types.Collection) (ImportSummary, error) {
	var summary ImportSummary

	added, err := s.EnsureNoteTypes(ctx, col.NoteTypes)
	if err != nil {
		return summary, err
	}
	summary.NoteTypes = added

	for i := range col.Notes {
		n := &col.Notes[i]
		if n.ID != 0 {
			_, err := s.GetNote(ctx, n.ID)
			switch {
			case err == nil:
				if err := s.UpdateNote(ctx, n); err != nil {
					return summary, fmt.Errorf("importing note %d: %w", n.ID, err)
				}
				summary.Updated++
				continue
			case !errors.Is(err, ErrNotFound):
				return summary, err
			}
		}
		if err := s.AddNote(ctx, n); err != nil {
			return summary, fmt.Errorf("importing note %d: %w", n.ID, err)
		}
		summary.Added++
	}
	return summary, nil
}

// Export loads every note type and note.
func (s *Store) Export(ctx context.Context) (*types.Collection, error) {
	nts, err := s.NoteTypes(ctx)
	if err != nil {
		return nil, err
	}
	ids, err := s.NoteIDs(ctx)
	if err != nil {
		return nil, err
	}
	col := &types.Collection{NoteTypes: nts, Notes: make([]types.Note, 0, len(ids))}
	for _, id := range ids {
		n, err := s.GetNote(ctx, id)
		if err != nil {
			return nil, err
		}
		col.Notes = append(col.Notes, *n)
	}
	return col, nil
}

// ExportYAML writes the whole collection to w as YAML.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer) error {
	col, err := s.Export(ctx)
	if err != nil {
		return fmt.Errorf("querying for export: %w", err)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(col); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

// ExportJSON writes the whole collection to w as indented JSON.
func (s *Store) ExportJSON(ctx context.Context, w io.Writer) error {
	col, err := s.Export(ctx)
	if err != nil {
		return fmt.Errorf("querying for export: %w", err)
	}
	data, err := json.MarshalIndent(col, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
