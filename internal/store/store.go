// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists notes and note types in SQLite and implements the
// lookups the sync engines need: fetch by id, atomic update, and substring
// search over field values.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/fieldsync/pkg/types"
)

// DefaultPath is the database file used when the configuration names none.
const DefaultPath = "collection.db"

// ErrNotFound is returned when a note or note type does not exist.
var ErrNotFound = types.ErrNotFound

// Store manages the note collection database.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewStore opens or creates the database at cfg.Path and creates the
// schema if it does not exist.
func NewStore(cfg types.StoreConfig) (*Store, error) {
	path := cfg.Path
	if path == "" {
		path = DefaultPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: path, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS note_types (
			name TEXT PRIMARY KEY,
			fields TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS notes (
			id INTEGER PRIMARY KEY,
			note_type TEXT NOT NULL REFERENCES note_types(name),
			modified TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS fields (
			note_id INTEGER NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
			ord INTEGER NOT NULL,
			name TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (note_id, ord)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notes_note_type ON notes(note_type)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// AddNoteType stores a new note type. It fails if the name is taken.
func (s *Store) AddNoteType(ctx context.Context, nt types.NoteType) error {
	if nt.Name == "" {
		return fmt.Errorf("note type has no name")
	}
	fieldsJSON, err := json.Marshal(nt.Fields)
	if err != nil {
		return fmt.Errorf("marshaling fields: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO note_types (name, fields) VALUES (?, ?)`, nt.Name, string(fieldsJSON))
	if err != nil {
		return fmt.Errorf("inserting note type %q: %w", nt.Name, err)
	}
	return nil
}

// EnsureNoteTypes stores each note type that is not present yet and
// returns how many were added. Existing note types are left unchanged.
func (s *Store) EnsureNoteTypes(ctx context.Context, nts []types.NoteType) (int, error) {
	added := 0
	for _, nt := range nts {
		fieldsJSON, err := json.Marshal(nt.Fields)
		if err != nil {
			return added, fmt.Errorf("marshaling fields: %w", err)
		}
		res, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO note_types (name, fields) VALUES (?, ?)`, nt.Name, string(fieldsJSON))
		if err != nil {
			return added, fmt.Errorf("inserting note type %q: %w", nt.Name, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}
	return added, nil
}

// NoteType returns the named note type.
func (s *Store) NoteType(ctx context.Context, name string) (types.NoteType, error) {
	var fieldsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT fields FROM note_types WHERE name = ?`, name).Scan(&fieldsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return types.NoteType{}, fmt.Errorf("note type %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return types.NoteType{}, fmt.Errorf("querying note type %q: %w", name, err)
	}
	nt := types.NoteType{Name: name}
	if err := json.Unmarshal([]byte(fieldsJSON), &nt.Fields); err != nil {
		return types.NoteType{}, fmt.Errorf("parsing fields of note type %q: %w", name, err)
	}
	return nt, nil
}

// NoteTypes returns every note type ordered by name.
func (s *Store) NoteTypes(ctx context.Context) ([]types.NoteType, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, fields FROM note_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying note types: %w", err)
	}
	defer rows.Close()

	var out []types.NoteType
	for rows.Next() {
		var nt types.NoteType
		var fieldsJSON string
		if err := rows.Scan(&nt.Name, &fieldsJSON); err != nil {
			return nil, fmt.Errorf("scanning note type: %w", err)
		}
		if err := json.Unmarshal([]byte(fieldsJSON), &nt.Fields); err != nil {
			return nil, fmt.Errorf("parsing fields of note type %q: %w", nt.Name, err)
		}
		out = append(out, nt)
	}
	return out, rows.Err()
}

// AddNote stores a new note. A zero n.ID lets the database assign one,
// which is written back to n. The note's fields must match its note type:
// a note without fields gets every field of the type, empty.
func (s *Store) AddNote(ctx context.Context, n *types.Note) error {
	nt, err := s.NoteType(ctx, n.NoteType)
	if err != nil {
		return err
	}
	if len(n.Fields) == 0 {
		n.Fields = nt.NewNote().Fields
	}
	if err := checkSchema(n, nt); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var id any
	if n.ID != 0 {
		id = n.ID
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO notes (id, note_type, modified) VALUES (?, ?, ?)`,
		id, n.NoteType, s.timestamp())
	if err != nil {
		return fmt.Errorf("inserting note: %w", err)
	}
	newID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading note id: %w", err)
	}
	if err := insertFields(ctx, tx, newID, n.Fields); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing note: %w", err)
	}
	n.ID = newID
	return nil
}

// GetNote loads a note by id. A missing note yields an error wrapping
// ErrNotFound.
func (s *Store) GetNote(ctx context.Context, id int64) (*types.Note, error) {
	n := &types.Note{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT note_type FROM notes WHERE id = ?`, id).Scan(&n.NoteType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("note %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying note %d: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, value FROM fields WHERE note_id = ? ORDER BY ord`, id)
	if err != nil {
		return nil, fmt.Errorf("querying fields of note %d: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var f types.Field
		if err := rows.Scan(&f.Name, &f.Value); err != nil {
			return nil, fmt.Errorf("scanning field: %w", err)
		}
		n.Fields = append(n.Fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading fields of note %d: %w", id, err)
	}
	return n, nil
}

// UpdateNote writes every field of n in one transaction. The note keeps its
// note type: n must name the stored type and match its schema.
func (s *Store) UpdateNote(ctx context.Context, n *types.Note) error {
	var stored string
	err := s.db.QueryRowContext(ctx, `SELECT note_type FROM notes WHERE id = ?`, n.ID).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("note %d: %w", n.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("querying note %d: %w", n.ID, err)
	}
	if n.NoteType != stored {
		return fmt.Errorf("note %d is of type %q, not %q", n.ID, stored, n.NoteType)
	}
	nt, err := s.NoteType(ctx, stored)
	if err != nil {
		return err
	}
	if err := checkSchema(n, nt); err != nil {
		return fmt.Errorf("note %d: %w", n.ID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE notes SET modified = ? WHERE id = ?`, s.timestamp(), n.ID)
	if err != nil {
		return fmt.Errorf("updating note %d: %w", n.ID, err)
	}
	if count, _ := res.RowsAffected(); count == 0 {
		return fmt.Errorf("note %d: %w", n.ID, ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM fields WHERE note_id = ?`, n.ID); err != nil {
		return fmt.Errorf("deleting fields of note %d: %w", n.ID, err)
	}
	if err := insertFields(ctx, tx, n.ID, n.Fields); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing note %d: %w", n.ID, err)
	}
	return nil
}

// Modified returns when the note was last written.
func (s *Store) Modified(ctx context.Context, id int64) (time.Time, error) {
	var ts string
	err := s.db.QueryRowContext(ctx, `SELECT modified FROM notes WHERE id = ?`, id).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, fmt.Errorf("note %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("querying note %d: %w", id, err)
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing modification time of note %d: %w", id, err)
	}
	return t, nil
}

// FindNotes returns, ordered by id, the notes with at least one field
// value containing substr. Matching is case-sensitive and literal.
func (s *Store) FindNotes(ctx context.Context, substr string) ([]int64, error) {
	return s.queryIDs(ctx,
		`SELECT DISTINCT note_id FROM fields WHERE instr(value, ?) > 0 ORDER BY note_id`, substr)
}

// NoteIDs returns every note id in ascending order.
func (s *Store) NoteIDs(ctx context.Context) ([]int64, error) {
	return s.queryIDs(ctx, `SELECT id FROM notes ORDER BY id`)
}

func (s *Store) queryIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying note ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning note id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func insertFields(ctx context.Context, tx *sql.Tx, noteID int64, fields []types.Field) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fields (note_id, ord, name, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, f := range fields {
		if _, err := stmt.ExecContext(ctx, noteID, i, f.Name, f.Value); err != nil {
			return fmt.Errorf("inserting field %q of note %d: %w", f.Name, noteID, err)
		}
	}
	return nil
}

func checkSchema(n *types.Note, nt types.NoteType) error {
	if len(n.Fields) != len(nt.Fields) {
		return fmt.Errorf("note has %d fields, note type %q has %d", len(n.Fields), nt.Name, len(nt.Fields))
	}
	for i, f := range n.Fields {
		if f.Name != nt.Fields[i] {
			return fmt.Errorf("field %d is %q, note type %q expects %q", i, f.Name, nt.Name, nt.Fields[i])
		}
	}
	return nil
}
