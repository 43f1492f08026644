// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// StoreConfig holds settings for the SQLite note store.
type StoreConfig struct {
	// Path is the database file (default "collection.db").
	Path string `json:"path" yaml:"path"`
}

// ConflictPolicy selects how diverging bidirectional markers are settled
// when no interactive answer is wanted.
type ConflictPolicy string

const (
	ConflictPrompt   ConflictPolicy = "prompt"
	ConflictUpload   ConflictPolicy = "upload"
	ConflictDownload ConflictPolicy = "download"
)

// SyncConfig holds settings for the sync engines.
type SyncConfig struct {
	// Conflict is the default answer for diverging peer groups: prompt,
	// upload or download.
	Conflict ConflictPolicy `json:"conflict" yaml:"conflict"`

	// NoteTypes restricts bulk sync to notes whose type matches one of
	// these glob patterns. Empty means every note.
	NoteTypes []string `json:"note_types,omitempty" yaml:"note_types,omitempty"`
}

// WatchConfig holds settings for the store watcher.
type WatchConfig struct {
	// Debounce is the quiet period after the last store write before a
	// bulk sync runs (default 500ms).
	Debounce time.Duration `json:"debounce" yaml:"debounce"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error (default info).
	Level string `json:"level" yaml:"level"`
}

// Config groups every setting the CLI reads from flags, environment and
// the config file.
type Config struct {
	Store StoreConfig `json:"store" yaml:"store"`
	Sync  SyncConfig  `json:"sync" yaml:"sync"`
	Watch WatchConfig `json:"watch" yaml:"watch"`
	Log   LogConfig   `json:"log" yaml:"log"`
}
