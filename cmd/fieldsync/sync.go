// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/fieldsync/pkg/types"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh sync markers",
	Long: `Sync runs the sync engines the way the editor hooks do.

  all     refresh every unidirectional marker in the collection
  note    run both engines over every field of one note
  field   run both engines over one field, as when the field loses focus`,
}

var syncAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Refresh every unidirectional marker in the collection",
	Args:  cobra.NoArgs,
	RunE:  runSyncAll,
}

var syncNoteCmd = &cobra.Command{
	Use:   "note <note-id>",
	Short: "Run both engines over every field of a note",
	Args:  cobra.ExactArgs(1),
	RunE:  runSyncNote,
}

var syncFieldCmd = &cobra.Command{
	Use:   "field <note-id> <field>",
	Short: "Run both engines over one field, given by index or name",
	Args:  cobra.ExactArgs(2),
	RunE:  runSyncField,
}

func init() {
	syncCmd.PersistentFlags().String("conflict", "", "settle diverging shared spans: prompt, upload or download")
	syncAllCmd.Flags().StringSlice("type", nil, "only sync notes whose type matches these glob patterns")
	_ = viper.BindPFlag("sync.conflict", syncCmd.PersistentFlags().Lookup("conflict"))
	_ = viper.BindPFlag("sync.note_types", syncAllCmd.Flags().Lookup("type"))

	syncCmd.AddCommand(syncAllCmd)
	syncCmd.AddCommand(syncNoteCmd)
	syncCmd.AddCommand(syncFieldCmd)
	rootCmd.AddCommand(syncCmd)
}

func runSyncAll(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	summary, err := newHooks(cmd, s, cfg).SyncWillStart(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d notes: %d changed, %d skipped, %d failed\n",
		summary.Scanned, summary.Changed, summary.Skipped, summary.Failed)
	return nil
}

func runSyncNote(cmd *cobra.Command, args []string) error {
	id, err := parseNoteID(args[0])
	if err != nil {
		return err
	}
	return withNote(cmd, id, func(ctx context.Context, h hooksRunner, n *types.Note) (bool, error) {
		return h.SyncNote(ctx, n)
	})
}

func runSyncField(cmd *cobra.Command, args []string) error {
	id, err := parseNoteID(args[0])
	if err != nil {
		return err
	}
	return withNote(cmd, id, func(ctx context.Context, h hooksRunner, n *types.Note) (bool, error) {
		idx, err := strconv.Atoi(args[1])
		if err != nil {
			idx = n.FieldIndex(args[1])
		}
		if idx < 0 || idx >= len(n.Fields) {
			return false, fmt.Errorf("note %d has no field %q", n.ID, args[1])
		}
		return h.FieldUnfocused(ctx, false, n, idx)
	})
}

// hooksRunner is the part of hooks.Hooks the single-note commands use.
type hooksRunner interface {
	SyncNote(ctx context.Context, note *types.Note) (bool, error)
	FieldUnfocused(ctx context.Context, changed bool, note *types.Note, fieldIndex int) (bool, error)
}

// withNote loads note id, runs fn over it and reports the outcome.
func withNote(cmd *cobra.Command, id int64, fn func(context.Context, hooksRunner, *types.Note) (bool, error)) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()
	n, err := s.GetNote(ctx, id)
	if err != nil {
		return fmt.Errorf("note %d: %w", id, err)
	}

	changed, err := fn(ctx, newHooks(cmd, s, cfg), n)
	if err != nil {
		return err
	}
	if changed {
		fmt.Fprintf(cmd.OutOrStdout(), "Note %d updated\n", id)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Note %d unchanged\n", id)
	}
	return nil
}
