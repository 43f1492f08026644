// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/fieldsync/internal/fetch"
	"github.com/pdiddy/fieldsync/internal/store"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the collection database and register the standard note types",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import notes from a YAML collection file (- for stdin)",
	Long: `Import reads a collection document with note_types and notes. Note types
that already exist are kept. Notes whose id is already stored are
overwritten; the rest are added.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the whole collection as YAML or JSON",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

var showCmd = &cobra.Command{
	Use:   "show <note-id>",
	Short: "Print the fields of one note",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	exportCmd.Flags().StringP("format", "f", "yaml", "output format: yaml or json")
	exportCmd.Flags().StringP("output", "o", "", "write to file instead of stdout")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(showCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	added, err := s.EnsureNoteTypes(context.Background(), fetch.StandardNoteTypes())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s (%d note types added)\n", s.Path(), added)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var r io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening %s: %w", args[0], err)
		}
		defer f.Close()
		r = f
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	summary, err := s.ImportYAML(context.Background(), r)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d note types, %d notes added, %d updated\n",
		summary.NoteTypes, summary.Added, summary.Updated)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")
	switch strings.ToLower(format) {
	case "yaml", "yml", "json":
	default:
		return fmt.Errorf("unsupported format %q (want yaml or json)", format)
	}

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
	if output == "" {
		return writeExport(ctx, s, cmd.OutOrStdout(), format)
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating %s: %w", output, err)
	}
	if err := writeExport(ctx, s, f, format); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", output, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported collection to %s\n", output)
	return nil
}

// writeExport writes the collection as YAML, or as JSON for any other
// format already validated by runExport.
func writeExport(ctx context.Context, s *store.Store, w io.Writer, format string) error {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		return s.ExportYAML(ctx, w)
	default:
		return s.ExportJSON(ctx, w)
	}
}

func runShow(cmd *cobra.Command, args []string) error {
	id, err := parseNoteID(args[0])
	if err != nil {
		return err
	}
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
	modified, err := s.Modified(ctx, id)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Note %d (%s), modified %s\n", n.ID, n.NoteType, modified.Format("2006-01-02 15:04:05"))
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for i, f := range n.Fields {
		fmt.Fprintf(w, "[%d] %s\n%s\n\n", i, f.Name, f.Value)
	}
	return nil
}

func parseNoteID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid note id %q", s)
	}
	return id, nil
}
