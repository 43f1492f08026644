// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the fieldsync CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/fieldsync/internal/bidir"
	"github.com/pdiddy/fieldsync/internal/hooks"
	"github.com/pdiddy/fieldsync/internal/prompt"
	"github.com/pdiddy/fieldsync/internal/store"
	"github.com/pdiddy/fieldsync/internal/unidir"
	"github.com/pdiddy/fieldsync/internal/watch"
	"github.com/pdiddy/fieldsync/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// logger is configured in PersistentPreRunE.
var logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

// rootCmd is the base command for the fieldsync CLI.
var rootCmd = &cobra.Command{
	Use:   "fieldsync",
	Short: "Keep synced content in flashcard note fields up to date",
	Long: `fieldsync maintains sync markers embedded in the HTML fields of a
flashcard collection.

A unidirectional marker <span class="sync" note="ID"> shows content
extracted from another note and is refreshed from it. Bidirectional markers
<span class="sync" sid="S"> share their content with every other marker
carrying the same sid; diverging copies are settled by uploading the local
copy or downloading a peer's.

The collection lives in a SQLite database; use import and export to move
notes in and out as YAML or JSON.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		level, err := parseLevel(viper.GetString("log.level"))
		if err != nil {
			return err
		}
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./fieldsync.yaml or ~/.config/fieldsync/fieldsync.yaml)")
	rootCmd.PersistentFlags().String("db", "", "collection database (default: "+store.DefaultPath+")")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log per-marker decisions")

	viper.SetDefault("store.path", store.DefaultPath)
	viper.SetDefault("sync.conflict", string(types.ConflictPrompt))
	viper.SetDefault("watch.debounce", watch.DefaultDebounce)
	viper.SetDefault("log.level", "info")
	_ = viper.BindPFlag("store.path", rootCmd.PersistentFlags().Lookup("db"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("fieldsync")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "fieldsync"))
		}
	}

	viper.SetEnvPrefix("FIELDSYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig collects the effective settings from flags, environment and
// the config file.
func loadConfig() (types.Config, error) {
	policy, err := prompt.ParsePolicy(viper.GetString("sync.conflict"))
	if err != nil {
		return types.Config{}, err
	}
	return types.Config{
		Store: types.StoreConfig{Path: viper.GetString("store.path")},
		Sync: types.SyncConfig{
			Conflict:  policy,
			NoteTypes: viper.GetStringSlice("sync.note_types"),
		},
		Watch: types.WatchConfig{Debounce: viper.GetDuration("watch.debounce")},
		Log:   types.LogConfig{Level: viper.GetString("log.level")},
	}, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// openStore opens the configured collection.
func openStore(cfg types.Config) (*store.Store, error) {
	s, err := store.NewStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	logger.Debug("store opened", "path", s.Path())
	return s, nil
}

// newHooks builds both engines over s. Conflicts are settled per
// cfg.Sync.Conflict; the prompt talks to the command's terminal.
func newHooks(cmd *cobra.Command, s *store.Store, cfg types.Config) *hooks.Hooks {
	return &hooks.Hooks{
		Uni:      unidir.New(s, unidir.WithLogger(logger)),
		Bi:       bidir.New(s, bidir.WithLogger(logger)),
		Resolver: prompt.ForPolicy(cfg.Sync.Conflict, cmd.InOrStdin(), cmd.OutOrStdout()),
		Options:  unidir.Options{NoteTypes: cfg.Sync.NoteTypes},
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
