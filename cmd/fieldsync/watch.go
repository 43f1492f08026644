// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/fieldsync/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Refresh unidirectional markers whenever the collection changes",
	Long: `Watch runs a full unidirectional sync at start and again each time the
database file is written, after it has been quiet for the debounce
interval. Stop it with Ctrl-C.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().Duration("debounce", watch.DefaultDebounce, "quiet period before a sync runs")
	_ = viper.BindPFlag("watch.debounce", watchCmd.Flags().Lookup("debounce"))
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	h := newHooks(cmd, s, cfg)
	syncAll := func(ctx context.Context) error {
		summary, err := h.SyncWillStart(ctx)
		if err != nil {
			return err
		}
		if summary.Changed > 0 || summary.Failed > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "Synced: %d changed, %d failed of %d scanned\n",
				summary.Changed, summary.Failed, summary.Scanned)
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := watch.New(s.Path(), syncAll, watch.WithDebounce(cfg.Watch.Debounce), watch.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := syncAll(ctx); err != nil {
		logger.Error("initial sync failed", "error", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s\n", s.Path())
	return w.Run(ctx)
}
