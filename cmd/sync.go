package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/kan/internal/output"
	kansync "github.com/joescharf/kan/internal/sync"
)

var (
	syncFull  bool
	syncWatch bool
)

var syncCmd = &cobra.Command{
	Use:   "sync [owner/repo]",
	Short: "Sync the local cache with GitHub",
	Long: `Pull changed issues from GitHub into the local cache. Syncs one
project when given, otherwise all projects.

A normal sync is incremental and never deletes local tasks. Use --full
to fetch every issue and prune tasks whose issue was deleted remotely.
Use --watch to keep syncing on the configured interval.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncWatch {
			return syncWatchRun()
		}
		if len(args) > 0 {
			return syncOneRun(args[0])
		}
		return syncAllRun()
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncFull, "full", false, "Full sync: fetch all issues and prune deleted ones")
	syncCmd.Flags().BoolVar(&syncWatch, "watch", false, "Keep syncing on the configured interval")
	rootCmd.AddCommand(syncCmd)
}

func syncOneRun(ref string) error {
	e, err := getEngine()
	if err != nil {
		return err
	}
	s, err := getStore()
	if err != nil {
		return err
	}

	ctx := context.Background()
	p, err := resolveProject(ctx, s, ref)
	if err != nil {
		return err
	}

	if syncFull {
		err = e.FullPull(ctx, p.ID)
	} else {
		err = e.Pull(ctx, p.ID)
	}
	if err != nil {
		return fmt.Errorf("sync %s: %w", p.Repo, err)
	}

	ui.Success("Synced %s", output.Cyan(p.Repo))
	return nil
}

func syncAllRun() error {
	e, err := getEngine()
	if err != nil {
		return err
	}

	results, err := e.PullAll(context.Background())
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
			ui.Error("%s: %s", r.Repo, r.Error)
		} else {
			ui.Success("Synced %s", output.Cyan(r.Repo))
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d projects failed to sync", failed, len(results))
	}
	return nil
}

func syncWatchRun() error {
	e, err := getEngine()
	if err != nil {
		return err
	}

	interval := time.Duration(viper.GetInt("sync.interval_minutes")) * time.Minute
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui.Info("Syncing every %s. Press Ctrl-C to stop.", interval)
	kansync.NewRunner(e, interval, log).Run(ctx)
	return nil
}
