package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/kan/internal/board"
	"github.com/joescharf/kan/internal/output"
)

var boardSync bool

var boardCmd = &cobra.Command{
	Use:   "board <owner/repo>",
	Short: "Show a project's kanban board",
	Long:  "Show the cached board, one column per status. Use --sync to pull from GitHub first.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return boardRun(args[0])
	},
}

func init() {
	boardCmd.Flags().BoolVar(&boardSync, "sync", false, "Pull from GitHub before showing the board")
	rootCmd.AddCommand(boardCmd)
}

func boardRun(ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	ctx := context.Background()
	p, err := resolveProject(ctx, s, ref)
	if err != nil {
		return err
	}

	if boardSync {
		e, err := getEngine()
		if err != nil {
			return err
		}
		if err := e.Pull(ctx, p.ID); err != nil {
			ui.Warning("Sync failed, showing cached board: %v", err)
		}
	}

	snap, err := board.New(s).Snapshot(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("build board: %w", err)
	}

	ui.Info("%s (%d tasks)", output.Cyan(p.Repo), snap.Total)
	fmt.Fprintln(ui.Out)

	for _, col := range snap.Columns {
		fmt.Fprintf(ui.Out, "%s (%d)\n", output.StatusColor(col.Status), col.Count)
		for _, t := range col.Tasks {
			fmt.Fprintf(ui.Out, "  #%-5d %s\n", t.IssueNumber, truncate(t.Title, 70))
		}
		fmt.Fprintln(ui.Out)
	}

	if p.LastSynced != nil {
		ui.VerboseLog("Last synced: %s", p.LastSynced.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}
