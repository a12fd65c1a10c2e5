package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/kan/internal/models"
	"github.com/joescharf/kan/internal/output"
)

var (
	projectDescription string
	projectPrivate     bool
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage tracked projects",
	Long:  "Link, create, list, and remove GitHub-backed kanban projects.",
}

var projectLinkCmd = &cobra.Command{
	Use:   "link <owner/repo>",
	Short: "Link an existing GitHub repository as a project",
	Long:  "Link an existing GitHub repository. Accepts owner/name or a full repository URL.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectLinkRun(args[0])
	},
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new GitHub repository and link it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectCreateRun(args[0])
	},
}

var projectListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tracked projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectListRun()
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show <owner/repo>",
	Short: "Show project details and task counts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectShowRun(args[0])
	},
}

var projectRemoveCmd = &cobra.Command{
	Use:     "remove <owner/repo>",
	Aliases: []string{"rm"},
	Short:   "Stop tracking a project",
	Long:    "Remove a project and its cached tasks. The GitHub repository and its issues are untouched.",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectRemoveRun(args[0])
	},
}

func init() {
	projectCreateCmd.Flags().StringVar(&projectDescription, "description", "", "Repository description")
	projectCreateCmd.Flags().BoolVar(&projectPrivate, "private", false, "Create a private repository")

	projectCmd.AddCommand(projectLinkCmd)
	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectShowCmd)
	projectCmd.AddCommand(projectRemoveCmd)
	rootCmd.AddCommand(projectCmd)
}

func projectLinkRun(repoRef string) error {
	e, err := getEngine()
	if err != nil {
		return err
	}

	ctx := context.Background()
	p, err := e.LinkProject(ctx, repoRef)
	if err != nil {
		return fmt.Errorf("link project: %w", err)
	}

	ui.Success("Linked project: %s", output.Cyan(p.Repo))
	if p.Description != "" {
		ui.VerboseLog("Description: %s", p.Description)
	}

	// Seed the board right away.
	if err := e.Pull(ctx, p.ID); err != nil {
		ui.Warning("Initial sync failed: %v", err)
		return nil
	}
	ui.Info("Synced issues from %s", p.Repo)
	return nil
}

func projectCreateRun(name string) error {
	e, err := getEngine()
	if err != nil {
		return err
	}

	p, err := e.CreateProject(context.Background(), name, projectDescription, projectPrivate)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}

	ui.Success("Created project: %s", output.Cyan(p.Repo))
	return nil
}

func projectListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}

	projects, err := s.ListProjects(context.Background())
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}

	if len(projects) == 0 {
		ui.Info("No projects tracked. Use 'kan project link <owner/repo>' to add one.")
		return nil
	}

	ctx := context.Background()
	table := ui.Table([]string{"REPO", "DESCRIPTION", "OPEN", "DONE", "LAST SYNCED"})
	for _, p := range projects {
		lastSynced := "never"
		if p.LastSynced != nil {
			lastSynced = p.LastSynced.Local().Format("2006-01-02 15:04")
		}
		open, done := 0, 0
		if counts, err := s.CountTasksByStatus(ctx, p.ID); err == nil {
			for st, n := range counts {
				if st == models.StatusDone {
					done += n
				} else {
					open += n
				}
			}
		}
		_ = table.Append([]string{
			output.Cyan(p.Repo),
			p.Description,
			fmt.Sprintf("%d", open),
			fmt.Sprintf("%d", done),
			lastSynced,
		})
	}
	_ = table.Render()
	return nil
}

func projectShowRun(ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	ctx := context.Background()
	p, err := resolveProject(ctx, s, ref)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "Repo:        %s\n", output.Cyan(p.Repo))
	if p.Description != "" {
		fmt.Fprintf(ui.Out, "Description: %s\n", p.Description)
	}
	fmt.Fprintf(ui.Out, "Created:     %s\n", p.CreatedAt.Local().Format("2006-01-02 15:04"))
	lastSynced := "never"
	if p.LastSynced != nil {
		lastSynced = p.LastSynced.Local().Format("2006-01-02 15:04")
	}
	fmt.Fprintf(ui.Out, "Last synced: %s\n", lastSynced)

	counts, err := s.CountTasksByStatus(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("count tasks: %w", err)
	}
	fmt.Fprintln(ui.Out)
	for _, st := range models.AllStatuses() {
		fmt.Fprintf(ui.Out, "  %-24s %d\n", output.StatusColor(st), counts[st])
	}
	return nil
}

func projectRemoveRun(ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	ctx := context.Background()
	p, err := resolveProject(ctx, s, ref)
	if err != nil {
		return err
	}

	if err := s.DeleteProject(ctx, p.ID); err != nil {
		return fmt.Errorf("remove project: %w", err)
	}

	ui.Success("Removed project: %s", output.Cyan(p.Repo))
	return nil
}
