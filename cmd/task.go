package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joescharf/kan/internal/models"
	"github.com/joescharf/kan/internal/output"
)

var (
	taskBody   string
	taskStatus string
	taskTitle  string
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks on a project's board",
	Long:  "Add, move, edit, and list tasks. Every task is a GitHub issue in the project's repository.",
}

var taskAddCmd = &cobra.Command{
	Use:   "add <owner/repo> <title>",
	Short: "Add a task to the board",
	Long:  "Create a GitHub issue in the project's repository and place it on the board.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskAddRun(args[0], args[1])
	},
}

var taskMoveCmd = &cobra.Command{
	Use:   "move <owner/repo> <issue-number> <status>",
	Short: "Move a task to another column",
	Long: `Move a task to another column: backlog, todo, in_progress, blocked,
review, or done. Moving into done closes the issue; moving out reopens it.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid issue number: %s", args[1])
		}
		return taskMoveRun(args[0], number, args[2])
	},
}

var taskEditCmd = &cobra.Command{
	Use:   "edit <owner/repo> <issue-number>",
	Short: "Edit a task's title or body",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid issue number: %s", args[1])
		}
		return taskEditRun(args[0], number)
	},
}

var taskListCmd = &cobra.Command{
	Use:     "list <owner/repo>",
	Aliases: []string{"ls"},
	Short:   "List a project's tasks",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskListRun(args[0])
	},
}

func init() {
	taskAddCmd.Flags().StringVar(&taskBody, "body", "", "Task body")
	taskAddCmd.Flags().StringVar(&taskStatus, "status", "todo", "Initial column")

	taskEditCmd.Flags().StringVar(&taskTitle, "title", "", "New title")
	taskEditCmd.Flags().StringVar(&taskBody, "body", "", "New body")

	taskListCmd.Flags().StringVar(&taskStatus, "status", "", "Filter by column")

	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskMoveCmd)
	taskCmd.AddCommand(taskEditCmd)
	taskCmd.AddCommand(taskListCmd)
	rootCmd.AddCommand(taskCmd)
}

func taskAddRun(ref, title string) error {
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

	task, err := e.CreateTask(ctx, p.ID, title, taskBody, models.ParseStatus(taskStatus))
	if err != nil {
		return fmt.Errorf("add task: %w", err)
	}

	ui.Success("Added task #%d: %s [%s]", task.IssueNumber, task.Title, output.StatusColor(task.Status))
	ui.VerboseLog("URL: %s", task.URL)
	return nil
}

func taskMoveRun(ref string, number int, status string) error {
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

	task, err := e.MoveTask(ctx, p.ID, number, models.ParseStatus(status))
	if err != nil {
		return fmt.Errorf("move task: %w", err)
	}

	ui.Success("Moved #%d to %s", task.IssueNumber, output.StatusColor(task.Status))
	return nil
}

func taskEditRun(ref string, number int) error {
	if taskTitle == "" && taskBody == "" {
		return fmt.Errorf("nothing to change (use --title and/or --body)")
	}

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

	// Fill in whichever field was not given from the cached task, since the
	// remote update replaces both.
	tasks, err := s.ListTasks(ctx, p.ID)
	if err != nil {
		return err
	}
	title, body := taskTitle, taskBody
	for _, t := range tasks {
		if t.IssueNumber == number {
			if title == "" {
				title = t.Title
			}
			if body == "" {
				body = t.Body
			}
			break
		}
	}

	task, err := e.EditTask(ctx, p.ID, number, title, body)
	if err != nil {
		return fmt.Errorf("edit task: %w", err)
	}

	ui.Success("Updated #%d: %s", task.IssueNumber, task.Title)
	return nil
}

func taskListRun(ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	ctx := context.Background()
	p, err := resolveProject(ctx, s, ref)
	if err != nil {
		return err
	}

	tasks, err := s.ListTasks(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	if taskStatus != "" {
		want := models.ParseStatus(taskStatus)
		filtered := tasks[:0]
		for _, t := range tasks {
			if t.Status == want {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}

	if len(tasks) == 0 {
		ui.Info("No tasks.")
		return nil
	}

	table := ui.Table([]string{"#", "TITLE", "STATUS", "LABELS"})
	for _, t := range tasks {
		_ = table.Append([]string{
			fmt.Sprintf("%d", t.IssueNumber),
			truncate(t.Title, 60),
			output.StatusColor(t.Status),
			joinLabels(t.Labels),
		})
	}
	_ = table.Render()
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func joinLabels(labels []string) string {
	out := ""
	for i, l := range labels {
		if i > 0 {
			out += ", "
		}
		out += l
	}
	return out
}
