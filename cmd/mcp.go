package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/joescharf/kan/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for AI assistant integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets AI assistants query and update kan boards natively.
Configure with:

  {
    "mcpServers": {
      "kan": { "command": "kan", "args": ["mcp"] }
    }
  }

Available tools: kan_list_projects, kan_board, kan_list_tasks,
kan_create_task, kan_move_task, kan_sync`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}
		e, err := getEngine()
		if err != nil {
			return err
		}
		return mcp.NewServer(s, e).ServeStdio(context.Background())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
