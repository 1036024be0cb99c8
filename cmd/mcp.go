package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/joescharf/issuetracker/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets MCP clients list, create, update and delete issues directly.
Configure a client with:

  {
    "mcpServers": {
      "issuetracker": { "command": "issuetracker", "args": ["mcp"] }
    }
  }

Available tools: issues_list, issues_create, issues_update, issues_delete

The server owns its own store (store.driver); use the sqlite driver with a
file db_path to share issues with 'issuetracker serve'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	return mcp.NewServer(newService(s), buildVersion).ServeStdio(ctx)
}
