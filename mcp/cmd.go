package mcp

import (
	"os"

	"github.com/ka2n/x402search/api"
	"github.com/ka2n/x402search/api/config"
	"github.com/spf13/cobra"
)

// Command returns the MCP server command
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server on stdio",
		Args:  cobra.NoArgs,
		RunE:  runMCP,
	}
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	server := NewServer(api.New(cfg))
	return server.Run(cmd.Context(), os.Stdin, os.Stdout)
}
