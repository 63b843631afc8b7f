package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ka2n/x402search/api"
	"github.com/ka2n/x402search/mcp"
	"github.com/spf13/cobra"
)

var (
	// Root command
	rootCmd = &cobra.Command{
		Use:           "x402search",
		Short:         "Web search with AI license verdicts and x402 licensed fetch",
		SilenceErrors: true,
		SilenceUsage:  true,
		Long: `x402search searches the web and tells you, for every result, whether the
publisher licenses its content for AI use. It can fetch result pages, licensing
x402 paywalled pages through the ledger and reporting consumed tokens.

Run it as an MCP server for agents:
  x402search mcp

Or use it directly:
  x402search search --fetch "AI licensing news"
  x402search license https://example.com/article`,
	}

	// Version information
	Date = "unknown"

	// Version command
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Print detailed version information about x402search",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "x402search version %s\n", api.Version)
			if api.VersionCommit != "" {
				fmt.Fprintf(w, "  commit: %s\n", api.VersionCommit)
			}
			fmt.Fprintf(w, "  built:  %s\n", Date)
		},
	}
)

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(mcp.Command())
}

// Run executes the main CLI functionality. SIGINT and SIGTERM cancel the command context.
func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
