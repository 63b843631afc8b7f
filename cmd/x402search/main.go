// Command x402search searches the web with AI license verdicts and serves the search over MCP.
package main

import (
	"fmt"
	"os"

	"github.com/ka2n/x402search/api/failcode"
	"github.com/ka2n/x402search/cli"
	"github.com/ka2n/x402search/log"
)

func main() {
	if err := cli.Run(); err != nil {
		log.Debug("Command failed", "error", err.Error(), "code", failcode.CodeOf(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", failcode.Describe(err))
		os.Exit(1)
	}
}
