package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/ka2n/x402search/api/config"
	"github.com/ka2n/x402search/api/failcode"
	"github.com/morikuni/failure/v2"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "List the environment variables x402search reads",
	Long:  "Display every environment variable with its default and whether it is currently set",
	Args:  cobra.NoArgs,
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	params, err := env.GetFieldParams(&config.Config{})
	if err != nil {
		return failure.Wrap(err)
	}

	w := cmd.OutOrStdout()
	if cfg, err := config.Load(); err == nil {
		fmt.Fprintln(w, ledgerStatus(cfg))
	} else {
		fmt.Fprintf(w, "Configuration: %s\n", failcode.Describe(err))
	}
	fmt.Fprintln(w, "Environment:")
	for _, p := range params {
		current := "(unset)"
		if v, ok := os.LookupEnv(p.Key); ok {
			current = maskSecret(p.Key, v)
		}
		def := p.DefaultValue
		if !p.HasDefaultValue {
			def = "-"
		}
		fmt.Fprintf(w, "  %-26s default=%-34s current=%s\n", p.Key, def, current)
	}
	return nil
}

// ledgerStatus says which ledger operations the configuration allows
func ledgerStatus(cfg config.Config) string {
	if cfg.HasLedgerCredential() {
		return "Ledger: authenticated (license acquisition and usage reporting enabled)"
	}
	return "Ledger: anonymous (license lookups only, set LEDGER_API_KEY to acquire licenses)"
}

// maskSecret hides credential values
func maskSecret(key, value string) string {
	if !strings.HasSuffix(key, "_KEY") || value == "" {
		return value
	}
	if len(value) <= 4 {
		return "****"
	}
	return value[:2] + strings.Repeat("*", len(value)-4) + value[len(value)-2:]
}
