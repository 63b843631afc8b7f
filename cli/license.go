package cli

import (
	"encoding/json"

	"github.com/ka2n/x402search/api"
	"github.com/ka2n/x402search/api/config"
	"github.com/morikuni/failure/v2"
	"github.com/spf13/cobra"
)

var licenseCmd = &cobra.Command{
	Use:   "license <url>",
	Short: "Look up the AI license verdict of a URL",
	Long: `Look up the license directory for a URL and print the verdict as JSON.
Lookups never fail: an unreachable ledger yields an "unknown" verdict with an error.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return failure.New(InvalidArguments, failure.Messagef("accepts 1 url, but received %d", len(args)))
		}
		return nil
	},
	RunE: runLicense,
}

func init() {
	rootCmd.AddCommand(licenseCmd)
}

func runLicense(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	verdict := api.New(cfg).CheckLicense(cmd.Context(), args[0])

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return failure.Wrap(enc.Encode(verdict))
}
