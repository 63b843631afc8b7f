package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ka2n/x402search/api"
	"github.com/ka2n/x402search/api/config"
	"github.com/ka2n/x402search/api/ledger"
	"github.com/mattn/go-isatty"
	"github.com/morikuni/failure/v2"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var (
	fetchFlag           bool
	numFlag             int
	maxCharsFlag        int
	estimatedTokensFlag int
	concurrencyFlag     int
	markdownFlag        bool
	noPagerFlag         bool
	includeDomainsFlag  []string
	excludeDomainsFlag  []string

	stageFlag        = newEnumFlag("stage", string(ledger.StageInference), "inference", "embedding", "tuning", "training")
	distributionFlag = newEnumFlag("distribution", string(ledger.DistributionPrivate), "private", "public")
	typeFlag         = newEnumFlag("type", "auto", "auto", "neural", "keyword", "fast")
	formatFlag       = newEnumFlag("format", "auto", "auto", "json", "markdown")

	searchCmd = &cobra.Command{
		Use:   "search <query>",
		Short: "Run one search and print the results with license verdicts",
		Long: `Run one search. With --fetch every result page is fetched; x402 paywalls are
licensed through the ledger and one usage report is sent for the call.

Output is a paged markdown report on a terminal and JSON otherwise (--format).`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return failure.New(NoQuerySpecified, failure.Message("No query specified"))
			}
			return nil
		},
		RunE: runSearch,
	}
)

func init() {
	f := searchCmd.Flags()
	f.BoolVarP(&fetchFlag, "fetch", "f", false, "Fetch result pages, licensing them when required")
	f.IntVarP(&numFlag, "num", "n", 0, "Number of results (default 5)")
	f.IntVar(&maxCharsFlag, "max-chars", 0, "Maximum characters of fetched content per result")
	f.IntVar(&estimatedTokensFlag, "estimated-tokens", 0, "Token estimate declared when acquiring a license")
	f.IntVar(&concurrencyFlag, "concurrency", 0, "Parallel fetches (overrides FETCH_CONCURRENCY)")
	f.BoolVar(&markdownFlag, "markdown", false, "Convert fetched HTML to markdown (overrides FETCH_MARKDOWN)")
	f.BoolVar(&noPagerFlag, "no-pager", false, "Print the report instead of paging it")
	f.StringSliceVar(&includeDomainsFlag, "include-domain", nil, "Only return results from this domain (repeatable)")
	f.StringSliceVar(&excludeDomainsFlag, "exclude-domain", nil, "Never return results from this domain (repeatable)")
	f.Var(stageFlag, "stage", "Intended use of fetched content")
	f.Var(distributionFlag, "distribution", "Audience of fetched content")
	f.Var(typeFlag, "type", "Search type")
	f.Var(formatFlag, "format", "Output format: auto, json or markdown")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.FetchConcurrency = concurrencyFlag
	}
	if cmd.Flags().Changed("markdown") {
		cfg.FetchMarkdown = markdownFlag
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	resp, err := api.New(cfg).Search(cmd.Context(), api.Query{
		Query:           strings.Join(args, " "),
		NumResults:      numFlag,
		Type:            typeFlag.Value,
		IncludeDomains:  lo.Compact(includeDomainsFlag),
		ExcludeDomains:  lo.Compact(excludeDomainsFlag),
		Fetch:           fetchFlag,
		Stage:           ledger.Stage(stageFlag.Value),
		Distribution:    ledger.Distribution(distributionFlag.Value),
		EstimatedTokens: estimatedTokensFlag,
		MaxChars:        maxCharsFlag,
	})
	if err != nil {
		return err
	}

	return writeResponse(cmd.OutOrStdout(), resp, formatFlag.Value, isTerminal(os.Stdout), !noPagerFlag)
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// writeResponse prints resp. "auto" means a markdown report on a terminal and JSON elsewhere.
// Markdown is rendered with glamour only on a terminal, and paged when paging is allowed.
func writeResponse(w io.Writer, resp *api.Response, format string, tty, page bool) error {
	if format == "auto" {
		format = "json"
		if tty {
			format = "markdown"
		}
	}

	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return failure.Wrap(enc.Encode(resp))
	}

	sections := buildReport(resp)
	if !tty {
		for _, s := range sections {
			if _, err := fmt.Fprintln(w, s.Markdown); err != nil {
				return failure.Wrap(err)
			}
		}
		return nil
	}

	rendered, err := renderSections(sections)
	if err != nil {
		return err
	}
	if page {
		return RunPager(rendered, lo.Map(sections, func(s section, _ int) string { return s.URL }))
	}
	_, err = fmt.Fprintln(w, strings.Join(rendered, "\n"))
	return failure.Wrap(err)
}
