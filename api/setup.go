package api

import (
	"github.com/ka2n/x402search/api/cache"
	"github.com/ka2n/x402search/api/config"
	"github.com/ka2n/x402search/api/fetch"
	"github.com/ka2n/x402search/api/ledger"
	"github.com/ka2n/x402search/api/search"
	"github.com/ka2n/x402search/log"
)

// New wires a Searcher from configuration. The verdict cache lives as long as the Searcher.
func New(cfg config.Config) *Searcher {
	ledgerClient := ledger.NewClient(cfg.LedgerURL, cfg.LedgerAPIKey)
	if !cfg.HasLedgerCredential() {
		log.Info("Ledger credential not set, paid fetches and usage reporting are disabled")
	}

	var store cache.Store[ledger.Verdict] = cache.Nop[ledger.Verdict]{}
	if cfg.CacheEnabled {
		store = cache.NewMemory[ledger.Verdict]()
	}

	directory := ledger.NewDirectory(ledgerClient, ledger.DirectoryOptions{
		Tracking: cfg.TrackingEnabled,
		Cache:    store,
		TTL:      cfg.CacheTTL,
		Timeout:  cfg.LicenseTimeout,
	})

	engine := fetch.NewEngine(nil, ledger.NewAcquirer(ledgerClient, cfg.AcquireTimeout), fetch.Config{
		Timeout:   cfg.FetchTimeout,
		MaxChars:  cfg.FetchMaxChars,
		Markdown:  cfg.FetchMarkdown,
		UserAgent: cfg.UserAgent,
	})

	return NewSearcher(Deps{
		Search:           search.NewClient(cfg.SearchURL, cfg.SearchAPIKey, cfg.SearchTimeout),
		Licenses:         directory,
		Fetcher:          engine,
		Usage:            ledger.NewUsageRecorder(ledgerClient, cfg.UsageTimeout),
		FetchConcurrency: cfg.FetchConcurrency,
	})
}
