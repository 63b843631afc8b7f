package api

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/ka2n/x402search/api/failcode"
	"github.com/ka2n/x402search/api/fetch"
	"github.com/ka2n/x402search/api/ledger"
	"github.com/ka2n/x402search/api/search"
	"github.com/ka2n/x402search/log"
	"github.com/morikuni/failure/v2"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

var validate = validator.New()

// SearchClient runs upstream searches
type SearchClient interface {
	Search(ctx context.Context, req search.Request) (*search.Response, error)
}

// LicenseChecker returns a verdict per URL and never fails
type LicenseChecker interface {
	CheckLicense(ctx context.Context, url string) ledger.Verdict
}

// Fetcher produces one fetch result per URL and never fails
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts fetch.Options) fetch.Result
}

// UsageLogger reports a usage batch once
type UsageLogger interface {
	LogUsage(ctx context.Context, batch ledger.UsageBatch) error
}

// Deps are the collaborators of a Searcher
type Deps struct {
	Search   SearchClient
	Licenses LicenseChecker
	Fetcher  Fetcher
	Usage    UsageLogger
	// FetchConcurrency caps parallel licensed fetches. Values below 1 mean 1.
	FetchConcurrency int
	// NewGenerationID defaults to a random UUID
	NewGenerationID func() string
}

// Searcher orchestrates one search request: upstream search, license checks,
// licensed fetches and the usage report.
type Searcher struct {
	search           SearchClient
	licenses         LicenseChecker
	fetcher          Fetcher
	usage            UsageLogger
	fetchConcurrency int
	newGenerationID  func() string
}

// NewSearcher creates a Searcher
func NewSearcher(deps Deps) *Searcher {
	s := &Searcher{
		search:           deps.Search,
		licenses:         deps.Licenses,
		fetcher:          deps.Fetcher,
		usage:            deps.Usage,
		fetchConcurrency: max(deps.FetchConcurrency, 1),
		newGenerationID:  deps.NewGenerationID,
	}
	if s.newGenerationID == nil {
		s.newGenerationID = uuid.NewString
	}
	return s
}

// Query is a search request as accepted by the tool surface
type Query struct {
	Query           string              `json:"query" validate:"required"`
	NumResults      int                 `json:"num_results" validate:"omitempty,min=1,max=100"`
	Type            string              `json:"type" validate:"omitempty,oneof=auto neural keyword fast"`
	IncludeDomains  []string            `json:"include_domains" validate:"omitempty,dive,required"`
	ExcludeDomains  []string            `json:"exclude_domains" validate:"omitempty,dive,required"`
	Fetch           bool                `json:"fetch"`
	Stage           ledger.Stage        `json:"stage" validate:"omitempty,oneof=inference embedding tuning training"`
	Distribution    ledger.Distribution `json:"distribution" validate:"omitempty,oneof=private public"`
	EstimatedTokens int                 `json:"estimated_tokens" validate:"omitempty,min=1"`
	MaxChars        int                 `json:"max_chars" validate:"omitempty,min=1"`
}

// Validate checks field constraints
func (q Query) Validate(ctx context.Context) error {
	if err := validate.StructCtx(ctx, q); err != nil {
		return failure.New(failcode.InvalidArguments,
			failure.Messagef("Invalid search arguments: %v", err),
		)
	}
	return nil
}

// CheckLicense exposes the license directory for a single URL
func (s *Searcher) CheckLicense(ctx context.Context, url string) ledger.Verdict {
	return s.licenses.CheckLicense(ctx, url)
}

// Search runs the whole request. Only argument and upstream search failures
// are returned as errors; licensing, fetch and usage problems are reported in
// the response.
func (s *Searcher) Search(ctx context.Context, q Query) (*Response, error) {
	if err := q.Validate(ctx); err != nil {
		return nil, err
	}

	upstream, err := s.search.Search(ctx, search.Request{
		Query:          q.Query,
		NumResults:     q.NumResults,
		Type:           q.Type,
		IncludeDomains: q.IncludeDomains,
		ExcludeDomains: q.ExcludeDomains,
		Text:           true,
	})
	if err != nil {
		return nil, failure.Wrap(err)
	}

	urls := lo.Uniq(lo.FilterMap(upstream.Results, func(r search.Result, _ int) (string, bool) {
		return r.URL, r.URL != ""
	}))

	verdicts := s.checkLicenses(ctx, urls)

	resp := &Response{
		Query:     q.Query,
		RequestID: upstream.RequestID,
	}

	var fetched map[string]fetch.Result
	if q.Fetch {
		fetched = s.fetchAll(ctx, urls, fetch.Options{
			Stage:           q.Stage,
			Distribution:    q.Distribution,
			EstimatedTokens: q.EstimatedTokens,
			MaxChars:        q.MaxChars,
		})
		resp.UsageLog = s.logUsage(ctx, urls, fetched)
	}

	resp.Results = lo.Map(upstream.Results, func(r search.Result, _ int) Item {
		item := Item{Result: r}
		if v, ok := verdicts[r.URL]; ok {
			item.License = v
		} else {
			item.License = ledger.UnknownVerdict(r.URL, "result has no url")
		}
		if res, ok := fetched[r.URL]; ok {
			item.Fetched = &res
		}
		return item
	})

	return resp, nil
}

// checkLicenses runs one lookup per URL concurrently. Completion order is
// arbitrary; results are keyed by URL.
func (s *Searcher) checkLicenses(ctx context.Context, urls []string) map[string]ledger.Verdict {
	out := make([]ledger.Verdict, len(urls))

	var g errgroup.Group
	for i, u := range urls {
		g.Go(func() error {
			out[i] = s.licenses.CheckLicense(ctx, u)
			return nil
		})
	}
	_ = g.Wait()

	return lo.SliceToMap(out, func(v ledger.Verdict) (string, ledger.Verdict) {
		return v.URL, v
	})
}

// fetchAll runs the fetch engine over urls with at most fetchConcurrency in
// flight. With the default of 1 the URLs are fetched one after another in order.
func (s *Searcher) fetchAll(ctx context.Context, urls []string, opts fetch.Options) map[string]fetch.Result {
	out := make([]fetch.Result, len(urls))

	var g errgroup.Group
	g.SetLimit(s.fetchConcurrency)
	for i, u := range urls {
		g.Go(func() error {
			out[i] = s.fetcher.Fetch(ctx, u, opts)
			return nil
		})
	}
	_ = g.Wait()

	result := make(map[string]fetch.Result, len(urls))
	for i, u := range urls {
		result[u] = out[i]
	}
	return result
}

// logUsage sends one batch with every successful fetch. It returns nil when
// there was nothing to report.
func (s *Searcher) logUsage(ctx context.Context, urls []string, fetched map[string]fetch.Result) *UsageLog {
	batch := ledger.UsageBatch{GenerationID: s.newGenerationID()}
	for _, u := range urls {
		if res := fetched[u]; res.Succeeded() {
			batch.Add(u, res.Tokens)
		}
	}
	if len(batch.Hits) == 0 {
		return nil
	}

	outcome := &UsageLog{
		OK:           true,
		GenerationID: batch.GenerationID,
		Hits:         len(batch.Hits),
	}

	var err error
	if s.usage == nil {
		err = failure.New(failcode.Configuration, failure.Message("No usage recorder configured"))
	} else {
		err = s.usage.LogUsage(ctx, batch)
	}
	if err != nil {
		outcome.OK = false
		outcome.Error = failcode.Describe(err)
		outcome.ErrorCode = string(failcode.CodeOf(err))
		log.Warn("Usage tracking degraded", "gen_id", batch.GenerationID, "error", outcome.Error)
	}
	return outcome
}
