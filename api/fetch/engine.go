// Package fetch implements the licensed fetch engine: a direct HTTP fetch that,
// on an x402 payment-required answer, acquires a license from the ledger and
// retries once against the licensed URL.
package fetch

import (
	"context"
	"net/http"
	"time"

	"github.com/ka2n/x402search/api/failcode"
	"github.com/ka2n/x402search/api/ledger"
	"github.com/ka2n/x402search/log"
	"github.com/morikuni/failure/v2"
)

// State names the steps of the fetch state machine. They appear in debug logs only.
type State string

const (
	StateDirectFetch     State = "DIRECT_FETCH"
	StatePaymentRequired State = "PAYMENT_REQUIRED"
	StateAcquiring       State = "ACQUIRING"
	StateRetryFetch      State = "RETRY_FETCH"
	StateAcquireFailed   State = "ACQUIRE_FAILED"
	StateDone            State = "DONE"
)

const (
	DefaultTimeout  = 15 * time.Second
	DefaultMaxChars = 20000
)

// Acquirer issues license grants
type Acquirer interface {
	Acquire(ctx context.Context, req ledger.AcquireRequest) (*ledger.Grant, error)
}

// Config holds engine-wide limits
type Config struct {
	// Timeout bounds the direct fetch and the retried fetch independently
	Timeout  time.Duration
	MaxChars int
	// Markdown converts HTML bodies to markdown before truncation
	Markdown  bool
	UserAgent string
}

// Engine runs licensed fetches
type Engine struct {
	client   *http.Client
	acquirer Acquirer
	cfg      Config
}

// NewEngine creates a fetch engine. A nil client uses the logging transport.
func NewEngine(client *http.Client, acquirer Acquirer, cfg Config) *Engine {
	if client == nil {
		client = &http.Client{Transport: log.Transport()}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultMaxChars
	}
	return &Engine{
		client:   client,
		acquirer: acquirer,
		cfg:      cfg,
	}
}

// page is one HTTP answer, body already limited
type page struct {
	finalURL    string
	status      int
	contentType string
	header      http.Header
	raw         string
	limited     bool
}

func (e *Engine) withDefaults(opts Options) Options {
	if opts.MaxChars <= 0 {
		opts.MaxChars = e.cfg.MaxChars
	}
	if opts.Stage == "" {
		opts.Stage = ledger.StageInference
	}
	if opts.Distribution == "" {
		opts.Distribution = ledger.DistributionPrivate
	}
	if opts.EstimatedTokens <= 0 {
		opts.EstimatedTokens = (opts.MaxChars + 3) / 4
	}
	return opts
}

// Fetch produces exactly one Result for target. It never returns an error;
// failures are recorded in Result.Error.
func (e *Engine) Fetch(ctx context.Context, target string, opts Options) Result {
	opts = e.withDefaults(opts)
	logger := log.Logger.With("url", target)
	res := Result{RequestedURL: target, FinalURL: target}

	logger.Debug("Fetch state", "state", StateDirectFetch)
	first, err := e.get(ctx, target, opts.MaxChars)
	if first != nil {
		e.apply(&res, first, opts.MaxChars)
	}
	if err != nil {
		res.setError(err)
		logger.Debug("Fetch state", "state", StateDone, "error", res.Error)
		return res
	}

	if first.status != http.StatusPaymentRequired {
		logger.Debug("Fetch state", "state", StateDone, "status", first.status)
		return res
	}

	if !IsX402(first.header) {
		res.setError(failure.New(failcode.ProtocolMismatch,
			failure.Message("Payment required without x402 signaling"),
			failure.Context{"url": target},
		))
		logger.Debug("Fetch state", "state", StateDone, "error", res.Error)
		return res
	}

	logger.Debug("Fetch state", "state", StatePaymentRequired)
	res.PaymentRequired = true
	res.X402Hints = ParseHints(first.header, first.contentType, first.raw)

	logger.Debug("Fetch state", "state", StateAcquiring)
	res.PaymentAttempted = true
	grant, err := e.acquire(ctx, target, opts)
	if err != nil {
		// the original 402 content stays in res
		res.setError(err)
		logger.Info("License acquisition failed", "state", StateAcquireFailed, "error", res.Error)
		return res
	}
	res.AcquireOutcome = grant

	logger.Debug("Fetch state", "state", StateRetryFetch, "licensed_url", grant.LicensedURL)
	retried, err := e.get(ctx, grant.LicensedURL, opts.MaxChars)
	if err != nil {
		res.setError(failure.Wrap(err, failure.Context{"licensed_url": grant.LicensedURL}))
		logger.Warn("Licensed fetch failed", "error", res.Error)
		return res
	}
	e.apply(&res, retried, opts.MaxChars)

	logger.Debug("Fetch state", "state", StateDone, "status", retried.status)
	return res
}

func (e *Engine) acquire(ctx context.Context, target string, opts Options) (*ledger.Grant, error) {
	if e.acquirer == nil {
		return nil, failure.New(failcode.Configuration,
			failure.Message("No license acquirer configured"),
		)
	}
	grant, err := e.acquirer.Acquire(ctx, ledger.AcquireRequest{
		URL:             target,
		EstimatedTokens: opts.EstimatedTokens,
		Stage:           opts.Stage,
		Distribution:    opts.Distribution,
		PaymentMethod:   ledger.PaymentAccountBalance,
	})
	if err != nil {
		return nil, failure.Wrap(err)
	}
	return grant, nil
}

// get performs one GET bounded by the engine timeout. On a body read error the
// partially filled page is returned together with the error.
func (e *Engine) get(ctx context.Context, target string, maxChars int) (*page, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, failure.New(failcode.InvalidArguments,
			failure.Messagef("Invalid URL %q", target),
		)
	}
	if e.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", e.cfg.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,text/plain;q=0.8,*/*;q=0.5")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, failure.New(failcode.Transport,
			failure.Messagef("Fetch failed: %v", err),
			failure.Context{"url": target},
		)
	}
	defer resp.Body.Close()

	p := &page{
		finalURL:    resp.Request.URL.String(),
		status:      resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
		header:      resp.Header,
	}
	if !isTextual(p.contentType) {
		return p, nil
	}

	p.raw, p.limited, err = readText(resp.Body, p.contentType, maxChars)
	if err != nil {
		return p, failure.New(failcode.Transport,
			failure.Messagef("Failed to read response body: %v", err),
			failure.Context{"url": target},
		)
	}
	return p, nil
}

// apply replaces the response fields of res with p
func (e *Engine) apply(res *Result, p *page, maxChars int) {
	res.FinalURL = p.finalURL
	res.Status = p.status
	res.ContentType = p.contentType
	res.Title = ""

	text := p.raw
	if isHTML(p.contentType) {
		res.Title, _ = scanHTML(p.raw)
		// a 402 body is kept as served so a failed acquisition reports the original paywall
		if e.cfg.Markdown && text != "" && p.status != http.StatusPaymentRequired {
			if md, err := markdown(p.finalURL, text); err == nil {
				text = md
			}
		}
	}

	var cut bool
	res.ContentText, cut = truncateRunes(text, maxChars)
	res.Truncated = cut || p.limited
	res.Tokens = EstimateTokens(res.ContentText)
}

func (r *Result) setError(err error) {
	r.Error = failcode.Describe(err)
	r.ErrorCode = string(failcode.CodeOf(err))
}
