// Package ledger talks to the licensing ledger: license lookup, license acquisition and usage logging.
package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/ka2n/x402search/api/failcode"
	"github.com/ka2n/x402search/log"
	"github.com/morikuni/failure/v2"
)

const (
	licensesPath = "/api/v1/licenses"
	acquirePath  = "/api/v1/licenses/acquire"
	usagePath    = "/api/v1/usage"
)

// Client is the shared HTTP plumbing for ledger endpoints
type Client struct {
	http    *resty.Client
	baseURL string
	apiKey  string
}

// NewClient creates a ledger client. An empty apiKey leaves only the unauthenticated lookup usable.
func NewClient(baseURL, apiKey string) *Client {
	httpClient := resty.New().
		SetHeader("User-Agent", "x402search/0.1").
		SetHeader("Accept", "application/json").
		SetRetryCount(0).
		SetTransport(log.Transport())

	return &Client{
		http:    httpClient,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// HasCredential reports whether authenticated calls can be made
func (c *Client) HasCredential() bool {
	return c.apiKey != ""
}

func (c *Client) requireCredential(operation string) error {
	if !c.HasCredential() {
		return failure.New(failcode.Configuration,
			failure.Messagef("Ledger credential is required for %s", operation),
			failure.Context{"operation": operation},
		)
	}
	return nil
}

// send executes one request bounded by timeout. Non-2xx answers become Upstream errors.
func (c *Client) send(ctx context.Context, timeout time.Duration, method, path string, prepare func(*resty.Request)) (*resty.Response, error) {
	if c.baseURL == "" {
		return nil, failure.New(failcode.Configuration,
			failure.Message("Ledger API URL is not configured"),
		)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := c.http.R().SetContext(ctx)
	if c.apiKey != "" {
		req.SetAuthToken(c.apiKey)
	}
	if prepare != nil {
		prepare(req)
	}

	endpoint := c.baseURL + path
	resp, err := req.Execute(method, endpoint)
	if err != nil {
		return nil, failure.New(failcode.Transport,
			failure.Messagef("Ledger request failed: %v", err),
			failure.Context{"method": method, "endpoint": endpoint},
		)
	}
	if !resp.IsSuccess() {
		return nil, failure.New(failcode.Upstream,
			failure.Messagef("Ledger returned status %d", resp.StatusCode()),
			failure.Context{
				"method":   method,
				"endpoint": endpoint,
				"body":     truncate(resp.String(), 256),
			},
		)
	}
	return resp, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
