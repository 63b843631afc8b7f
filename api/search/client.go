// Package search queries the upstream Exa-style search API.
package search

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/ka2n/x402search/api/failcode"
	"github.com/ka2n/x402search/log"
	"github.com/morikuni/failure/v2"
)

const (
	DefaultEndpoint   = "https://api.exa.ai/search"
	DefaultNumResults = 5
	MaxNumResults     = 100
)

// Request is the upstream search payload
type Request struct {
	Query          string   `json:"query"`
	NumResults     int      `json:"numResults,omitempty"`
	Type           string   `json:"type,omitempty"`
	IncludeDomains []string `json:"includeDomains,omitempty"`
	ExcludeDomains []string `json:"excludeDomains,omitempty"`
	Text           bool     `json:"text"`
}

// Result is one upstream hit
type Result struct {
	URL           string   `json:"url"`
	Title         string   `json:"title,omitempty"`
	PublishedDate string   `json:"publishedDate,omitempty"`
	Author        string   `json:"author,omitempty"`
	Score         *float64 `json:"score,omitempty"`
	Text          string   `json:"text,omitempty"`
}

// Response is the upstream answer
type Response struct {
	Results   []Result `json:"results"`
	RequestID string   `json:"requestId,omitempty"`
}

// Client talks to the search API
type Client struct {
	http     *resty.Client
	endpoint string
	apiKey   string
	timeout  time.Duration
}

// NewClient creates a search client
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	httpClient := resty.New().
		SetHeader("User-Agent", "x402search/0.1").
		SetRetryCount(0).
		SetTransport(log.Transport())

	return &Client{
		http:     httpClient,
		endpoint: endpoint,
		apiKey:   apiKey,
		timeout:  timeout,
	}
}

// Search runs one query. Every failure here is fatal for the tool call.
func (c *Client) Search(ctx context.Context, req Request) (*Response, error) {
	if c.apiKey == "" {
		return nil, failure.New(failcode.Configuration,
			failure.Message("Search API key is not configured (EXA_API_KEY)"),
		)
	}
	if req.NumResults <= 0 {
		req.NumResults = DefaultNumResults
	}
	if req.NumResults > MaxNumResults {
		req.NumResults = MaxNumResults
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	log.Info("Search request",
		"query", req.Query,
		"num_results", req.NumResults,
		"type", req.Type,
		"include_domains", len(req.IncludeDomains),
		"exclude_domains", len(req.ExcludeDomains),
	)

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("x-api-key", c.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post(c.endpoint)
	if err != nil {
		return nil, failure.New(failcode.Transport,
			failure.Messagef("Failed to query search API: %v", err),
			failure.Context{"endpoint": c.endpoint},
		)
	}
	if !resp.IsSuccess() {
		return nil, failure.New(failcode.Upstream,
			failure.Messagef("Search API error (status %d)", resp.StatusCode()),
			failure.Context{"endpoint": c.endpoint, "body": resp.String()},
		)
	}

	var out Response
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, failure.New(failcode.InvalidResponse,
			failure.Message("Failed to parse search API response"),
			failure.Context{"endpoint": c.endpoint, "error": err.Error()},
		)
	}

	log.Info("Search response", "request_id", out.RequestID, "result_count", len(out.Results))
	return &out, nil
}
