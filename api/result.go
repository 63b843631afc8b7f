package api

import (
	"github.com/ka2n/x402search/api/fetch"
	"github.com/ka2n/x402search/api/ledger"
	"github.com/ka2n/x402search/api/search"
)

// Response is the composed answer of one search request
type Response struct {
	Query     string `json:"query"`
	RequestID string `json:"request_id,omitempty"`
	Results   []Item `json:"results"`
	// UsageLog is set only when a usage batch was sent
	UsageLog *UsageLog `json:"usage_log,omitempty"`
}

// Item is one upstream result with its license verdict and, when requested, its fetch result
type Item struct {
	search.Result
	License ledger.Verdict `json:"license"`
	Fetched *fetch.Result  `json:"fetched,omitempty"`
}

// UsageLog is the outcome of the usage report
type UsageLog struct {
	OK           bool   `json:"ok"`
	GenerationID string `json:"gen_id"`
	Hits         int    `json:"hits"`
	Error        string `json:"error,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
}

// PaidCount returns how many results were fetched through a license acquisition
func (r *Response) PaidCount() int {
	n := 0
	for _, it := range r.Results {
		if it.Fetched != nil && it.Fetched.AcquireOutcome != nil {
			n++
		}
	}
	return n
}
