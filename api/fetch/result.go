package fetch

import (
	"github.com/ka2n/x402search/api/ledger"
)

// Result is the outcome of one licensed fetch, whatever path was taken.
//
//   - direct success or failure: PaymentRequired=false, PaymentAttempted=false
//   - 402 without x402 signaling: same as above with a ProtocolMismatch error
//   - paid success: PaymentAttempted=true, AcquireOutcome set, body from the licensed URL
//   - paid failure: PaymentAttempted=true, Error set, body from the original 402
type Result struct {
	RequestedURL     string        `json:"requested_url"`
	FinalURL         string        `json:"final_url"`
	Status           int           `json:"status"`
	ContentType      string        `json:"content_type,omitempty"`
	Title            string        `json:"title,omitempty"`
	ContentText      string        `json:"content_text,omitempty"`
	Truncated        bool          `json:"truncated,omitempty"`
	Tokens           int           `json:"tokens,omitempty"`
	PaymentAttempted bool          `json:"payment_attempted"`
	PaymentRequired  bool          `json:"payment_required"`
	X402Hints        *Hints        `json:"x402_hints,omitempty"`
	AcquireOutcome   *ledger.Grant `json:"acquire_outcome,omitempty"`
	Error            string        `json:"error,omitempty"`
	ErrorCode        string        `json:"error_code,omitempty"`
}

// Succeeded reports whether the fetch produced usable content with a 2xx status
func (r Result) Succeeded() bool {
	return r.Status >= 200 && r.Status < 300 && r.ContentText != ""
}

// Hints are the payment details advertised by an x402 response
type Hints struct {
	Scheme         string `json:"scheme"`
	Price          string `json:"price,omitempty"`
	PayTo          string `json:"payto,omitempty"`
	Stage          string `json:"stage,omitempty"`
	Distribution   string `json:"distribution,omitempty"`
	FacilitatorURL string `json:"facilitator_url,omitempty"`
}

// Options are the per-call parameters supplied by the caller
type Options struct {
	Stage           ledger.Stage
	Distribution    ledger.Distribution
	EstimatedTokens int
	// MaxChars overrides the engine's truncation limit when positive
	MaxChars int
}

// EstimateTokens approximates the token count of text at four characters per token
func EstimateTokens(text string) int {
	n := len([]rune(text))
	return (n + 3) / 4
}
