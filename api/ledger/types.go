package ledger

// Action is the license directory's answer for a URL
type Action string

const (
	ActionAllow   Action = "allow"
	ActionDeny    Action = "deny"
	ActionUnknown Action = "unknown"
)

// Stage is the declared intended use of licensed content
type Stage string

const (
	StageInference Stage = "inference"
	StageEmbedding Stage = "embedding"
	StageTuning    Stage = "tuning"
	StageTraining  Stage = "training"
)

// Distribution is the declared audience of licensed content
type Distribution string

const (
	DistributionPrivate Distribution = "private"
	DistributionPublic  Distribution = "public"
)

// PaymentMethod selects how an acquisition is paid for
type PaymentMethod string

const (
	// PaymentAccountBalance debits the ledger account behind the credential
	PaymentAccountBalance PaymentMethod = "account_balance"
	// PaymentX402 carries an on-chain payment proof. Nothing in this module builds one yet.
	PaymentX402 PaymentMethod = "x402"
)

// AILicenseType is the record type preferred when the ledger returns several records
const AILicenseType = "ai-license"

// Verdict is the license status of one URL. Values are never mutated after creation.
type Verdict struct {
	URL              string   `json:"url"`
	Found            bool     `json:"found"`
	Action           Action   `json:"action"`
	Price            *float64 `json:"price,omitempty"`
	PayTo            string   `json:"payto,omitempty"`
	LicenseVersionID *int64   `json:"license_version_id,omitempty"`
	Error            string   `json:"error,omitempty"`
}

// UnknownVerdict is the degraded verdict returned whenever the ledger cannot answer
func UnknownVerdict(url string, reason string) Verdict {
	return Verdict{
		URL:    url,
		Found:  false,
		Action: ActionUnknown,
		Error:  reason,
	}
}

// licenseRecord is one entry of the license-lookup response
type licenseRecord struct {
	LicenseType  string   `json:"license_type"`
	OptInStatus  string   `json:"opt_in_status"`
	RatePerToken *float64 `json:"rate_per_token"`
	WalletID     string   `json:"wallet_id"`
	ID           *int64   `json:"id"`
}

// AcquireRequest declares what is being licensed and how it is paid for
type AcquireRequest struct {
	URL             string        `json:"url"`
	EstimatedTokens int           `json:"estimated_tokens"`
	Stage           Stage         `json:"stage"`
	Distribution    Distribution  `json:"distribution"`
	PaymentMethod   PaymentMethod `json:"payment_method"`
	PaymentProof    string        `json:"payment_proof,omitempty"`
	PaymentAmount   *float64      `json:"payment_amount,omitempty"`
}

// Grant is the ledger's answer to a successful acquisition.
// It is scoped to one URL and consumed by a single retried fetch.
type Grant struct {
	LicensedURL      string  `json:"licensed_url"`
	LicenseVersionID int64   `json:"license_version_id"`
	LicenseSig       string  `json:"license_sig"`
	ExpiresAt        string  `json:"expires_at"`
	Cost             float64 `json:"cost"`
	Currency         string  `json:"currency"`
	Stage            string  `json:"stage"`
	Distribution     string  `json:"distribution"`
	EstimatedTokens  int     `json:"estimated_tokens"`
	RatePer1kTokens  float64 `json:"rate_per_1k_tokens"`
	Status           string  `json:"status"`
}

// UsageHit records tokens consumed from one URL
type UsageHit struct {
	URL    string `json:"url"`
	Tokens int    `json:"tokens"`
}

// UsageBatch is sent once per search-with-fetch request
type UsageBatch struct {
	GenerationID string     `json:"gen_id"`
	Hits         []UsageHit `json:"hits"`
}

// Add appends a hit. Hits without a positive token count or URL are dropped.
func (b *UsageBatch) Add(url string, tokens int) bool {
	if url == "" || tokens <= 0 {
		return false
	}
	b.Hits = append(b.Hits, UsageHit{URL: url, Tokens: tokens})
	return true
}
