package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/ka2n/x402search/api/failcode"
	"github.com/ka2n/x402search/log"
	"github.com/morikuni/failure/v2"
)

// Acquirer requests licensed URL grants from the ledger
type Acquirer struct {
	client  *Client
	timeout time.Duration
}

// NewAcquirer creates a license acquisition client
func NewAcquirer(client *Client, timeout time.Duration) *Acquirer {
	return &Acquirer{client: client, timeout: timeout}
}

// Acquire performs a single acquisition call. It is never retried.
func (a *Acquirer) Acquire(ctx context.Context, req AcquireRequest) (*Grant, error) {
	if err := a.client.requireCredential("license acquisition"); err != nil {
		return nil, err
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = PaymentAccountBalance
	}

	logger := log.Logger.With("url", req.URL, "stage", req.Stage, "distribution", req.Distribution)
	logger.Debug("Acquiring license", "estimated_tokens", req.EstimatedTokens, "payment_method", req.PaymentMethod)

	resp, err := a.client.send(ctx, a.timeout, http.MethodPost, acquirePath, func(r *resty.Request) {
		r.SetHeader("Content-Type", "application/json").
			SetBody(req)
	})
	if err != nil {
		logger.Warn("License acquisition failed", "error", err)
		return nil, failure.Wrap(err)
	}

	var grant Grant
	if err := json.Unmarshal(resp.Body(), &grant); err != nil {
		return nil, failure.New(failcode.InvalidResponse,
			failure.Message("Failed to parse ledger grant"),
			failure.Context{"url": req.URL, "error": err.Error()},
		)
	}

	if grant.LicensedURL == "" {
		return nil, failure.New(failcode.InvalidResponse,
			failure.Message("Ledger grant has no licensed_url"),
			failure.Context{"url": req.URL, "status": grant.Status},
		)
	}

	logger.Info("License acquired", "license_version_id", grant.LicenseVersionID, "cost", grant.Cost, "currency", grant.Currency)
	return &grant, nil
}
