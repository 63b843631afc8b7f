package ledger

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/ka2n/x402search/log"
	"github.com/morikuni/failure/v2"
)

// UsageRecorder reports consumed URLs for compensation and audit
type UsageRecorder struct {
	client  *Client
	timeout time.Duration
}

// NewUsageRecorder creates a usage recorder
func NewUsageRecorder(client *Client, timeout time.Duration) *UsageRecorder {
	return &UsageRecorder{client: client, timeout: timeout}
}

// LogUsage sends batch in one POST. Failures are returned, never retried.
func (u *UsageRecorder) LogUsage(ctx context.Context, batch UsageBatch) error {
	if err := u.client.requireCredential("usage logging"); err != nil {
		return err
	}

	_, err := u.client.send(ctx, u.timeout, http.MethodPost, usagePath, func(r *resty.Request) {
		r.SetHeader("Content-Type", "application/json").SetBody(batch)
	})
	if err != nil {
		log.Warn("Usage log failed", "gen_id", batch.GenerationID, "hits", len(batch.Hits), "error", err)
		return failure.Wrap(err)
	}

	log.Info("Usage logged", "gen_id", batch.GenerationID, "hits", len(batch.Hits))
	return nil
}
