package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/ka2n/x402search/api/cache"
	"github.com/ka2n/x402search/api/failcode"
	"github.com/ka2n/x402search/log"
	"github.com/morikuni/failure/v2"
	"github.com/samber/lo"
)

// DirectoryOptions configures a Directory
type DirectoryOptions struct {
	// Tracking disables every lookup when false
	Tracking bool
	// Cache stores successful verdicts. nil disables caching.
	Cache   cache.Store[Verdict]
	TTL     time.Duration
	Timeout time.Duration
}

// Directory answers license status lookups for URLs
type Directory struct {
	client   *Client
	store    cache.Store[Verdict]
	tracking bool
	ttl      time.Duration
	timeout  time.Duration
}

// NewDirectory creates a license directory client
func NewDirectory(client *Client, opts DirectoryOptions) *Directory {
	store := opts.Cache
	if store == nil {
		store = cache.Nop[Verdict]{}
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &Directory{
		client:   client,
		store:    store,
		tracking: opts.Tracking,
		ttl:      ttl,
		timeout:  opts.Timeout,
	}
}

// CheckLicense returns the verdict for url. It never fails: any problem
// produces an unknown verdict carrying the error message.
func (d *Directory) CheckLicense(ctx context.Context, url string) Verdict {
	if !d.tracking {
		return UnknownVerdict(url, "")
	}

	verdict, err := cache.GetOrSet(d.store, url, d.ttl, func() (Verdict, error) {
		return d.lookup(ctx, url)
	})
	if err != nil {
		log.Warn("License check degraded", "url", url, "error", err)
		return UnknownVerdict(url, failcode.Describe(err))
	}
	return verdict
}

func (d *Directory) lookup(ctx context.Context, url string) (Verdict, error) {
	resp, err := d.client.send(ctx, d.timeout, http.MethodGet, licensesPath, func(r *resty.Request) {
		r.SetQueryParam("url", url)
	})
	if err != nil {
		return Verdict{}, failure.Wrap(err)
	}

	records, err := decodeRecords(resp.Body())
	if err != nil {
		return Verdict{}, failure.New(failcode.InvalidResponse,
			failure.Message("Failed to parse ledger license response"),
			failure.Context{"url": url, "error": err.Error()},
		)
	}

	return verdictFromRecords(url, records), nil
}

// decodeRecords accepts either a single record object or an array of records
func decodeRecords(body []byte) ([]licenseRecord, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var records []licenseRecord
		if err := json.Unmarshal(body, &records); err != nil {
			return nil, err
		}
		return records, nil
	}

	var record licenseRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, err
	}
	return []licenseRecord{record}, nil
}

// selectRecord prefers the AI-license record and falls back to the first one
func selectRecord(records []licenseRecord) (licenseRecord, bool) {
	if len(records) == 0 {
		return licenseRecord{}, false
	}
	return lo.FindOrElse(records, records[0], func(r licenseRecord) bool {
		return strings.EqualFold(r.LicenseType, AILicenseType)
	}), true
}

func verdictFromRecords(url string, records []licenseRecord) Verdict {
	record, ok := selectRecord(records)
	if !ok {
		return UnknownVerdict(url, "")
	}

	verdict := Verdict{
		URL:              url,
		Action:           actionFromStatus(record.OptInStatus),
		Price:            record.RatePerToken,
		PayTo:            record.WalletID,
		LicenseVersionID: record.ID,
	}
	verdict.Found = verdict.Action != ActionUnknown
	return verdict
}

func actionFromStatus(status string) Action {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(status)), "_", "-")
	switch normalized {
	case "opt-in":
		return ActionAllow
	case "opt-out":
		return ActionDeny
	default:
		return ActionUnknown
	}
}
