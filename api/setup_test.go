package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/ka2n/x402search/api/config"
	"github.com/ka2n/x402search/api/failcode"
	"github.com/ka2n/x402search/api/ledger"
)

type ledgerStub struct {
	mu        sync.Mutex
	lookups   int
	acquires  []ledger.AcquireRequest
	usage     []ledger.UsageBatch
	slow      time.Duration
	siteURL   string
	usageCode int
}

// calls returns copies of what the stub has received so far
func (l *ledgerStub) calls() (lookups int, acquires []ledger.AcquireRequest, usage []ledger.UsageBatch) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lookups, append([]ledger.AcquireRequest(nil), l.acquires...), append([]ledger.UsageBatch(nil), l.usage...)
}

func (l *ledgerStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/licenses", func(w http.ResponseWriter, r *http.Request) {
		l.mu.Lock()
		l.lookups++
		l.mu.Unlock()
		time.Sleep(l.slow)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"license_type":"ai-license","opt_in_status":"opt-in","rate_per_token":0.002,"wallet_id":"0xpub","id":7}]`))
	})
	mux.HandleFunc("POST /api/v1/licenses/acquire", func(w http.ResponseWriter, r *http.Request) {
		var req ledger.AcquireRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		l.mu.Lock()
		l.acquires = append(l.acquires, req)
		l.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ledger.Grant{
			LicensedURL:      l.siteURL + "/licensed?token=t1",
			LicenseVersionID: 7,
			Cost:             0.004,
			Currency:         "USD",
			Status:           "granted",
		})
	})
	mux.HandleFunc("POST /api/v1/usage", func(w http.ResponseWriter, r *http.Request) {
		var batch ledger.UsageBatch
		_ = json.NewDecoder(r.Body).Decode(&batch)
		l.mu.Lock()
		l.usage = append(l.usage, batch)
		code := l.usageCode
		l.mu.Unlock()
		if code != 0 {
			w.WriteHeader(code)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	return mux
}

func newPublisher(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/free", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("free article text"))
	})
	mux.HandleFunc("/paid", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Payment-Scheme", "x402")
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":"payment required","accepts":[{"payTo":"0xpub","maxAmountRequired":"0.002"}]}`))
	})
	mux.HandleFunc("/licensed", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "t1" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("licensed body"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newSearchAPI(t *testing.T, urls ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		results := make([]map[string]any, 0, len(urls))
		for _, u := range urls {
			results = append(results, map[string]any{"url": u, "title": u})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"requestId": "req-1", "results": results})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(searchURL, ledgerURL, ledgerKey string) config.Config {
	return config.Config{
		SearchAPIKey:     "exa-key",
		SearchURL:        searchURL,
		SearchTimeout:    time.Second,
		LedgerURL:        ledgerURL,
		LedgerAPIKey:     ledgerKey,
		TrackingEnabled:  true,
		CacheEnabled:     true,
		CacheTTL:         time.Minute,
		LicenseTimeout:   time.Second,
		AcquireTimeout:   time.Second,
		UsageTimeout:     time.Second,
		FetchTimeout:     time.Second,
		FetchMaxChars:    1000,
		FetchConcurrency: 1,
	}
}

func TestEndToEndPaidFetch(t *testing.T) {
	site := newPublisher(t)
	stub := &ledgerStub{siteURL: site.URL}
	ledgerSrv := httptest.NewServer(stub.handler())
	t.Cleanup(ledgerSrv.Close)
	searchSrv := newSearchAPI(t, site.URL+"/free", site.URL+"/paid")

	s := New(testConfig(searchSrv.URL, ledgerSrv.URL, "ledger-key"))
	resp, err := s.Search(context.Background(), Query{Query: "q", Fetch: true})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	free, paid := resp.Results[0], resp.Results[1]
	if free.License.Action != ledger.ActionAllow || !free.License.Found {
		t.Errorf("free verdict = %+v", free.License)
	}
	if free.Fetched.ContentText != "free article text" || free.Fetched.PaymentAttempted {
		t.Errorf("free fetched = %+v", free.Fetched)
	}
	if paid.Fetched.ContentText != "licensed body" || paid.Fetched.AcquireOutcome == nil || !paid.Fetched.PaymentRequired {
		t.Errorf("paid fetched = %+v", paid.Fetched)
	}

	_, acquires, usage := stub.calls()
	wantAcquire := []ledger.AcquireRequest{{
		URL:             site.URL + "/paid",
		EstimatedTokens: 250,
		Stage:           ledger.StageInference,
		Distribution:    ledger.DistributionPrivate,
		PaymentMethod:   ledger.PaymentAccountBalance,
	}}
	if diff := cmp.Diff(wantAcquire, acquires); diff != "" {
		t.Errorf("acquire requests mismatch (-want +got):\n%s", diff)
	}

	if len(usage) != 1 {
		t.Fatalf("usage calls = %d, want 1", len(usage))
	}
	wantHits := []ledger.UsageHit{
		{URL: site.URL + "/free", Tokens: 5},
		{URL: site.URL + "/paid", Tokens: 4},
	}
	if diff := cmp.Diff(wantHits, usage[0].Hits); diff != "" {
		t.Errorf("usage hits mismatch (-want +got):\n%s", diff)
	}
	if resp.UsageLog == nil || !resp.UsageLog.OK || resp.UsageLog.GenerationID != usage[0].GenerationID {
		t.Errorf("UsageLog = %+v", resp.UsageLog)
	}

	// a second search is served from the verdict cache
	if _, err := s.Search(context.Background(), Query{Query: "q"}); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if lookups, _, _ := stub.calls(); lookups != 2 {
		t.Errorf("ledger lookups = %d, want 2", lookups)
	}
}

func TestEndToEndWithoutLedgerCredential(t *testing.T) {
	site := newPublisher(t)
	stub := &ledgerStub{siteURL: site.URL}
	ledgerSrv := httptest.NewServer(stub.handler())
	t.Cleanup(ledgerSrv.Close)
	searchSrv := newSearchAPI(t, site.URL+"/paid")

	s := New(testConfig(searchSrv.URL, ledgerSrv.URL, ""))
	resp, err := s.Search(context.Background(), Query{Query: "q", Fetch: true})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	got := resp.Results[0].Fetched
	if got.Status != http.StatusPaymentRequired || !got.PaymentAttempted || got.AcquireOutcome != nil {
		t.Errorf("fetched = %+v", got)
	}
	if got.ErrorCode != string(failcode.Configuration) {
		t.Errorf("ErrorCode = %q, want %q", got.ErrorCode, failcode.Configuration)
	}
	if got.ContentText == "" {
		t.Errorf("original 402 content was dropped")
	}
	if _, acquires, usage := stub.calls(); len(acquires) != 0 || len(usage) != 0 {
		t.Errorf("ledger called: acquires=%d usage=%d", len(acquires), len(usage))
	}
	if resp.UsageLog != nil {
		t.Errorf("UsageLog = %+v, want nil", resp.UsageLog)
	}
}

func TestEndToEndLedgerTimeout(t *testing.T) {
	site := newPublisher(t)
	stub := &ledgerStub{siteURL: site.URL, slow: 200 * time.Millisecond, usageCode: http.StatusInternalServerError}
	ledgerSrv := httptest.NewServer(stub.handler())
	t.Cleanup(ledgerSrv.Close)
	searchSrv := newSearchAPI(t, site.URL+"/free")

	cfg := testConfig(searchSrv.URL, ledgerSrv.URL, "ledger-key")
	cfg.LicenseTimeout = 20 * time.Millisecond
	resp, err := New(cfg).Search(context.Background(), Query{Query: "q", Fetch: true})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	item := resp.Results[0]
	if item.License.Action != ledger.ActionUnknown || item.License.Error == "" {
		t.Errorf("verdict = %+v, want degraded unknown", item.License)
	}
	if item.Fetched.ContentText != "free article text" {
		t.Errorf("fetched = %+v", item.Fetched)
	}
	if resp.UsageLog == nil || resp.UsageLog.OK || resp.UsageLog.ErrorCode != string(failcode.Upstream) {
		t.Errorf("UsageLog = %+v, want upstream failure", resp.UsageLog)
	}
}
