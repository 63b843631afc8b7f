package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/ka2n/x402search/api/failcode"
	"github.com/ka2n/x402search/api/ledger"
	"github.com/morikuni/failure/v2"
)

const paywallHTML = `<html><head><title>Pay</title></head><body><h1>Payment required</h1><p>pay me</p></body></html>`

const paywallBody = `{"error":"payment required","accepts":[{"payTo":"0xpub","maxAmountRequired":"0.002"}]}`

type fakeAcquirer struct {
	grant *ledger.Grant
	err   error
	calls []ledger.AcquireRequest
}

func (f *fakeAcquirer) Acquire(ctx context.Context, req ledger.AcquireRequest) (*ledger.Grant, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.grant, nil
}

// newSite serves a free page, an x402 paywall, a non-x402 paywall and the licensed copy
func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/free", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("free article text"))
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/free", http.StatusFound)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("not here"))
	})
	mux.HandleFunc("/paid", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set(SchemeHeader, "x402")
		w.Header().Set("X-Payment-Price", "0.5")
		w.Header().Set("X-Payment-Facilitator", "https://facilitator.example")
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(paywallBody))
	})
	mux.HandleFunc("/paid-html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set(SchemeHeader, "x402")
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(paywallHTML))
	})
	mux.HandleFunc("/subscription", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte("subscribe to read"))
	})
	mux.HandleFunc("/licensed", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "t1" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><head><title>Paid Story</title></head><body>licensed body</body></html>"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchDirect(t *testing.T) {
	srv := newSite(t)
	acq := &fakeAcquirer{}
	e := NewEngine(nil, acq, Config{Timeout: time.Second, MaxChars: 100})

	tests := []struct {
		name string
		path string
		want Result
	}{
		{
			name: "200",
			path: "/free",
			want: Result{
				RequestedURL: srv.URL + "/free",
				FinalURL:     srv.URL + "/free",
				Status:       http.StatusOK,
				ContentType:  "text/plain; charset=utf-8",
				ContentText:  "free article text",
				Tokens:       5,
			},
		},
		{
			name: "redirect records final url",
			path: "/moved",
			want: Result{
				RequestedURL: srv.URL + "/moved",
				FinalURL:     srv.URL + "/free",
				Status:       http.StatusOK,
				ContentType:  "text/plain; charset=utf-8",
				ContentText:  "free article text",
				Tokens:       5,
			},
		},
		{
			name: "error status keeps body",
			path: "/missing",
			want: Result{
				RequestedURL: srv.URL + "/missing",
				FinalURL:     srv.URL + "/missing",
				Status:       http.StatusNotFound,
				ContentType:  "text/plain",
				ContentText:  "not here",
				Tokens:       2,
			},
		},
		{
			name: "402 without x402 is not a licensing event",
			path: "/subscription",
			want: Result{
				RequestedURL: srv.URL + "/subscription",
				FinalURL:     srv.URL + "/subscription",
				Status:       http.StatusPaymentRequired,
				ContentType:  "text/plain",
				ContentText:  "subscribe to read",
				Tokens:       5,
				Error:        "Payment required without x402 signaling",
				ErrorCode:    string(failcode.ProtocolMismatch),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Fetch(context.Background(), srv.URL+tt.path, Options{})
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Fetch() mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if len(acq.calls) != 0 {
		t.Errorf("acquirer called %d times on unpaid paths", len(acq.calls))
	}
}

func TestFetchPaidSuccess(t *testing.T) {
	srv := newSite(t)
	grant := &ledger.Grant{
		LicensedURL:      srv.URL + "/licensed?token=t1",
		LicenseVersionID: 3,
		Status:           "granted",
	}
	acq := &fakeAcquirer{grant: grant}
	e := NewEngine(nil, acq, Config{Timeout: time.Second, MaxChars: 1000})

	got := e.Fetch(context.Background(), srv.URL+"/paid", Options{
		Stage:           ledger.StageTraining,
		Distribution:    ledger.DistributionPublic,
		EstimatedTokens: 800,
	})

	if !got.PaymentRequired || !got.PaymentAttempted {
		t.Errorf("payment flags = required:%v attempted:%v, want true/true", got.PaymentRequired, got.PaymentAttempted)
	}
	if got.Status != http.StatusOK {
		t.Errorf("Status = %d, want retried status 200", got.Status)
	}
	if got.AcquireOutcome == nil || got.AcquireOutcome.LicensedURL != grant.LicensedURL {
		t.Errorf("AcquireOutcome = %+v, want grant", got.AcquireOutcome)
	}
	if got.Title != "Paid Story" {
		t.Errorf("Title = %q", got.Title)
	}
	if !strings.Contains(got.ContentText, "licensed body") {
		t.Errorf("ContentText = %q, want licensed body", got.ContentText)
	}
	if got.Error != "" {
		t.Errorf("Error = %q, want empty", got.Error)
	}

	wantHints := &Hints{
		Scheme:         SchemeX402,
		Price:          "0.5",
		PayTo:          "0xpub",
		FacilitatorURL: "https://facilitator.example",
	}
	if diff := cmp.Diff(wantHints, got.X402Hints); diff != "" {
		t.Errorf("X402Hints mismatch (-want +got):\n%s", diff)
	}

	wantCalls := []ledger.AcquireRequest{{
		URL:             srv.URL + "/paid",
		EstimatedTokens: 800,
		Stage:           ledger.StageTraining,
		Distribution:    ledger.DistributionPublic,
		PaymentMethod:   ledger.PaymentAccountBalance,
	}}
	if diff := cmp.Diff(wantCalls, acq.calls); diff != "" {
		t.Errorf("acquire calls mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchAcquireFailedPreservesOriginal(t *testing.T) {
	srv := newSite(t)

	tests := []struct {
		name     string
		acquirer Acquirer
		wantCode failcode.ErrorCode
	}{
		{
			name: "missing credential",
			acquirer: &fakeAcquirer{err: failure.New(failcode.Configuration,
				failure.Message("Ledger credential is required for license acquisition"))},
			wantCode: failcode.Configuration,
		},
		{
			name:     "ledger rejects",
			acquirer: &fakeAcquirer{err: failure.New(failcode.Upstream, failure.Message("Ledger returned status 409"))},
			wantCode: failcode.Upstream,
		},
		{
			name:     "no acquirer",
			acquirer: nil,
			wantCode: failcode.Configuration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(nil, tt.acquirer, Config{Timeout: time.Second, MaxChars: 1000})
			got := e.Fetch(context.Background(), srv.URL+"/paid", Options{})

			if !got.PaymentAttempted || !got.PaymentRequired {
				t.Errorf("payment flags = required:%v attempted:%v, want true/true", got.PaymentRequired, got.PaymentAttempted)
			}
			if got.ContentText != paywallBody {
				t.Errorf("ContentText = %q, want original 402 body", got.ContentText)
			}
			if got.Status != http.StatusPaymentRequired {
				t.Errorf("Status = %d, want 402", got.Status)
			}
			if got.AcquireOutcome != nil {
				t.Errorf("AcquireOutcome = %+v, want nil", got.AcquireOutcome)
			}
			if got.Error == "" || got.ErrorCode != string(tt.wantCode) {
				t.Errorf("Error = %q (%s), want %s", got.Error, got.ErrorCode, tt.wantCode)
			}
		})
	}
}

func TestFetchRetryFailureKeepsGrant(t *testing.T) {
	srv := newSite(t)
	acq := &fakeAcquirer{grant: &ledger.Grant{LicensedURL: "http://127.0.0.1:1/unreachable"}}
	e := NewEngine(nil, acq, Config{Timeout: time.Second, MaxChars: 1000})

	got := e.Fetch(context.Background(), srv.URL+"/paid", Options{})
	if got.AcquireOutcome == nil {
		t.Fatalf("AcquireOutcome = nil, want grant")
	}
	if got.ContentText != paywallBody || got.Status != http.StatusPaymentRequired {
		t.Errorf("result = %d %q, want original 402", got.Status, got.ContentText)
	}
	if got.ErrorCode != string(failcode.Transport) {
		t.Errorf("ErrorCode = %q, want %s", got.ErrorCode, failcode.Transport)
	}
}

func TestFetchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	e := NewEngine(nil, &fakeAcquirer{}, Config{Timeout: 50 * time.Millisecond})
	got := e.Fetch(context.Background(), srv.URL, Options{})

	if got.Status != 0 || got.ErrorCode != string(failcode.Transport) {
		t.Errorf("Fetch() = status %d code %q, want 0 %s", got.Status, got.ErrorCode, failcode.Transport)
	}
	if got.PaymentAttempted || got.PaymentRequired {
		t.Errorf("payment flags set on transport error")
	}
	if got.RequestedURL != srv.URL || got.FinalURL != srv.URL {
		t.Errorf("urls = %q %q", got.RequestedURL, got.FinalURL)
	}
}

func TestFetchTruncates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(strings.Repeat("é", 50)))
	}))
	t.Cleanup(srv.Close)

	e := NewEngine(nil, nil, Config{Timeout: time.Second, MaxChars: 10})
	got := e.Fetch(context.Background(), srv.URL, Options{})
	if got.ContentText != strings.Repeat("é", 10) || !got.Truncated {
		t.Errorf("ContentText = %q truncated=%v", got.ContentText, got.Truncated)
	}

	got = e.Fetch(context.Background(), srv.URL, Options{MaxChars: 20})
	if n := len([]rune(got.ContentText)); n != 20 {
		t.Errorf("per-call MaxChars ignored: %d runes", n)
	}
}

func TestFetchSkipsBinaryBodies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 0x50, 0x4e, 0x47})
	}))
	t.Cleanup(srv.Close)

	got := NewEngine(nil, nil, Config{}).Fetch(context.Background(), srv.URL, Options{})
	if got.Status != http.StatusOK || got.ContentText != "" || got.Succeeded() {
		t.Errorf("Fetch() = %+v, want empty text", got)
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"日本語テキスト", 2},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.in); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFetchAcquireFailedKeepsRawHTMLWithMarkdown(t *testing.T) {
	srv := newSite(t)
	acq := &fakeAcquirer{err: failure.New(failcode.Upstream, failure.Message("Ledger returned status 409"))}
	e := NewEngine(nil, acq, Config{Timeout: time.Second, MaxChars: 1000, Markdown: true})

	got := e.Fetch(context.Background(), srv.URL+"/paid-html", Options{})

	if got.ContentText != paywallHTML {
		t.Errorf("ContentText = %q, want original 402 body %q", got.ContentText, paywallHTML)
	}
	if got.Title != "Pay" {
		t.Errorf("Title = %q, want %q", got.Title, "Pay")
	}
	if !got.PaymentAttempted || got.ErrorCode != string(failcode.Upstream) {
		t.Errorf("attempted = %v, ErrorCode = %q", got.PaymentAttempted, got.ErrorCode)
	}
}
