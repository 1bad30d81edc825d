package accounts_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rawbank/reclamations-gateway-go/internal/infra/accounts"
	"github.com/rawbank/reclamations-gateway-go/internal/infra/observability"
	"github.com/rawbank/reclamations-gateway-go/internal/infra/resilience"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type backendFixture struct {
	srv        *httptest.Server
	tokenCalls atomic.Int32
	lastBody   atomic.Value
}

func newBackendFixture(t *testing.T, detailStatus int) *backendFixture {
	t.Helper()
	f := &backendFixture{}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse token form: %v", err)
		}
		if r.PostForm.Get("grant_type") != "client_credentials" {
			t.Errorf("grant_type = %q", r.PostForm.Get("grant_type"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "opaque-token",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/details", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer opaque-token" {
			t.Errorf("Authorization = %q", got)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		f.lastBody.Store(body)

		if detailStatus != http.StatusOK {
			w.WriteHeader(detailStatus)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"cutomerDetail": map[string]any{
				"customerName": "KABONGO MUKENDI",
				"accountList": []map[string]any{
					{"agencyCode": "0001", "accountNumber": "12345678", "suffix": "01", "currencyCode": 840},
					{"agencyCode": "0001", "accountNumber": "12345678", "suffix": "02", "currencyCode": "181"},
				},
			},
		})
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func newAccountsClient(f *backendFixture) (*accounts.Client, *observability.Metrics) {
	metrics := observability.NewMetrics()
	return accounts.NewClient(
		f.srv.Client(),
		f.srv.URL+"/token", "client-id", "client-secret", "accounts.read",
		f.srv.URL+"/details",
		5*time.Minute,
		resilience.NewCircuitBreaker("accounts-test"),
		resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxConcurrency: 4},
		metrics,
		zap.NewNop(),
	), metrics
}

func TestResolveByClientNumber_DecodesPartnerShape(t *testing.T) {
	f := newBackendFixture(t, http.StatusOK)
	c, _ := newAccountsClient(f)

	detail, err := c.ResolveByClientNumber(context.Background(), "12345678")
	if err != nil {
		t.Fatalf("ResolveByClientNumber: %v", err)
	}
	if detail.CustomerName != "KABONGO MUKENDI" {
		t.Errorf("customer name = %q", detail.CustomerName)
	}
	if len(detail.Accounts) != 2 {
		t.Fatalf("accounts = %d", len(detail.Accounts))
	}
	// Numeric and string currency codes both flatten to strings.
	if detail.Accounts[0].CurrencyCode != "840" {
		t.Errorf("currency[0] = %q", detail.Accounts[0].CurrencyCode)
	}
	if detail.Accounts[1].CurrencyCode != "181" {
		t.Errorf("currency[1] = %q", detail.Accounts[1].CurrencyCode)
	}

	body := f.lastBody.Load().(map[string]string)
	if body["customerCode"] != "12345678" {
		t.Errorf("request body = %v", body)
	}
}

func TestResolveByPhone_SendsPhoneNumberKey(t *testing.T) {
	f := newBackendFixture(t, http.StatusOK)
	c, _ := newAccountsClient(f)

	if _, err := c.ResolveByPhone(context.Background(), "0812345678"); err != nil {
		t.Fatalf("ResolveByPhone: %v", err)
	}
	body := f.lastBody.Load().(map[string]string)
	if body["phoneNumber"] != "0812345678" {
		t.Errorf("request body = %v", body)
	}
}

func TestToken_FetchedOnceAcrossCalls(t *testing.T) {
	f := newBackendFixture(t, http.StatusOK)
	c, metrics := newAccountsClient(f)

	for i := 0; i < 3; i++ {
		if _, err := c.ResolveByClientNumber(context.Background(), "12345678"); err != nil {
			t.Fatalf("resolve #%d: %v", i, err)
		}
	}
	if got := f.tokenCalls.Load(); got != 1 {
		t.Errorf("expected 1 token fetch, got %d", got)
	}

	// One cold miss, then every call hits the cached token.
	series := scrapeMetrics(t, metrics)
	if !strings.Contains(series, `complaints_cache_misses_total{cache="accounts_token"} 1`) {
		t.Error("expected exactly one recorded cache miss")
	}
	if !strings.Contains(series, `complaints_cache_hits_total{cache="accounts_token"} 2`) {
		t.Error("expected two recorded cache hits")
	}
}

// scrapeMetrics renders the registry the way /metrics would.
func scrapeMetrics(t *testing.T, metrics *observability.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func TestResolve_BackendRejectionNotRetried(t *testing.T) {
	f := newBackendFixture(t, http.StatusNotFound)
	c, _ := newAccountsClient(f)

	_, err := c.ResolveByClientNumber(context.Background(), "99999999")
	if err == nil {
		t.Fatal("expected an error")
	}
	// One token fetch, and the 404 must not have burned retries into more
	// token requests either.
	if got := f.tokenCalls.Load(); got != 1 {
		t.Errorf("token fetches = %d", got)
	}
}
