package elastic_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rawbank/reclamations-gateway-go/internal/domain"
	"github.com/rawbank/reclamations-gateway-go/internal/infra/elastic"
	"github.com/rawbank/reclamations-gateway-go/internal/infra/resilience"

	"go.uber.org/zap"
)

func newTestClient(srv *httptest.Server, apiKey, username, password string) *elastic.Client {
	return elastic.NewClient(
		srv.Client(), srv.URL, "complaints", "complaints_ingest_pipeline",
		apiKey, username, password,
		resilience.NewCircuitBreaker("test"), zap.NewNop(),
	)
}

func TestIndexDocument_APIKeyWinsOverBasic(t *testing.T) {
	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		if r.URL.Path != "/complaints/_doc" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("pipeline") != "complaints_ingest_pipeline" {
			t.Errorf("pipeline = %q", r.URL.Query().Get("pipeline"))
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"result": "created"})
	}))
	defer srv.Close()

	c := newTestClient(srv, "secret-key", "elastic", "changeme")
	if err := c.IndexDocument(context.Background(), map[string]any{"DESCRIPTION": "test"}); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}
	if gotAuth.Load() != "ApiKey secret-key" {
		t.Errorf("Authorization = %q, want the API key scheme", gotAuth.Load())
	}
}

func TestIndexDocument_BasicFallback(t *testing.T) {
	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := newTestClient(srv, "", "elastic", "changeme")
	if err := c.IndexDocument(context.Background(), map[string]any{}); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}
	// base64("elastic:changeme")
	if gotAuth.Load() != "Basic ZWxhc3RpYzpjaGFuZ2VtZQ==" {
		t.Errorf("Authorization = %q, want Basic", gotAuth.Load())
	}
}

func TestIndexDocument_NoCredentialsNoHeader(t *testing.T) {
	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := newTestClient(srv, "", "", "")
	if err := c.IndexDocument(context.Background(), map[string]any{}); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}
	if gotAuth.Load() != "" {
		t.Errorf("Authorization = %q, want none", gotAuth.Load())
	}
}

func TestIndexDocument_RejectionIsFunctional(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"type":"mapper_parsing_exception"}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv, "key", "", "")
	err := c.IndexDocument(context.Background(), map[string]any{"MONTANT": "not-a-number"})

	var functional *domain.ErrFunctional
	if !errors.As(err, &functional) {
		t.Fatalf("expected ErrFunctional, got %v", err)
	}
	if functional.Status != http.StatusBadRequest {
		t.Errorf("status = %d", functional.Status)
	}
	if calls.Load() != 1 {
		t.Errorf("writes must not be retried, got %d calls", calls.Load())
	}
}

func TestIndexDocument_UnreachableIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := newTestClient(srv, "key", "", "")
	err := c.IndexDocument(context.Background(), map[string]any{})

	var transport *domain.ErrTransport
	if !errors.As(err, &transport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestIndexExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("method = %q", r.Method)
		}
		if r.URL.Path == "/complaints" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(srv, "key", "", "")

	exists, err := c.IndexExists(context.Background(), "complaints")
	if err != nil || !exists {
		t.Fatalf("IndexExists(complaints) = %v, %v", exists, err)
	}
	exists, err = c.IndexExists(context.Background(), "other")
	if err != nil || exists {
		t.Fatalf("IndexExists(other) = %v, %v", exists, err)
	}
}

func TestAdminPut_RetriesTransportNotRejection(t *testing.T) {
	cfg := resilience.Config{MaxRetries: 2, InitialBackoff: 1}

	var rejections atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rejections.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(srv, "key", "", "")
	err := c.PutPipeline(context.Background(), cfg, "p", map[string]any{})

	var functional *domain.ErrFunctional
	if !errors.As(err, &functional) {
		t.Fatalf("expected ErrFunctional, got %v", err)
	}
	if rejections.Load() != 1 {
		t.Errorf("a rejection must not be retried, got %d calls", rejections.Load())
	}
}
