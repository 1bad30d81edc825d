package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rawbank/reclamations-gateway-go/internal/domain"
	"github.com/rawbank/reclamations-gateway-go/internal/infra/cache"
	"github.com/rawbank/reclamations-gateway-go/internal/infra/observability"
	"github.com/rawbank/reclamations-gateway-go/internal/port"
	"github.com/rawbank/reclamations-gateway-go/internal/service"

	"go.uber.org/zap"
)

// fakeWriter records indexed documents and can be scripted to fail.
type fakeWriter struct {
	mu   sync.Mutex
	docs []map[string]any
	err  error
}

func (f *fakeWriter) IndexDocument(ctx context.Context, doc map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.docs = append(f.docs, doc)
	return nil
}

func (f *fakeWriter) last() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.docs) == 0 {
		return nil
	}
	return f.docs[len(f.docs)-1]
}

// fakeResolver serves a fixed customer detail.
type fakeResolver struct {
	detail *port.CustomerDetail
	err    error
	calls  int
}

func (f *fakeResolver) ResolveByClientNumber(ctx context.Context, clientNumber string) (*port.CustomerDetail, error) {
	f.calls++
	return f.detail, f.err
}

func (f *fakeResolver) ResolveByPhone(ctx context.Context, phone string) (*port.CustomerDetail, error) {
	f.calls++
	return f.detail, f.err
}

// fakeNotifier records notified documents.
type fakeNotifier struct {
	mu   sync.Mutex
	docs []map[string]any
}

func (f *fakeNotifier) Notify(ctx context.Context, doc map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, doc)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs)
}

type fixture struct {
	svc      *service.ComplaintsService
	writer   *fakeWriter
	resolver *fakeResolver
	notifier *fakeNotifier
	tracking *cache.InMemory[domain.SubmissionStatus]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	motifs, err := service.NewMotifResolver()
	if err != nil {
		t.Fatalf("load motif table: %v", err)
	}
	f := &fixture{
		writer:   &fakeWriter{},
		resolver: &fakeResolver{},
		notifier: &fakeNotifier{},
		tracking: cache.New[domain.SubmissionStatus](time.Minute),
	}
	f.svc = service.NewComplaintsService(
		f.writer, f.resolver, f.notifier, motifs, f.tracking,
		observability.NewMetrics(), zap.NewNop(),
	)
	return f
}

func validDoc() map[string]any {
	return map[string]any{
		"tracking_id":        "0b9af3c5-9f6e-4a53-8a43-1fbb3c1f3a77",
		"user_agent":         "Mozilla/5.0 (X11; Linux x86_64)",
		"device":             "desktop",
		"submitted_at":       "2026-08-29T10:15:00Z",
		"submitted_at_local": "29/08/2026 11:15:00",
		"TYPERECLAMATION":    "Fraude",
		"DESCRIPTION":        "Prélèvement non reconnu sur mon compte",
		"EXTOURNE":           false,
	}
}

func TestSubmit_AppliesServerOverrides(t *testing.T) {
	f := newFixture(t)

	ack, err := f.svc.Submit(context.Background(), validDoc())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if ack.TrackingID != "0b9af3c5-9f6e-4a53-8a43-1fbb3c1f3a77" {
		t.Errorf("ack tracking id = %q", ack.TrackingID)
	}

	doc := f.writer.last()
	if doc == nil {
		t.Fatal("nothing written")
	}
	for key, want := range map[string]string{
		"SITE":         "WEB",
		"ZONE":         "ONLINE",
		"CANALUTILISE": "WEB",
		"DEPARTEMENT":  "Direction IT / Développement Applicatif",
		"status":       "new",
		"MOTIFBCC":     "Contestation d'opération frauduleuse",
	} {
		if doc[key] != want {
			t.Errorf("%s = %v, want %q", key, doc[key], want)
		}
	}
}

func TestSubmit_RejectsMissingTrackingID(t *testing.T) {
	f := newFixture(t)
	doc := validDoc()
	delete(doc, "tracking_id")

	_, err := f.svc.Submit(context.Background(), doc)

	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if validation.Fields["tracking_id"] == "" {
		t.Errorf("expected a tracking_id error, got %v", validation.Fields)
	}
	if f.writer.last() != nil {
		t.Error("a document without a tracking id must never reach the store")
	}
}

func TestSubmit_ValidationCollectsAllFields(t *testing.T) {
	f := newFixture(t)
	doc := validDoc()
	doc["TYPERECLAMATION"] = "Autre"
	doc["DESCRIPTION"] = "court"
	doc["device"] = "tablet"

	_, err := f.svc.Submit(context.Background(), doc)

	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	for _, field := range []string{"TYPERECLAMATION", "DESCRIPTION", "device"} {
		if validation.Fields[field] == "" {
			t.Errorf("expected an error on %s, got %v", field, validation.Fields)
		}
	}
	if f.writer.last() != nil {
		t.Error("an invalid document must never reach the store")
	}
}

func TestSubmit_ReversalCrossRules(t *testing.T) {
	f := newFixture(t)
	doc := validDoc()
	doc["EXTOURNE"] = true

	_, err := f.svc.Submit(context.Background(), doc)

	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	for _, field := range []string{"MONTANT", "DEVISE", "COMPTESOURCE"} {
		if validation.Fields[field] == "" {
			t.Errorf("expected an error on %s", field)
		}
	}
}

func TestSubmit_NormalizesAmountAndCard(t *testing.T) {
	f := newFixture(t)
	doc := validDoc()
	doc["EXTOURNE"] = true
	doc["MONTANT"] = "1.234,56"
	doc["DEVISE"] = "USD"
	doc["COMPTESOURCE"] = "0001-12345678-01"
	doc["NUMEROCARTE"] = "4111 1111 1111 1111"

	if _, err := f.svc.Submit(context.Background(), doc); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	written := f.writer.last()
	if written["MONTANT"] != 1234.56 {
		t.Errorf("MONTANT = %v", written["MONTANT"])
	}
	if written["MONTANTCONVERTI"] != "1234.56" {
		t.Errorf("MONTANTCONVERTI = %v", written["MONTANTCONVERTI"])
	}
	if written["NUMEROCARTE"] != "4111111111111111" {
		t.Errorf("NUMEROCARTE = %v", written["NUMEROCARTE"])
	}
}

func TestSubmit_EnrichesFromCustomerDetail(t *testing.T) {
	f := newFixture(t)
	f.resolver.detail = &port.CustomerDetail{
		CustomerName: "KABONGO MUKENDI",
		Accounts: []port.BackendAccount{
			{AgencyCode: "0001", AccountNumber: "12345678", Suffix: "01", CurrencyCode: "840"},
		},
	}
	doc := validDoc()
	doc["NUMEROCLIENT"] = "12345678"
	doc["COMPTESOURCE"] = "0001-12345678-01"
	doc["DEVISE"] = "CDF"

	if _, err := f.svc.Submit(context.Background(), doc); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	written := f.writer.last()
	if written["NOMCLIENT"] != "KABONGO MUKENDI" {
		t.Errorf("NOMCLIENT = %v", written["NOMCLIENT"])
	}
	if written["AGENCECLIENT"] != "0001" {
		t.Errorf("AGENCECLIENT = %v", written["AGENCECLIENT"])
	}
	// The selected account's currency wins over what the form said.
	if written["DEVISE"] != "USD" {
		t.Errorf("DEVISE = %v", written["DEVISE"])
	}
}

func TestSubmit_EnrichmentFailureDoesNotBlock(t *testing.T) {
	f := newFixture(t)
	f.resolver.err = &domain.ErrTransport{Service: "accounts", Err: context.DeadlineExceeded}
	doc := validDoc()
	doc["NUMEROCLIENT"] = "12345678"

	if _, err := f.svc.Submit(context.Background(), doc); err != nil {
		t.Fatalf("Submit must survive a failed enrichment, got %v", err)
	}
	if f.writer.last() == nil {
		t.Fatal("document was not written")
	}
}

func TestSubmit_TracksStatusTransitions(t *testing.T) {
	f := newFixture(t)

	ack, err := f.svc.Submit(context.Background(), validDoc())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	status, ok := f.svc.Status(context.Background(), ack.TrackingID)
	if !ok {
		t.Fatal("expected a tracked status")
	}
	if status.Status != "completed" {
		t.Errorf("status = %q, want completed", status.Status)
	}

	if _, ok := f.svc.Status(context.Background(), "5f0c1a2b-0000-4000-8000-000000000000"); ok {
		t.Error("unknown tracking id must not resolve")
	}
}

func TestSubmit_WriteFailureLeavesPending(t *testing.T) {
	f := newFixture(t)
	f.writer.err = &domain.ErrFunctional{Service: "elasticsearch", Status: 400, Body: "mapper_parsing_exception"}

	doc := validDoc()
	_, err := f.svc.Submit(context.Background(), doc)
	if err == nil {
		t.Fatal("expected the write failure to surface")
	}

	status, ok := f.svc.Status(context.Background(), "0b9af3c5-9f6e-4a53-8a43-1fbb3c1f3a77")
	if !ok {
		t.Fatal("expected a pending entry")
	}
	if status.Status != "pending" {
		t.Errorf("status = %q, want pending", status.Status)
	}
	if f.notifier.count() != 0 {
		t.Error("a failed write must not be notified")
	}
}

func TestSubmit_NotifiesAfterSuccessfulWrite(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.Submit(context.Background(), validDoc()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for f.notifier.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("notification never delivered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
