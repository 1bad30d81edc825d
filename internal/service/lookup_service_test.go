package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rawbank/reclamations-gateway-go/internal/domain"
	"github.com/rawbank/reclamations-gateway-go/internal/infra/observability"
	"github.com/rawbank/reclamations-gateway-go/internal/port"
	"github.com/rawbank/reclamations-gateway-go/internal/service"

	"go.uber.org/zap"
)

// routingResolver records which lookup mode was used.
type routingResolver struct {
	byClient int
	byPhone  int
	detail   *port.CustomerDetail
	err      error
}

func (r *routingResolver) ResolveByClientNumber(ctx context.Context, clientNumber string) (*port.CustomerDetail, error) {
	r.byClient++
	return r.detail, r.err
}

func (r *routingResolver) ResolveByPhone(ctx context.Context, phone string) (*port.CustomerDetail, error) {
	r.byPhone++
	return r.detail, r.err
}

func newLookupService(resolver port.CustomerResolver) *service.LookupService {
	return service.NewLookupService(resolver, observability.NewMetrics(), zap.NewNop())
}

func TestLookup_RoutesByIdentifierLength(t *testing.T) {
	resolver := &routingResolver{detail: &port.CustomerDetail{}}
	svc := newLookupService(resolver)

	if _, err := svc.Lookup(context.Background(), "12345678"); err != nil {
		t.Fatalf("client number lookup: %v", err)
	}
	if resolver.byClient != 1 || resolver.byPhone != 0 {
		t.Errorf("8 digits must route to the client number endpoint, got client=%d phone=%d", resolver.byClient, resolver.byPhone)
	}

	if _, err := svc.Lookup(context.Background(), "0991234567"); err != nil {
		t.Fatalf("phone lookup: %v", err)
	}
	if resolver.byPhone != 1 {
		t.Errorf("10 digits must route to the phone endpoint, got %d calls", resolver.byPhone)
	}
}

func TestLookup_StripsFormattingBeforeRouting(t *testing.T) {
	resolver := &routingResolver{detail: &port.CustomerDetail{}}
	svc := newLookupService(resolver)

	if _, err := svc.Lookup(context.Background(), "099 123 45 67"); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if resolver.byPhone != 1 {
		t.Errorf("formatted phone number was not routed, got %d calls", resolver.byPhone)
	}
}

func TestLookup_RejectsOtherLengths(t *testing.T) {
	resolver := &routingResolver{}
	svc := newLookupService(resolver)

	for _, identifier := range []string{"", "1234567", "123456789", "12345678901"} {
		_, err := svc.Lookup(context.Background(), identifier)
		var validation *domain.ErrValidation
		if !errors.As(err, &validation) {
			t.Errorf("identifier %q: expected ErrValidation, got %v", identifier, err)
		}
	}
	if resolver.byClient+resolver.byPhone != 0 {
		t.Error("invalid identifiers must never reach the backend")
	}
}

func TestLookup_FlattensAccounts(t *testing.T) {
	resolver := &routingResolver{detail: &port.CustomerDetail{
		Accounts: []port.BackendAccount{
			{AgencyCode: "0001", AccountNumber: "12345678", Suffix: "01", CurrencyCode: "840"},
			{AgencyCode: "0001", AccountNumber: "12345678", Suffix: "02", CurrencyCode: "999"},
		},
	}}
	svc := newLookupService(resolver)

	accounts, err := svc.Lookup(context.Background(), "12345678")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("got %d accounts, want 2", len(accounts))
	}
	if accounts[0].ID != "0001-12345678-01" {
		t.Errorf("id = %q", accounts[0].ID)
	}
	if accounts[0].Label != "0001-12345678-01 (USD)" {
		t.Errorf("label = %q", accounts[0].Label)
	}
	// Unknown currency codes fall back to the bare identifier.
	if accounts[1].Label != "0001-12345678-02" {
		t.Errorf("label = %q", accounts[1].Label)
	}
}

func TestLookup_PropagatesBackendFailure(t *testing.T) {
	resolver := &routingResolver{err: &domain.ErrTransport{Service: "accounts", Err: context.DeadlineExceeded}}
	svc := newLookupService(resolver)

	_, err := svc.Lookup(context.Background(), "12345678")
	var transport *domain.ErrTransport
	if !errors.As(err, &transport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}
