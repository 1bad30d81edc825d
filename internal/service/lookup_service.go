package service

import (
	"context"
	"strings"

	"github.com/rawbank/reclamations-gateway-go/internal/domain"
	"github.com/rawbank/reclamations-gateway-go/internal/form"
	"github.com/rawbank/reclamations-gateway-go/internal/infra/observability"
	"github.com/rawbank/reclamations-gateway-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var lookupTracer = otel.Tracer("service/lookup")

// LookupService is the gateway side of the account lookup passthrough:
// it gates on identifier shape, calls the accounts backend and flattens
// the response into the {id, label} pairs the form consumes.
type LookupService struct {
	resolver port.CustomerResolver
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewLookupService creates the account lookup use case.
func NewLookupService(resolver port.CustomerResolver, metrics *observability.Metrics, logger *zap.Logger) *LookupService {
	return &LookupService{resolver: resolver, metrics: metrics, logger: logger}
}

// Lookup resolves the accounts for a client number or phone number. An
// identifier of the wrong shape is a validation error, not a backend call.
func (s *LookupService) Lookup(ctx context.Context, identifier string) ([]domain.Account, error) {
	ctx, span := lookupTracer.Start(ctx, "LookupService.Lookup")
	defer span.End()

	digits := form.Digits(identifier)
	var (
		detail *port.CustomerDetail
		err    error
	)
	switch len(digits) {
	case domain.ClientNumberLen:
		span.SetAttributes(attribute.String("lookup.mode", string(domain.LookupByClientNumber)))
		detail, err = s.resolver.ResolveByClientNumber(ctx, digits)
	case domain.PhoneNumberLen:
		span.SetAttributes(attribute.String("lookup.mode", string(domain.LookupByPhone)))
		detail, err = s.resolver.ResolveByPhone(ctx, digits)
	default:
		s.metrics.IncrLookup("invalid")
		return nil, &domain.ErrValidation{Fields: domain.FieldErrors{
			"identifier": "Identifiant invalide: 8 chiffres (numéro client) ou 10 chiffres (téléphone)",
		}}
	}
	if err != nil {
		s.metrics.IncrLookup("failed")
		return nil, err
	}

	accounts := flattenAccounts(detail)
	s.metrics.IncrLookup("ok")
	s.logger.Debug("account lookup resolved",
		zap.Int("digits", len(digits)),
		zap.Int("accounts", len(accounts)),
	)
	span.SetAttributes(attribute.Int("lookup.accounts", len(accounts)))
	return accounts, nil
}

// flattenAccounts turns backend account entries into selectable options.
// The id format agency-number-suffix is what the submission's COMPTESOURCE
// carries, so it must match what enrichment recomposes.
func flattenAccounts(detail *port.CustomerDetail) []domain.Account {
	if detail == nil {
		return []domain.Account{}
	}
	accounts := make([]domain.Account, 0, len(detail.Accounts))
	for _, acc := range detail.Accounts {
		id := acc.AgencyCode + "-" + acc.AccountNumber + "-" + acc.Suffix
		label := id
		if name, ok := currencyCodeNames[strings.TrimSpace(acc.CurrencyCode)]; ok {
			label = id + " (" + name + ")"
		}
		accounts = append(accounts, domain.Account{ID: id, Label: label})
	}
	return accounts
}
