// Package service provides the business logic layer (use cases): wire
// document validation, server-side enrichment, the document store write
// and submission tracking.
package service

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rawbank/reclamations-gateway-go/internal/domain"
	"github.com/rawbank/reclamations-gateway-go/internal/form"
	"github.com/rawbank/reclamations-gateway-go/internal/infra/observability"
	"github.com/rawbank/reclamations-gateway-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var complaintsTracer = otel.Tracer("service/complaints")

// Server-side overrides stamped on every document regardless of what the
// client sent. The channel fields identify the web form among the bank's
// other intake channels.
const (
	overrideSite        = "WEB"
	overrideZone        = "ONLINE"
	overrideChannel     = "WEB"
	overrideDepartment  = "Direction IT / Développement Applicatif"
	initialStatus       = "new"
	submissionPending   = "pending"
	submissionCompleted = "completed"
)

// currencyCodeNames maps the accounts backend's numeric ISO currency codes
// to the labels the document store expects. "EURO" is what the downstream
// consumers read, not "EUR".
var currencyCodeNames = map[string]string{
	"181": "CDF",
	"840": "USD",
	"955": "EURO",
	"826": "GBP",
}

// ComplaintsService validates, enriches and persists complaint documents.
type ComplaintsService struct {
	writer   port.DocumentWriter
	resolver port.CustomerResolver
	notifier port.Notifier
	motifs   *MotifResolver
	tracking port.Cache[domain.SubmissionStatus]
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewComplaintsService creates the complaint submission use case.
func NewComplaintsService(writer port.DocumentWriter, resolver port.CustomerResolver, notifier port.Notifier, motifs *MotifResolver, tracking port.Cache[domain.SubmissionStatus], metrics *observability.Metrics, logger *zap.Logger) *ComplaintsService {
	return &ComplaintsService{
		writer:   writer,
		resolver: resolver,
		notifier: notifier,
		motifs:   motifs,
		tracking: tracking,
		metrics:  metrics,
		logger:   logger,
	}
}

// Submit validates the incoming document, applies server overrides and
// enrichment, writes it to the document store and returns the tracking
// acknowledgment. The document map is the wire contract; the service never
// renames client-sent keys, it only adds or normalizes values.
func (s *ComplaintsService) Submit(ctx context.Context, doc map[string]any) (*domain.ServerAck, error) {
	ctx, span := complaintsTracer.Start(ctx, "ComplaintsService.Submit")
	defer span.End()

	if doc == nil {
		doc = map[string]any{}
	}

	// The form always generates the tracking id; a document without one is
	// rejected, not repaired.
	if fields := validateWireDocument(doc); len(fields) > 0 {
		s.metrics.IncrSubmission("invalid")
		return nil, &domain.ErrValidation{Fields: fields}
	}

	trackingID := stringField(doc, "tracking_id")
	span.SetAttributes(attribute.String("complaint.tracking_id", trackingID))

	s.applyOverrides(doc)
	s.enrichFromCustomerDetail(ctx, doc)

	s.tracking.Set(trackingID, domain.SubmissionStatus{
		Status:    submissionPending,
		UpdatedAt: time.Now().UTC(),
	})

	if err := s.writer.IndexDocument(ctx, doc); err != nil {
		s.metrics.IncrSubmission("failed")
		return nil, err
	}

	s.tracking.Set(trackingID, domain.SubmissionStatus{
		Status:          submissionCompleted,
		ComplaintNumber: trackingID,
		UpdatedAt:       time.Now().UTC(),
	})
	s.metrics.IncrSubmission("accepted")
	s.logger.Info("complaint accepted",
		zap.String("tracking_id", trackingID),
		zap.String("type", stringField(doc, "TYPERECLAMATION")),
	)

	// Notification outlives the request; a canceled client must not
	// suppress it.
	go s.notify(context.WithoutCancel(ctx), doc, trackingID)

	return &domain.ServerAck{TrackingID: trackingID}, nil
}

// Status reports where a tracked submission stands.
func (s *ComplaintsService) Status(ctx context.Context, trackingID string) (*domain.SubmissionStatus, bool) {
	_, span := complaintsTracer.Start(ctx, "ComplaintsService.Status")
	defer span.End()

	status, ok := s.tracking.Get(trackingID)
	if !ok {
		return nil, false
	}
	return &status, true
}

func (s *ComplaintsService) notify(ctx context.Context, doc map[string]any, trackingID string) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.notifier.Notify(ctx, doc); err != nil {
		s.logger.Warn("flow notification failed",
			zap.String("tracking_id", trackingID),
			zap.Error(err),
		)
	}
}

// --- validation ---

// wireRule is one row of the document validation table: the field it
// blames and a predicate over the whole document.
type wireRule struct {
	field   string
	message string
	ok      func(doc map[string]any) bool
}

var wireRules = []wireRule{
	{"tracking_id", "Identifiant de suivi invalide", func(d map[string]any) bool {
		_, err := uuid.Parse(stringField(d, "tracking_id"))
		return err == nil
	}},
	{"TYPERECLAMATION", "Type requis", func(d map[string]any) bool {
		return containsOption(domain.TypeOptions, stringField(d, "TYPERECLAMATION"))
	}},
	{"DESCRIPTION", "Description trop courte", func(d map[string]any) bool {
		return utf8.RuneCountInString(strings.TrimSpace(stringField(d, "DESCRIPTION"))) >= 10
	}},
	{"user_agent", "User agent requis", func(d map[string]any) bool {
		return strings.TrimSpace(stringField(d, "user_agent")) != ""
	}},
	{"device", "Device invalide", func(d map[string]any) bool {
		device := stringField(d, "device")
		return device == domain.DeviceMobile || device == domain.DeviceDesktop
	}},
	{"submitted_at", "Horodatage invalide", func(d map[string]any) bool {
		_, err := time.Parse(time.RFC3339, stringField(d, "submitted_at"))
		return err == nil
	}},
	{"submitted_at_local", "Horodatage local invalide", func(d map[string]any) bool {
		return utf8.RuneCountInString(strings.TrimSpace(stringField(d, "submitted_at_local"))) >= 4
	}},
}

// wireCrossRules mirror the form's conditional requirements so a bypassed
// or stale client cannot slip an inconsistent document through.
var wireCrossRules = []wireRule{
	{"MONTANT", "Montant requis si remboursé", func(d map[string]any) bool {
		if !boolField(d, "EXTOURNE") {
			return true
		}
		amount, ok := amountField(d)
		return ok && amount > 0
	}},
	{"DEVISE", "Devise requise si remboursé", func(d map[string]any) bool {
		return !boolField(d, "EXTOURNE") || strings.TrimSpace(stringField(d, "DEVISE")) != ""
	}},
	{"COMPTESOURCE", "Compte source requis si remboursé", func(d map[string]any) bool {
		return !boolField(d, "EXTOURNE") || strings.TrimSpace(stringField(d, "COMPTESOURCE")) != ""
	}},
	{"NUMEROCARTE", "Numéro carte requis pour domaine Monétique", func(d map[string]any) bool {
		if stringField(d, "DOMAINE") != domain.DomainMonetique {
			return true
		}
		return form.Digits(stringField(d, "NUMEROCARTE")) != ""
	}},
}

// validateWireDocument runs every rule and collects the first failure per
// field, so the client gets the complete picture in one round trip.
func validateWireDocument(doc map[string]any) domain.FieldErrors {
	fields := domain.FieldErrors{}
	for _, r := range wireRules {
		if !r.ok(doc) {
			if _, seen := fields[r.field]; !seen {
				fields[r.field] = r.message
			}
		}
	}
	for _, r := range wireCrossRules {
		if !r.ok(doc) {
			if _, seen := fields[r.field]; !seen {
				fields[r.field] = r.message
			}
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// --- overrides and enrichment ---

// applyOverrides stamps the server-owned fields and normalizes the
// monetary and card fields the same way the form does, in case the
// document came from an older client.
func (s *ComplaintsService) applyOverrides(doc map[string]any) {
	doc["SITE"] = overrideSite
	doc["ZONE"] = overrideZone
	doc["CANALUTILISE"] = overrideChannel
	doc["DEPARTEMENT"] = overrideDepartment
	doc["status"] = initialStatus

	if stringField(doc, "MOTIFBCC") == "" {
		doc["MOTIFBCC"] = s.motifs.Resolve(stringField(doc, "TYPERECLAMATION"))
	}

	if card := stringField(doc, "NUMEROCARTE"); card != "" {
		doc["NUMEROCARTE"] = form.CompactCard(card)
	}

	if raw, ok := doc["MONTANT"].(string); ok {
		if amount, valid := form.NormalizeAmount(raw); valid {
			doc["MONTANT"] = amount
		}
	}
	if stringField(doc, "MONTANTCONVERTI") == "" {
		if amount, ok := amountField(doc); ok {
			doc["MONTANTCONVERTI"] = strconv.FormatFloat(amount, 'f', -1, 64)
		}
	}
}

// enrichFromCustomerDetail is best effort: when the document carries an
// 8-digit client number, the customer name and agency are looked up and the
// currency is corrected from the selected account. A failed lookup never
// blocks the submission.
func (s *ComplaintsService) enrichFromCustomerDetail(ctx context.Context, doc map[string]any) {
	clientNumber := form.Digits(stringField(doc, "NUMEROCLIENT"))
	if len(clientNumber) != domain.ClientNumberLen {
		return
	}

	detail, err := s.resolver.ResolveByClientNumber(ctx, clientNumber)
	if err != nil {
		s.logger.Warn("customer enrichment skipped",
			zap.String("client_number", clientNumber),
			zap.Error(err),
		)
		return
	}

	if detail.CustomerName != "" {
		doc["NOMCLIENT"] = detail.CustomerName
	}
	if len(detail.Accounts) == 0 {
		return
	}

	doc["AGENCECLIENT"] = detail.Accounts[0].AgencyCode

	selected := stringField(doc, "COMPTESOURCE")
	if selected == "" {
		return
	}
	for _, acc := range detail.Accounts {
		composed := acc.AgencyCode + "-" + acc.AccountNumber + "-" + acc.Suffix
		if composed != selected {
			continue
		}
		mapped, ok := currencyCodeNames[strings.TrimSpace(acc.CurrencyCode)]
		if !ok {
			return
		}
		if formCurrency := stringField(doc, "DEVISE"); formCurrency != "" && !strings.EqualFold(formCurrency, mapped) {
			s.logger.Warn("currency mismatch between form and account",
				zap.String("form", formCurrency),
				zap.String("account", mapped),
			)
		}
		doc["DEVISE"] = mapped
		return
	}
}

// --- field helpers ---

func stringField(doc map[string]any, key string) string {
	s, _ := doc[key].(string)
	return s
}

func boolField(doc map[string]any, key string) bool {
	b, _ := doc[key].(bool)
	return b
}

// amountField reads MONTANT whether it arrived as a JSON number or a raw
// form string.
func amountField(doc map[string]any) (float64, bool) {
	switch v := doc["MONTANT"].(type) {
	case float64:
		return v, true
	case string:
		return form.NormalizeAmount(v)
	default:
		return 0, false
	}
}

func containsOption(options []string, value string) bool {
	for _, o := range options {
		if o == value {
			return true
		}
	}
	return false
}
