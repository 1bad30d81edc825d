package form

import (
	"time"

	"github.com/rawbank/reclamations-gateway-go/internal/domain"
)

// Validation is a two-stage pass over the draft: a base rule table
// (field → predicate) followed by cross-field rules. Both stages accumulate
// into the same FieldErrors so the user sees every failure at once; a
// cross-field rule never overwrites a base error already set for its field.

type baseRule struct {
	field   string
	message string
	ok      func(d *domain.ComplaintDraft) bool
}

var baseRules = []baseRule{
	{
		field:   "type",
		message: "Type requis",
		ok: func(d *domain.ComplaintDraft) bool {
			return contains(domain.TypeOptions, d.Type)
		},
	},
	{
		field:   "description",
		message: "Description trop courte",
		ok: func(d *domain.ComplaintDraft) bool {
			return len([]rune(d.Description)) >= 10
		},
	},
}

type crossRule func(d *domain.ComplaintDraft, errs domain.FieldErrors)

var crossRules = []crossRule{
	// A reversal request must name what to reverse and where from.
	func(d *domain.ComplaintDraft, errs domain.FieldErrors) {
		if !d.IsReversal {
			return
		}
		if amount, ok := NormalizeAmount(d.Amount); !ok {
			setIfAbsent(errs, "amount", "Montant requis si remboursé")
		} else if amount <= 0 {
			setIfAbsent(errs, "amount", "Montant invalide")
		}
		if d.Currency == "" {
			setIfAbsent(errs, "currency", "Devise requise si remboursé")
		}
		if d.SourceAccount == "" {
			setIfAbsent(errs, "sourceAccount", "Compte source requis si remboursé")
		}
	},
	func(d *domain.ComplaintDraft, errs domain.FieldErrors) {
		if d.Domain == domain.DomainMonetique && CompactCard(d.CardNumber) == "" {
			setIfAbsent(errs, "cardNumber", "Numéro carte requis pour domaine Monétique")
		}
	},
}

// Validate runs the full rule set over the draft. A nil result means the
// draft is ready to be frozen into a wire record.
func Validate(d *domain.ComplaintDraft) domain.FieldErrors {
	errs := domain.FieldErrors{}
	for _, r := range baseRules {
		if !r.ok(d) {
			errs[r.field] = r.message
		}
	}
	for _, r := range crossRules {
		r(d, errs)
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Finalize freezes a validated draft into its immutable wire form. The
// caller must have run Validate first; Finalize does not re-check.
func Finalize(d *domain.ComplaintDraft, userAgent string, now time.Time) *domain.ComplaintRecord {
	rec := &domain.ComplaintRecord{
		TrackingID:       domain.NewTrackingID(),
		UserAgent:        userAgent,
		Device:           domain.DetectDevice(userAgent),
		SubmittedAt:      now.UTC().Format(time.RFC3339),
		SubmittedAtLocal: now.Format("02/01/2006 15:04:05"),
		Type:             d.Type,
		Description:      d.Description,
		Domain:           d.Domain,
		ClientNumber:     d.ClientNumber,
		ClientPhone:      d.ClientPhone,
		CardNumber:       CompactCard(d.CardNumber),
		TransactionDate:  d.TransactionDate,
		SourceAccount:    d.SourceAccount,
		Currency:         d.Currency,
		Reason:           d.Reason,
		IsReversal:       d.IsReversal,
	}
	if amount, ok := NormalizeAmount(d.Amount); ok {
		rec.Amount = &amount
	}
	return rec
}

func setIfAbsent(errs domain.FieldErrors, field, message string) {
	if _, exists := errs[field]; !exists {
		errs[field] = message
	}
}

func contains(options []string, v string) bool {
	for _, o := range options {
		if o == v {
			return true
		}
	}
	return false
}
