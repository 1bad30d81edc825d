// Package domain holds the core types of the complaints pipeline:
// the user-owned draft, the immutable wire record sent to the document
// store, account shapes and the shared error taxonomy.
package domain

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Fixed enumerations shown in the complaint form. TypeOptions is also the
// set the validator (client and gateway side) accepts for TYPERECLAMATION.
var (
	TypeOptions     = []string{"Fraude", "Chargeback", "Service", "Technique"}
	DomainOptions   = []string{"Monetique", "Cartes", "Comptes", "Digital", "Fraude", "Transfert", "Change", "Support"}
	CurrencyOptions = []string{"USD", "EUR", "CDF"}
)

// DomainMonetique promotes NUMEROCARTE to a required field.
const DomainMonetique = "Monetique"

// Device values accepted on the wire.
const (
	DeviceMobile  = "mobile"
	DeviceDesktop = "desktop"
)

// ComplaintDraft is the mutable, user-owned form state. String fields hold
// raw user input; normalization happens in the form package and when the
// draft is frozen into a ComplaintRecord.
type ComplaintDraft struct {
	Type            string
	Description     string
	Domain          string
	ClientNumber    string
	ClientPhone     string
	CardNumber      string
	TransactionDate string
	SourceAccount   string
	Amount          string
	Currency        string
	Reason          string
	IsReversal      bool
}

// NewComplaintDraft returns a draft with the form's defaults: first type,
// first currency, transaction date preset to today.
func NewComplaintDraft(now time.Time) *ComplaintDraft {
	return &ComplaintDraft{
		Type:            TypeOptions[0],
		Currency:        CurrencyOptions[0],
		TransactionDate: now.Format("2006-01-02"),
	}
}

// ComplaintRecord is the immutable wire form of a validated draft. The JSON
// keys are a fixed contract with the document store's index mapping and the
// downstream consumers; renaming any of them is a breaking change.
type ComplaintRecord struct {
	TrackingID       string   `json:"tracking_id"`
	UserAgent        string   `json:"user_agent"`
	Device           string   `json:"device"`
	SubmittedAt      string   `json:"submitted_at"`
	SubmittedAtLocal string   `json:"submitted_at_local"`
	Type             string   `json:"TYPERECLAMATION"`
	Description      string   `json:"DESCRIPTION"`
	Domain           string   `json:"DOMAINE,omitempty"`
	ClientNumber     string   `json:"NUMEROCLIENT,omitempty"`
	ClientPhone      string   `json:"TELEPHONECLIENT,omitempty"`
	CardNumber       string   `json:"NUMEROCARTE,omitempty"`
	TransactionDate  string   `json:"DATETRANSACTION,omitempty"`
	SourceAccount    string   `json:"COMPTESOURCE,omitempty"`
	Amount           *float64 `json:"MONTANT,omitempty"`
	Currency         string   `json:"DEVISE,omitempty"`
	Reason           string   `json:"MOTIF,omitempty"`
	IsReversal       bool     `json:"EXTOURNE"`
}

var mobileUA = regexp.MustCompile(`(?i)Mobile|Android|iPhone|iPad`)

// DetectDevice classifies a user agent as mobile or desktop.
func DetectDevice(userAgent string) string {
	if mobileUA.MatchString(userAgent) {
		return DeviceMobile
	}
	return DeviceDesktop
}

// NewTrackingID generates the opaque identifier correlating a submission
// with its downstream document.
func NewTrackingID() string {
	return uuid.New().String()
}

// ServerAck is the gateway's success response to a submission.
type ServerAck struct {
	TrackingID string `json:"trackingId"`
}

// SubmissionStatus reports where a tracked submission stands.
type SubmissionStatus struct {
	Status          string    `json:"status"` // pending | completed
	ComplaintNumber string    `json:"complaintNumber,omitempty"`
	UpdatedAt       time.Time `json:"updatedAt"`
}
