package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Account is the canonical shape the lookup flow works with, regardless of
// what the downstream account service actually returns.
type Account struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Lookup modes. A query is only ever in one mode.
const (
	LookupByClientNumber = "byClientNumber"
	LookupByPhone        = "byPhone"
)

// Digit lengths that make a query eligible per mode.
const (
	ClientNumberLen = 8
	PhoneNumberLen  = 10
)

// LookupQuery describes one identifier lookup. Digits must already be
// stripped of non-digit characters (form.Digits).
type LookupQuery struct {
	Mode    string
	Digits  string
	Enabled bool
}

// Eligible reports whether the query passes the length gate for its mode.
// Ineligible queries are inert: no request, empty result, no error.
func (q LookupQuery) Eligible() bool {
	if !q.Enabled {
		return false
	}
	switch q.Mode {
	case LookupByPhone:
		return len(q.Digits) == PhoneNumberLen
	default:
		return len(q.Digits) == ClientNumberLen
	}
}

// accountIDKeys and accountLabelKeys define the documented priority order
// used to coerce heterogeneous downstream account objects into Account.
// First present, non-empty key wins.
var (
	accountIDKeys    = []string{"id", "number", "iban", "accountNumber"}
	accountLabelKeys = []string{"label", "name", "number", "iban"}
)

// NormalizeAccount maps one raw downstream object to the canonical shape.
// idx is the fallback id when no known key is present; the label falls back
// to the resolved id.
func NormalizeAccount(raw map[string]any, idx int) Account {
	id := firstString(raw, accountIDKeys)
	if id == "" {
		id = strconv.Itoa(idx)
	}
	label := firstString(raw, accountLabelKeys)
	if label == "" {
		label = id
	}
	return Account{ID: id, Label: label}
}

// NormalizeAccounts maps a raw downstream list, skipping nil entries.
func NormalizeAccounts(raw []map[string]any) []Account {
	accounts := make([]Account, 0, len(raw))
	for i, r := range raw {
		if r == nil {
			continue
		}
		accounts = append(accounts, NormalizeAccount(r, i))
	}
	return accounts
}

func firstString(raw map[string]any, keys []string) string {
	for _, k := range keys {
		switch v := raw[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			// JSON numbers decode as float64; account numbers are integral.
			return strconv.FormatFloat(v, 'f', -1, 64)
		case fmt.Stringer:
			if s := strings.TrimSpace(v.String()); s != "" {
				return s
			}
		}
	}
	return ""
}
