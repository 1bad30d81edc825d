// Package form implements the client-side half of the complaints pipeline:
// canonicalization of raw user input and the declarative draft validator.
// Everything here is pure; no I/O, no clock, no logging.
package form

import (
	"math"
	"strconv"
	"strings"
)

// amountCleaner drops regular, non-breaking and narrow non-breaking spaces
// before the thousands/decimal separators are handled.
var amountCleaner = strings.NewReplacer(" ", "", " ", "", " ", "", "\t", "")

// NormalizeAmount canonicalizes a user-typed amount: spaces stripped, "."
// treated as thousands separator and removed, the first "," converted to a
// decimal point. Returns ok=false for empty or unparseable input; it never
// panics. "1.234,56" and "1234,56" both yield 1234.56; a dotted input like
// "1234.56" yields 123456, because the dot is always a thousands separator
// under this rule and only the comma marks decimals.
func NormalizeAmount(raw string) (float64, bool) {
	s := amountCleaner.Replace(strings.TrimSpace(raw))
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.Replace(s, ",", ".", 1)

	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// Digits strips every non-digit character. Used for length-gating lookups,
// never for persistence.
func Digits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteByte(byte(r))
		}
	}
	return b.String()
}

// MaskCard formats a card number for display: digits only, grouped by four.
// Idempotent: MaskCard(MaskCard(x)) == MaskCard(x).
func MaskCard(raw string) string {
	digits := Digits(raw)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CompactCard strips the display grouping back out before transmission.
func CompactCard(raw string) string {
	return Digits(raw)
}
