// Package normalize turns raw extracted values and field names into
// deterministic canonical forms. Canonical forms are the dedupe keys used by
// the mapper, the template matcher and the profile aggregator.
package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/naqeebali-shamsi/intellifill/internal/model"
)

// normalizeFunc canonicalizes a raw value for one field type.
type normalizeFunc func(raw string) string

// normalizers is the per-type dispatch table. Types without an entry fall
// back to plain trimming with no case folding.
var normalizers = map[model.FieldType]normalizeFunc{
	model.FieldTypeEmail:      normalizeEmail,
	model.FieldTypePhone:      normalizePhone,
	model.FieldTypeIdentifier: normalizeIdentifier,
	model.FieldTypeDate:       normalizeDate,
	model.FieldTypeNumber:     normalizeNumber,
	model.FieldTypeCurrency:   normalizeCurrency,
}

// Value canonicalizes raw for the given field type. The result is idempotent:
// normalizing a canonical form yields the same canonical form.
func Value(fieldType model.FieldType, raw string) model.NormalizedValue {
	canonical := strings.TrimSpace(raw)
	if fn, ok := normalizers[fieldType]; ok {
		canonical = fn(raw)
	}
	return model.NormalizedValue{
		FieldType:     fieldType,
		CanonicalForm: canonical,
		DisplayForm:   strings.TrimSpace(raw),
	}
}

func normalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// normalizePhone strips everything but digits. An 11-digit result starting
// with 1 loses the US country code so that "+1-555-0100" and "555-0100"
// variants collapse to the same key.
func normalizePhone(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	return digits
}

func normalizeIdentifier(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if isASCIIAlphanumeric(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// dateLayouts are tried in order; the first successful parse wins. Numeric
// orders are read month-first; two-digit years are not attempted.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"01-02-2006",
	"01.02.2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
}

// normalizeDate sweeps the known layouts and canonicalizes to ISO-8601.
// An unparseable value keeps its trimmed raw form.
func normalizeDate(raw string) string {
	v := strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return v
}

func normalizeNumber(raw string) string {
	v := strings.TrimSpace(raw)
	f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64)
	if err != nil {
		return v
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// normalizeCurrency collapses symbol and separator variants to a plain
// two-decimal amount.
func normalizeCurrency(raw string) string {
	v := strings.TrimSpace(raw)
	stripped := strings.NewReplacer("$", "", ",", "", " ", "").Replace(v)
	f, err := strconv.ParseFloat(stripped, 64)
	if err != nil {
		return v
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func isASCIIAlphanumeric(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
