package extract

import "github.com/naqeebali-shamsi/intellifill/internal/model"

// DefaultPatterns is the built-in pattern library. The generic labeled
// pattern captures "Label: value" lines; the typed patterns pick up
// well-known formats wherever they appear in the text.
func DefaultPatterns() []PatternSpec {
	return []PatternSpec{
		// Labeled key:value lines. Key comes from capture group 1.
		{
			Expr: `(?m)^[ \t]*([A-Za-z][A-Za-z0-9 \t_/-]{1,40}?)[ \t]*[:=][ \t]*(\S.*?)[ \t]*$`,
		},
		{
			Key:  "email",
			Type: model.FieldTypeEmail,
			Expr: `[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`,
		},
		{
			Key:  "phone",
			Type: model.FieldTypePhone,
			Expr: `\+?1?[-.\s]?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`,
		},
		{
			Key:  "ssn",
			Type: model.FieldTypeIdentifier,
			Expr: `\b\d{3}-\d{2}-\d{4}\b`,
		},
		{
			Key:  "date",
			Type: model.FieldTypeDate,
			Expr: `\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`,
		},
		{
			Key:  "amount",
			Type: model.FieldTypeCurrency,
			Expr: `\$[ \t]?[\d,]+(?:\.\d{2})?`,
		},
		{
			Key:  "zip_code",
			Type: model.FieldTypeAddress,
			Expr: `\b\d{5}(?:-\d{4})?\b`,
		},
	}
}
