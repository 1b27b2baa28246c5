package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// keyFolder strips combining marks so that accented field names ("prénom")
// compare equal to their ASCII spellings before the ASCII pass below.
var keyFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Key normalizes a field name into the canonical key shared by the extractor,
// the mapper and the template matcher: lowercase, runs of whitespace, hyphens
// and underscores collapsed to a single underscore, all other
// non-alphanumerics stripped, leading/trailing underscores trimmed.
func Key(name string) string {
	folded, _, err := transform.String(keyFolder, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	b.Grow(len(folded))
	pendingSep := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsSpace(r) || r == '-' || r == '_':
			pendingSep = true
		case isASCIIAlphanumeric(r):
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		default:
			// Other punctuation is stripped without acting as a separator.
		}
	}
	return b.String()
}

// KeySet normalizes a list of field names into a deduplicated set of keys,
// preserving first-seen order. Empty keys are dropped.
func KeySet(names []string) []string {
	seen := make(map[string]bool, len(names))
	keys := make([]string, 0, len(names))
	for _, n := range names {
		k := Key(n)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	return keys
}
