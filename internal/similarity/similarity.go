// Package similarity provides the pure string and set similarity functions
// shared by the field mapper and the template matcher.
package similarity

import "github.com/agext/levenshtein"

var levParams = levenshtein.NewParams()

// Ratio returns the normalized edit-distance similarity of two strings in
// [0,1]: 1.0 for equal strings, 0.0 for fully dissimilar ones.
func Ratio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	return levenshtein.Similarity(a, b, levParams)
}

// Jaccard returns |A ∩ B| / |A ∪ B| for two field-name sets. Duplicate
// entries are collapsed. Two empty sets are identical, so the result is 1.0.
func Jaccard(a, b []string) float64 {
	setA := toSet(a)
	setB := toSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}

	intersection := 0
	for k := range setA {
		if setB[k] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// Overlap splits candidate entries into those present in the reference set
// and those missing from it, collapsing duplicates and preserving order.
func Overlap(candidate, reference []string) (matched, missing []string) {
	ref := toSet(reference)
	seen := make(map[string]bool, len(candidate))
	for _, k := range candidate {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		if ref[k] {
			matched = append(matched, k)
		} else {
			missing = append(missing, k)
		}
	}
	return matched, missing
}

func toSet(keys []string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		if k != "" {
			set[k] = true
		}
	}
	return set
}
