// Package templates ranks saved field-mapping templates against a new
// field-name set and detects form types from keyword libraries.
package templates

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/naqeebali-shamsi/intellifill/internal/model"
	"github.com/naqeebali-shamsi/intellifill/internal/normalize"
	"github.com/naqeebali-shamsi/intellifill/internal/similarity"
)

// ErrNoFields rejects an empty candidate field-name set before matching runs.
var ErrNoFields = eris.New("templates: empty candidate field set")

// TemplateMatch is one ranked template with its adjusted similarity and the
// candidate field names that matched (exactly or fuzzily).
type TemplateMatch struct {
	Template      model.Template `json:"template"`
	Similarity    float64        `json:"similarity"`
	MatchedFields []string       `json:"matched_fields"`
}

// Matcher scores templates by Jaccard similarity with fuzzy partial credit.
// Stateless; safe for concurrent use.
type Matcher struct {
	minSimilarity  float64
	fuzzyThreshold float64
}

// NewMatcher builds a Matcher. Templates scoring below minSimilarity are
// discarded; near-miss field names count fractionally when their edit
// ratio reaches fuzzyThreshold.
func NewMatcher(minSimilarity, fuzzyThreshold float64) *Matcher {
	return &Matcher{minSimilarity: minSimilarity, fuzzyThreshold: fuzzyThreshold}
}

// Match ranks the given templates against the candidate field names,
// highest similarity first. A template with zero overlap simply drops out;
// only an empty candidate set is an error.
func (m *Matcher) Match(candidateFields []string, tmpls []model.Template) ([]TemplateMatch, error) {
	keys := normalize.KeySet(candidateFields)
	if len(keys) == 0 {
		return nil, ErrNoFields
	}

	var matches []TemplateMatch
	for _, t := range tmpls {
		score, matched := m.adjustedSimilarity(keys, normalize.KeySet(t.FieldNames()))
		if score < m.minSimilarity {
			continue
		}
		matches = append(matches, TemplateMatch{Template: t, Similarity: score, MatchedFields: matched})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		if matches[i].Template.UsageCount != matches[j].Template.UsageCount {
			return matches[i].Template.UsageCount > matches[j].Template.UsageCount
		}
		return matches[i].Template.Name < matches[j].Template.Name
	})
	return matches, nil
}

// adjustedSimilarity computes Jaccard over the two key sets, then adds
// fractional credit for candidate keys whose best fuzzy ratio against the
// reference reaches the threshold. The denominator stays the exact union
// size, so the score remains within [0,1].
func (m *Matcher) adjustedSimilarity(candidate, reference []string) (float64, []string) {
	if len(candidate) == 0 || len(reference) == 0 {
		return 0, nil
	}

	matched, missing := similarity.Overlap(candidate, reference)
	intersection := float64(len(matched))
	union := float64(len(candidate) + len(reference) - len(matched))

	for _, k := range missing {
		best := 0.0
		for _, r := range reference {
			if ratio := similarity.Ratio(k, r); ratio > best {
				best = ratio
			}
		}
		if best >= m.fuzzyThreshold {
			intersection += best
			matched = append(matched, k)
		}
	}

	return intersection / union, matched
}

// UsageStore is the slice of the persistence layer the usage counter needs.
type UsageStore interface {
	IncrementTemplateUsage(ctx context.Context, templateID string) error
}

// RecordUsage bumps a template's usage counter. Best-effort: a failure is
// logged and swallowed, never surfaced to the caller.
func RecordUsage(ctx context.Context, store UsageStore, templateID string) {
	if store == nil || templateID == "" {
		return
	}
	if err := store.IncrementTemplateUsage(ctx, templateID); err != nil {
		zap.L().Warn("templates: usage increment failed",
			zap.String("template_id", templateID),
			zap.Error(err),
		)
	}
}
