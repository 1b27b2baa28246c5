// Package mapper matches a target form's fields against a document's
// extracted values using an ordered list of matching strategies.
package mapper

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/naqeebali-shamsi/intellifill/internal/model"
	"github.com/naqeebali-shamsi/intellifill/internal/normalize"
)

// ValidationError rejects malformed mapper input before any matching runs.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("mapper: invalid input: %s", e.Reason)
}

// Candidate is one document field available as a mapping source.
type Candidate struct {
	Key       string // normalized field key
	FieldType model.FieldType
	Position  int // first-seen order within the document, -1 if unknown
}

// CandidatesFromFields builds mapping candidates from extracted fields,
// collapsing duplicate keys and recording first-seen order as position.
func CandidatesFromFields(fields []model.ExtractedField) []Candidate {
	seen := make(map[string]bool, len(fields))
	var out []Candidate
	for _, f := range fields {
		key := normalize.Key(f.Key)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Candidate{Key: key, FieldType: f.FieldType, Position: len(out)})
	}
	return out
}

// result is one strategy's outcome for a target field, tagged with the
// strategy's priority (its index in the ordered strategy list).
type result struct {
	sourceKey  string
	confidence float64
	strategy   model.MatchStrategy
	priority   int
}

// betterThan orders results by confidence descending, then by strategy
// priority ascending, so an exact match beats a fuzzy match of equal
// confidence.
func (r result) betterThan(other *result) bool {
	if other == nil {
		return true
	}
	if r.confidence != other.confidence {
		return r.confidence > other.confidence
	}
	return r.priority < other.priority
}

// Mapper evaluates all strategies per target field and keeps the best
// result. Stateless apart from configuration; safe for concurrent use.
type Mapper struct {
	strategies    []Strategy
	minConfidence float64
}

// New builds a Mapper with the standard strategy order:
// exact > fuzzy > semantic > positional.
func New(synonyms SynonymTable, fuzzyThreshold, minConfidence float64) *Mapper {
	return &Mapper{
		strategies: []Strategy{
			exactStrategy{},
			fuzzyStrategy{threshold: fuzzyThreshold},
			semanticStrategy{table: synonyms},
			positionalStrategy{},
		},
		minConfidence: minConfidence,
	}
}

// Map produces one FieldMapping per form field. A target field whose best
// candidate falls below the acceptance threshold is returned unmapped rather
// than as a low-confidence guess.
func (m *Mapper) Map(form []model.FormFieldDescriptor, candidates []Candidate) ([]model.FieldMapping, error) {
	if len(form) == 0 {
		return nil, &ValidationError{Reason: "empty form field set"}
	}
	for _, f := range form {
		if normalize.Key(f.Name) == "" {
			return nil, &ValidationError{Reason: fmt.Sprintf("form field with empty name (raw %q)", f.Name)}
		}
	}

	typeByKey := make(map[string]model.FieldType, len(candidates))
	for _, c := range candidates {
		typeByKey[c.Key] = c.FieldType
	}

	mappings := make([]model.FieldMapping, 0, len(form))
	for _, target := range form {
		mappings = append(mappings, m.mapOne(target, candidates, typeByKey))
	}
	resolveConflicts(mappings)
	return mappings, nil
}

func (m *Mapper) mapOne(target model.FormFieldDescriptor, candidates []Candidate, typeByKey map[string]model.FieldType) model.FieldMapping {
	var best *result
	for prio, s := range m.strategies {
		sourceKey, confidence, ok := s.Match(target, candidates)
		if !ok {
			continue
		}
		confidence = clamp01(confidence + typeBonus(target.Type, typeByKey[sourceKey]))
		r := result{sourceKey: sourceKey, confidence: confidence, strategy: s.Name(), priority: prio}
		if r.betterThan(best) {
			best = &r
		}
	}

	if best == nil || best.confidence < m.minConfidence {
		return model.FieldMapping{
			FormField: target.Name,
			Strategy:  model.StrategyNone,
		}
	}

	zap.L().Debug("mapper: field mapped",
		zap.String("form_field", target.Name),
		zap.String("source_field", best.sourceKey),
		zap.Float64("confidence", best.confidence),
		zap.String("strategy", string(best.strategy)),
	)
	return model.FieldMapping{
		FormField:   target.Name,
		SourceField: best.sourceKey,
		Confidence:  best.confidence,
		Strategy:    best.strategy,
	}
}

// compatibleTypes lists unordered type pairs close enough to share values.
var compatibleTypes = map[[2]model.FieldType]bool{
	{model.FieldTypeNumber, model.FieldTypeCurrency}:   true,
	{model.FieldTypeNumber, model.FieldTypeIdentifier}: true,
	{model.FieldTypeName, model.FieldTypeText}:         true,
	{model.FieldTypeAddress, model.FieldTypeText}:      true,
}

// typeBonus nudges a result toward candidates whose declared type agrees
// with the target field's and away from clear mismatches. Untyped sides are
// neutral.
func typeBonus(target, source model.FieldType) float64 {
	if target == "" || source == "" ||
		target == model.FieldTypeUnknown || source == model.FieldTypeUnknown {
		return 0
	}
	switch {
	case target == source:
		return 0.1
	case compatibleTypes[[2]model.FieldType{target, source}],
		compatibleTypes[[2]model.FieldType{source, target}]:
		return 0.05
	case target == model.FieldTypeText || source == model.FieldTypeText:
		return 0
	}
	return -0.1
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// resolveConflicts keeps each source field only on the form field it maps to
// with the highest confidence; losing form fields revert to unmapped. Ties
// keep the earlier form field.
func resolveConflicts(mappings []model.FieldMapping) {
	bestIdx := make(map[string]int)
	for i, m := range mappings {
		if m.SourceField == "" {
			continue
		}
		j, ok := bestIdx[m.SourceField]
		if !ok {
			bestIdx[m.SourceField] = i
			continue
		}
		loser := i
		if m.Confidence > mappings[j].Confidence {
			bestIdx[m.SourceField] = i
			loser = j
		}
		mappings[loser] = model.FieldMapping{
			FormField: mappings[loser].FormField,
			Strategy:  model.StrategyNone,
		}
	}
}

// ApplyOverride pins a manual source assignment for a form field, bypassing
// all strategies. The override carries confidence 1.0.
func ApplyOverride(mappings []model.FieldMapping, formField, sourceField string) []model.FieldMapping {
	for i := range mappings {
		if mappings[i].FormField != formField {
			continue
		}
		mappings[i].SourceField = sourceField
		mappings[i].Confidence = 1.0
		mappings[i].ManualOverride = true
		return mappings
	}
	mappings = append(mappings, model.FieldMapping{
		FormField:      formField,
		SourceField:    sourceField,
		Confidence:     1.0,
		ManualOverride: true,
	})
	return mappings
}
