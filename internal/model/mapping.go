package model

// MatchStrategy identifies which matching strategy produced a field mapping.
type MatchStrategy string

const (
	StrategyExact      MatchStrategy = "exact"
	StrategyFuzzy      MatchStrategy = "fuzzy"
	StrategySemantic   MatchStrategy = "semantic"
	StrategyPositional MatchStrategy = "positional"
	// StrategyNone marks an unmapped form field.
	StrategyNone MatchStrategy = "none"
)

// FieldMapping assigns a source data field to a target form field.
// SourceField == "" means the form field is unmapped; that is a result,
// not an error.
type FieldMapping struct {
	FormField      string        `json:"form_field"`
	SourceField    string        `json:"source_field,omitempty"`
	Confidence     float64       `json:"confidence"` // 0..1
	Strategy       MatchStrategy `json:"strategy"`
	ManualOverride bool          `json:"manual_override,omitempty"`
}

// Mapped reports whether the form field was assigned a source field.
func (m FieldMapping) Mapped() bool {
	return m.SourceField != ""
}
