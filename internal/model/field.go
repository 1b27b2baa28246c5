package model

import "encoding/json"

// FieldType classifies a field value for normalization and validation.
type FieldType string

const (
	FieldTypeText       FieldType = "text"
	FieldTypeEmail      FieldType = "email"
	FieldTypePhone      FieldType = "phone"
	FieldTypeDate       FieldType = "date"
	FieldTypeNumber     FieldType = "number"
	FieldTypeCurrency   FieldType = "currency"
	FieldTypeAddress    FieldType = "address"
	FieldTypeName       FieldType = "name"
	FieldTypeIdentifier FieldType = "identifier"
	FieldTypeUnknown    FieldType = "unknown"
)

// ExtractedField is one raw (key, value, confidence) tuple produced by an
// extraction pass. Immutable; a later reprocessing attempt supersedes the
// document's fields wholesale rather than mutating them.
type ExtractedField struct {
	Key              string    `json:"key"`
	RawValue         string    `json:"raw_value"`
	FieldType        FieldType `json:"field_type"`
	Confidence       float64   `json:"confidence"` // 0..1
	SourceDocumentID string    `json:"source_document_id"`
}

// NormalizedValue is the deterministic canonical form of an extracted value.
// CanonicalForm is the dedupe key used everywhere else in the pipeline;
// DisplayForm preserves the original formatting of the first occurrence seen
// for that canonical form.
type NormalizedValue struct {
	FieldType     FieldType `json:"field_type"`
	CanonicalForm string    `json:"canonical_form"`
	DisplayForm   string    `json:"display_form"`
}

// FormFieldDescriptor describes one fillable field of a target form, as
// supplied by the form-parsing collaborator. Position is the zero-based
// layout order, or -1 when layout information is unavailable.
type FormFieldDescriptor struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Position int       `json:"position"`
}

// UnmarshalJSON defaults an absent position to -1 so a descriptor without
// layout information is never read as layout position 0.
func (d *FormFieldDescriptor) UnmarshalJSON(data []byte) error {
	type descriptor FormFieldDescriptor
	aux := struct {
		descriptor
		Position *int `json:"position"`
	}{}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*d = FormFieldDescriptor(aux.descriptor)
	if aux.Position == nil {
		d.Position = -1
	} else {
		d.Position = *aux.Position
	}
	return nil
}
