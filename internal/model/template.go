package model

import "time"

// TemplateField is one saved source→target assignment inside a template.
type TemplateField struct {
	SourceField string  `json:"source_field"`
	TargetField string  `json:"target_field"`
	Confidence  float64 `json:"confidence"`
}

// Template is a saved field-mapping layout. Owned by its creator; readable
// by everyone when IsPublic. UsageCount is incremented best-effort when the
// template is applied.
type Template struct {
	ID            string          `json:"id"`
	OwnerID       string          `json:"owner_id"`
	Name          string          `json:"name"`
	FormType      string          `json:"form_type"`
	FieldMappings []TemplateField `json:"field_mappings"`
	UsageCount    int             `json:"usage_count"`
	IsPublic      bool            `json:"is_public"`
	CreatedAt     time.Time       `json:"created_at"`
}

// FieldNames returns the template's target field names.
func (t Template) FieldNames() []string {
	names := make([]string, 0, len(t.FieldMappings))
	for _, fm := range t.FieldMappings {
		names = append(names, fm.TargetField)
	}
	return names
}
