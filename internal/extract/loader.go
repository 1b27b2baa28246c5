package extract

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/naqeebali-shamsi/intellifill/internal/model"
)

// LoadPatterns reads a pattern library from a YAML file. The file replaces
// the built-in library entirely.
func LoadPatterns(path string) ([]PatternSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: read pattern library %s", path)
	}
	var doc struct {
		Patterns []struct {
			Key        string  `yaml:"key"`
			Type       string  `yaml:"type"`
			Expr       string  `yaml:"expr"`
			Confidence float64 `yaml:"confidence"`
		} `yaml:"patterns"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "extract: parse pattern library %s", path)
	}
	if len(doc.Patterns) == 0 {
		return nil, eris.Errorf("extract: pattern library %s has no entries", path)
	}

	specs := make([]PatternSpec, 0, len(doc.Patterns))
	for _, p := range doc.Patterns {
		specs = append(specs, PatternSpec{
			Key:               p.Key,
			Type:              model.FieldType(p.Type),
			Expr:              p.Expr,
			DefaultConfidence: p.Confidence,
		})
	}
	return specs, nil
}
