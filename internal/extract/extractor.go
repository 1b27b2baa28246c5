// Package extract scans recognized document text for known field patterns and
// produces raw (key, value, confidence) tuples for the rest of the pipeline.
package extract

import (
	"regexp"

	"go.uber.org/zap"

	"github.com/naqeebali-shamsi/intellifill/internal/model"
	"github.com/naqeebali-shamsi/intellifill/internal/normalize"
)

// PatternSpec declares one extraction pattern. Key is the field key emitted
// for matches; an empty Key means the key is taken from the pattern's first
// capture group (labeled key:value patterns). DefaultConfidence is used when
// per-token confidence is unavailable; zero falls back to the extractor's
// neutral default.
type PatternSpec struct {
	Key               string
	Type              model.FieldType
	Expr              string
	DefaultConfidence float64
}

type pattern struct {
	spec PatternSpec
	re   *regexp.Regexp
}

// Extractor holds the compiled pattern library. Safe for concurrent use.
type Extractor struct {
	patterns []pattern
	neutral  float64
}

// New compiles the given pattern specs. A spec that fails to compile is
// logged and skipped so the remaining patterns still run.
func New(specs []PatternSpec, neutralConfidence float64) *Extractor {
	e := &Extractor{neutral: neutralConfidence}
	for _, s := range specs {
		re, err := regexp.Compile(s.Expr)
		if err != nil {
			zap.L().Warn("extract: pattern compile failed, skipping",
				zap.String("key", s.Key),
				zap.String("expr", s.Expr),
				zap.Error(err),
			)
			continue
		}
		e.patterns = append(e.patterns, pattern{spec: s, re: re})
	}
	return e
}

// Extract runs every pattern over the recognized text and returns all raw
// matches. Multiple matches for the same field type are kept as separate
// entries; deduplication happens later at merge time. A pattern producing no
// matches contributes nothing and is not an error.
func (e *Extractor) Extract(doc model.RecognizedDocument) []model.ExtractedField {
	var fields []model.ExtractedField
	for _, p := range e.patterns {
		fields = append(fields, e.matchPattern(p, doc)...)
	}
	zap.L().Debug("extract: pass complete",
		zap.String("document_id", doc.DocumentID),
		zap.Int("fields", len(fields)),
	)
	return fields
}

func (e *Extractor) matchPattern(p pattern, doc model.RecognizedDocument) []model.ExtractedField {
	idx := p.re.FindAllStringSubmatchIndex(doc.Text, -1)
	if idx == nil {
		return nil
	}

	var out []model.ExtractedField
	for _, m := range idx {
		key, value, ok := p.extractKeyValue(doc.Text, m)
		if !ok {
			continue
		}
		fieldType := p.spec.Type
		if fieldType == "" || fieldType == model.FieldTypeUnknown {
			fieldType = normalize.InferType(key)
		}
		confidence := e.spanConfidence(p.spec, doc.Tokens, m[0], m[1])
		// A match that fails its type check cannot score above neutral.
		if confidence > e.neutral && !normalize.Validate(fieldType, value) {
			zap.L().Debug("extract: value failed type validation, downgrading",
				zap.String("key", key),
				zap.String("field_type", string(fieldType)),
			)
			confidence = e.neutral
		}
		out = append(out, model.ExtractedField{
			Key:              normalize.Key(key),
			RawValue:         value,
			FieldType:        fieldType,
			Confidence:       confidence,
			SourceDocumentID: doc.DocumentID,
		})
	}
	return out
}

// extractKeyValue resolves the emitted key and raw value for one submatch
// index slice. Labeled patterns take key from group 1 and value from group 2;
// keyed patterns take the value from group 1 when present, else the whole
// match.
func (p pattern) extractKeyValue(text string, m []int) (key, value string, ok bool) {
	group := func(n int) (string, bool) {
		if 2*n+1 >= len(m) || m[2*n] < 0 {
			return "", false
		}
		return text[m[2*n]:m[2*n+1]], true
	}

	if p.spec.Key == "" {
		k, okK := group(1)
		v, okV := group(2)
		if !okK || !okV || normalize.Key(k) == "" || v == "" {
			return "", "", false
		}
		return k, v, true
	}

	if v, okV := group(1); okV && v != "" {
		return p.spec.Key, v, true
	}
	whole, _ := group(0)
	if whole == "" {
		return "", "", false
	}
	return p.spec.Key, whole, true
}

// spanConfidence averages the confidence of tokens overlapping the matched
// byte span. Missing token data degrades to the pattern default, then to the
// extractor's neutral default.
func (e *Extractor) spanConfidence(spec PatternSpec, tokens []model.Token, start, end int) float64 {
	sum := 0.0
	n := 0
	for _, t := range tokens {
		if t.End <= start || t.Start >= end {
			continue
		}
		sum += t.Confidence
		n++
	}
	if n > 0 {
		return sum / float64(n)
	}
	if spec.DefaultConfidence > 0 {
		return spec.DefaultConfidence
	}
	return e.neutral
}
