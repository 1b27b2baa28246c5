package mapper

import (
	"github.com/naqeebali-shamsi/intellifill/internal/model"
	"github.com/naqeebali-shamsi/intellifill/internal/normalize"
	"github.com/naqeebali-shamsi/intellifill/internal/similarity"
)

// Strategy attempts to match one target form field against the document's
// candidate fields. Implementations are stateless and evaluated in a fixed
// priority order by the Mapper.
type Strategy interface {
	Name() model.MatchStrategy
	Match(target model.FormFieldDescriptor, candidates []Candidate) (sourceKey string, confidence float64, ok bool)
}

// exactStrategy matches on case-insensitive equality of normalized names.
type exactStrategy struct{}

func (exactStrategy) Name() model.MatchStrategy { return model.StrategyExact }

func (exactStrategy) Match(target model.FormFieldDescriptor, candidates []Candidate) (string, float64, bool) {
	targetKey := normalize.Key(target.Name)
	for _, c := range candidates {
		if c.Key == targetKey {
			return c.Key, 1.0, true
		}
	}
	return "", 0, false
}

// fuzzyStrategy matches on edit-distance ratio, accepted only at or above
// the configured threshold. Confidence is the ratio itself.
type fuzzyStrategy struct {
	threshold float64
}

func (fuzzyStrategy) Name() model.MatchStrategy { return model.StrategyFuzzy }

func (s fuzzyStrategy) Match(target model.FormFieldDescriptor, candidates []Candidate) (string, float64, bool) {
	targetKey := normalize.Key(target.Name)
	bestKey := ""
	bestRatio := 0.0
	for _, c := range candidates {
		if r := similarity.Ratio(targetKey, c.Key); r > bestRatio {
			bestKey, bestRatio = c.Key, r
		}
	}
	if bestKey == "" || bestRatio < s.threshold {
		return "", 0, false
	}
	return bestKey, bestRatio, true
}

// semanticStrategy matches through a pluggable synonym table with a static
// confidence per pair.
type semanticStrategy struct {
	table SynonymTable
}

func (semanticStrategy) Name() model.MatchStrategy { return model.StrategySemantic }

func (s semanticStrategy) Match(target model.FormFieldDescriptor, candidates []Candidate) (string, float64, bool) {
	if s.table == nil {
		return "", 0, false
	}
	targetKey := normalize.Key(target.Name)
	bestKey := ""
	bestConf := 0.0
	for _, c := range candidates {
		if conf, ok := s.table.Lookup(targetKey, c.Key); ok && conf > bestConf {
			bestKey, bestConf = c.Key, conf
		}
	}
	if bestKey == "" {
		return "", 0, false
	}
	return bestKey, bestConf, true
}

// positionalStrategy matches by relative layout order when both sides carry
// position information. Confidence falls off with positional distance.
type positionalStrategy struct{}

func (positionalStrategy) Name() model.MatchStrategy { return model.StrategyPositional }

func (positionalStrategy) Match(target model.FormFieldDescriptor, candidates []Candidate) (string, float64, bool) {
	if target.Position < 0 {
		return "", 0, false
	}
	bestKey := ""
	bestDist := -1
	for _, c := range candidates {
		if c.Position < 0 {
			continue
		}
		dist := target.Position - c.Position
		if dist < 0 {
			dist = -dist
		}
		if bestDist < 0 || dist < bestDist {
			bestKey, bestDist = c.Key, dist
		}
	}
	if bestKey == "" {
		return "", 0, false
	}
	return bestKey, 1.0 / float64(1+bestDist), true
}
