package templates

import (
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/naqeebali-shamsi/intellifill/internal/normalize"
)

// FormTypeUnknown is returned when no type in the library scores at all.
const FormTypeUnknown = "unknown"

// FormTypeMatch is the detected form type with the literal library keywords
// that matched.
type FormTypeMatch struct {
	FormType        string   `json:"form_type"`
	Score           float64  `json:"score"`
	MatchedKeywords []string `json:"matched_keywords"`
}

// DetectFormType scores every type in the keyword library against the
// candidate field names using the same adjusted-similarity machinery as
// template matching, and returns the best-scoring type. Library order does
// not matter; ties resolve alphabetically for determinism.
func (m *Matcher) DetectFormType(candidateFields []string, library map[string][]string) (FormTypeMatch, error) {
	keys := normalize.KeySet(candidateFields)
	if len(keys) == 0 {
		return FormTypeMatch{}, ErrNoFields
	}

	types := make([]string, 0, len(library))
	for ft := range library {
		types = append(types, ft)
	}
	sort.Strings(types)

	best := FormTypeMatch{FormType: FormTypeUnknown}
	for _, ft := range types {
		keywords := normalize.KeySet(library[ft])
		// Score from the keyword side so MatchedKeywords reports which
		// library terms were seen in the candidate set.
		score, matched := m.adjustedSimilarity(keywords, keys)
		if score > best.Score {
			best = FormTypeMatch{FormType: ft, Score: score, MatchedKeywords: matched}
		}
	}
	return best, nil
}

// DefaultFormTypeLibrary is the built-in per-type keyword library.
func DefaultFormTypeLibrary() map[string][]string {
	return map[string][]string{
		"tax": {
			"w2", "1099", "ein", "employer_ein", "wages", "federal_tax",
			"state_tax", "ssn", "tax_year", "withholding",
		},
		"medical": {
			"patient", "date_of_birth", "diagnosis", "physician", "insurance",
			"policy_number", "group_number", "allergies",
		},
		"employment": {
			"employee", "employer", "position", "salary", "start_date",
			"department", "supervisor", "work_email",
		},
		"financial": {
			"account_number", "routing_number", "bank", "balance",
			"statement_date", "institution",
		},
		"legal": {
			"plaintiff", "defendant", "court", "case_number", "attorney",
			"filing_date", "jurisdiction",
		},
		"application": {
			"applicant", "first_name", "last_name", "email", "phone",
			"address", "signature", "date",
		},
	}
}

// LoadFormTypeLibrary reads a keyword library from a YAML file. The file
// replaces the built-in library entirely.
func LoadFormTypeLibrary(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "templates: read form type library %s", path)
	}
	var doc struct {
		FormTypes map[string][]string `yaml:"form_types"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "templates: parse form type library %s", path)
	}
	if len(doc.FormTypes) == 0 {
		return nil, eris.Errorf("templates: form type library %s has no entries", path)
	}
	return doc.FormTypes, nil
}
