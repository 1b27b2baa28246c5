package mapper

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/naqeebali-shamsi/intellifill/internal/normalize"
)

// SynonymTable resolves whether two normalized field keys mean the same
// thing, and with what confidence. Lookups are symmetric.
type SynonymTable interface {
	Lookup(a, b string) (confidence float64, ok bool)
}

// SynonymEntry declares one synonym pair with its static confidence.
type SynonymEntry struct {
	A          string  `yaml:"a"`
	B          string  `yaml:"b"`
	Confidence float64 `yaml:"confidence"`
}

// StaticSynonyms is a SynonymTable backed by a fixed pair list.
type StaticSynonyms struct {
	pairs map[[2]string]float64
}

// NewStaticSynonyms indexes the given entries. Keys are normalized and pairs
// stored order-independently; a duplicate pair keeps the higher confidence.
func NewStaticSynonyms(entries []SynonymEntry) *StaticSynonyms {
	t := &StaticSynonyms{pairs: make(map[[2]string]float64, len(entries))}
	for _, e := range entries {
		a := normalize.Key(e.A)
		b := normalize.Key(e.B)
		if a == "" || b == "" || a == b {
			continue
		}
		k := pairKey(a, b)
		if e.Confidence > t.pairs[k] {
			t.pairs[k] = e.Confidence
		}
	}
	return t
}

// Lookup returns the configured confidence for the pair, in either order.
func (t *StaticSynonyms) Lookup(a, b string) (float64, bool) {
	conf, ok := t.pairs[pairKey(a, b)]
	return conf, ok
}

func pairKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

// LoadSynonyms reads synonym entries from a YAML file and merges them over
// the built-in defaults.
func LoadSynonyms(path string) (*StaticSynonyms, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "mapper: read synonyms %s", path)
	}
	var doc struct {
		Synonyms []SynonymEntry `yaml:"synonyms"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "mapper: parse synonyms %s", path)
	}
	return NewStaticSynonyms(append(defaultSynonymEntries(), doc.Synonyms...)), nil
}

// DefaultSynonyms returns the built-in table.
func DefaultSynonyms() *StaticSynonyms {
	return NewStaticSynonyms(defaultSynonymEntries())
}

func defaultSynonymEntries() []SynonymEntry {
	return []SynonymEntry{
		{A: "dob", B: "date_of_birth", Confidence: 0.95},
		{A: "dob", B: "birth_date", Confidence: 0.95},
		{A: "date_of_birth", B: "birth_date", Confidence: 0.95},
		{A: "phone", B: "telephone", Confidence: 0.9},
		{A: "phone", B: "phone_number", Confidence: 0.95},
		{A: "phone", B: "mobile", Confidence: 0.8},
		{A: "phone", B: "cell_phone", Confidence: 0.8},
		{A: "email", B: "email_address", Confidence: 0.95},
		{A: "email", B: "e_mail", Confidence: 0.95},
		{A: "first_name", B: "given_name", Confidence: 0.95},
		{A: "last_name", B: "surname", Confidence: 0.95},
		{A: "last_name", B: "family_name", Confidence: 0.95},
		{A: "full_name", B: "name", Confidence: 0.85},
		{A: "address", B: "street_address", Confidence: 0.85},
		{A: "address", B: "home_address", Confidence: 0.85},
		{A: "address", B: "mailing_address", Confidence: 0.8},
		{A: "zip", B: "zip_code", Confidence: 0.95},
		{A: "zip", B: "postal_code", Confidence: 0.9},
		{A: "zip_code", B: "postal_code", Confidence: 0.9},
		{A: "ssn", B: "social_security_number", Confidence: 0.95},
		{A: "ein", B: "employer_ein", Confidence: 0.9},
		{A: "salary", B: "income", Confidence: 0.8},
		{A: "salary", B: "annual_income", Confidence: 0.8},
		{A: "employer", B: "company", Confidence: 0.8},
		{A: "employer", B: "employer_name", Confidence: 0.9},
	}
}
