// Package profile merges normalized field values across a user's processed
// documents into a cached, confidence-scored profile.
package profile

import (
	"sort"
	"time"

	"github.com/naqeebali-shamsi/intellifill/internal/model"
	"github.com/naqeebali-shamsi/intellifill/internal/normalize"
)

// Aggregate folds a user's extracted fields (from successfully processed
// documents) into a fresh Profile. Per field key it keeps distinct canonical
// values in first-seen order, counts contributing documents, and scores
// confidence as the unweighted mean of each document's best confidence for
// that key, on a 0-100 scale.
func Aggregate(userID string, fields []model.ExtractedField, now time.Time) *model.Profile {
	type keyState struct {
		values []model.ProfileValue
		seen   map[string]bool
		// best confidence per contributing document
		perDoc map[string]float64
	}

	states := make(map[string]*keyState)
	order := make([]string, 0)
	docs := make(map[string]bool)

	for _, f := range fields {
		key := normalize.Key(f.Key)
		if key == "" {
			continue
		}
		docs[f.SourceDocumentID] = true

		st, ok := states[key]
		if !ok {
			st = &keyState{seen: make(map[string]bool), perDoc: make(map[string]float64)}
			states[key] = st
			order = append(order, key)
		}

		nv := normalize.Value(f.FieldType, f.RawValue)
		if nv.CanonicalForm != "" && !st.seen[nv.CanonicalForm] {
			st.seen[nv.CanonicalForm] = true
			st.values = append(st.values, model.ProfileValue{
				Canonical: nv.CanonicalForm,
				Display:   nv.DisplayForm,
			})
		}
		if c, ok := st.perDoc[f.SourceDocumentID]; !ok || f.Confidence > c {
			st.perDoc[f.SourceDocumentID] = f.Confidence
		}
	}

	p := &model.Profile{
		UserID:         userID,
		Fields:         make(map[string]model.ProfileField, len(states)),
		DocumentCount:  len(docs),
		LastAggregated: now,
	}
	sort.Strings(order)
	for _, key := range order {
		st := states[key]
		sum := 0.0
		for _, c := range st.perDoc {
			sum += c
		}
		p.Fields[key] = model.ProfileField{
			Key:         key,
			Values:      st.values,
			SourceCount: len(st.perDoc),
			Confidence:  sum / float64(len(st.perDoc)) * 100,
			LastUpdated: now,
		}
	}
	return p
}

// applyManual merges one user-supplied value into an aggregated profile.
// The manual contribution counts as one extra source at confidence 100,
// whether or not its canonical form is new.
func applyManual(p *model.Profile, key string, fieldType model.FieldType, raw string, now time.Time) {
	nv := normalize.Value(fieldType, raw)

	f, ok := p.Fields[key]
	if !ok {
		p.Fields[key] = model.ProfileField{
			Key:         key,
			Values:      []model.ProfileValue{{Canonical: nv.CanonicalForm, Display: nv.DisplayForm}},
			SourceCount: 1,
			Confidence:  100,
			LastUpdated: now,
		}
		return
	}

	exists := false
	for _, v := range f.Values {
		if v.Canonical == nv.CanonicalForm {
			exists = true
			break
		}
	}
	if !exists {
		f.Values = append(f.Values, model.ProfileValue{Canonical: nv.CanonicalForm, Display: nv.DisplayForm})
	}
	f.Confidence = (f.Confidence*float64(f.SourceCount) + 100) / float64(f.SourceCount+1)
	f.SourceCount++
	f.LastUpdated = now
	p.Fields[key] = f
}
