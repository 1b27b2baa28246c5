package model

import "time"

// ProfileValue is one distinct canonical value with the display form of its
// first occurrence.
type ProfileValue struct {
	Canonical string `json:"canonical"`
	Display   string `json:"display"`
}

// ProfileField aggregates one field key across all of a user's documents.
// Values holds distinct canonical forms in first-seen order.
type ProfileField struct {
	Key         string         `json:"key"`
	Values      []ProfileValue `json:"values"`
	SourceCount int            `json:"source_count"`
	Confidence  float64        `json:"confidence"` // 0..100
	LastUpdated time.Time      `json:"last_updated"`
}

// Profile is the cached, confidence-scored merge of a user's documents.
type Profile struct {
	UserID         string                  `json:"user_id"`
	Fields         map[string]ProfileField `json:"fields"`
	DocumentCount  int                     `json:"document_count"`
	LastAggregated time.Time               `json:"last_aggregated"`
}
