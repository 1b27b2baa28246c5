package model

import "time"

// ReprocessAttempt records one bounded, escalated re-extraction pass over a
// document. AttemptNumber is monotonically increasing per document and never
// reused. Improvement may be negative; it is recorded for audit only.
type ReprocessAttempt struct {
	ID            string    `json:"id"`
	DocumentID    string    `json:"document_id"`
	AttemptNumber int       `json:"attempt_number"` // 1..3
	SettingsTier  int       `json:"settings_tier"`
	OldConfidence float64   `json:"old_confidence"`
	NewConfidence float64   `json:"new_confidence"`
	Improvement   float64   `json:"improvement"`
	CreatedAt     time.Time `json:"created_at"`
}
