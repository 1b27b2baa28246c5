package model

import "time"

// DocumentStatus represents the processing state of an uploaded document.
type DocumentStatus string

const (
	DocStatusUploaded   DocumentStatus = "uploaded"
	DocStatusQueued     DocumentStatus = "queued"
	DocStatusProcessing DocumentStatus = "processing"
	DocStatusCompleted  DocumentStatus = "completed"
	DocStatusFailed     DocumentStatus = "failed"
)

// IsTerminal reports whether the status is a finished state (success or failure).
func (s DocumentStatus) IsTerminal() bool {
	return s == DocStatusCompleted || s == DocStatusFailed
}

// Document is a scanned document owned by a user. The recognition and queue
// collaborators own the underlying file; the pipeline references it by id.
type Document struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	Name       string         `json:"name"`
	Status     DocumentStatus `json:"status"`
	Confidence float64        `json:"confidence"` // recognition summary, 0..1
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Token is one recognized token with its confidence and byte offsets into
// the recognized text.
type Token struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"` // 0..1
	Start      int     `json:"start"`
	End        int     `json:"end"`
}

// RecognizedDocument is the output of the recognition collaborator: full text
// plus optional per-token confidence scores.
type RecognizedDocument struct {
	DocumentID string  `json:"document_id"`
	Text       string  `json:"text"`
	Tokens     []Token `json:"tokens,omitempty"`
	Confidence float64 `json:"confidence"` // overall summary, 0..1
}

// ExtractionSettings are handed to the extraction collaborator. Values are
// escalated per reprocessing tier.
type ExtractionSettings struct {
	DPI               int           `json:"dpi"`
	AdaptiveThreshold bool          `json:"adaptive_threshold"`
	Deskew            bool          `json:"deskew"`
	NoiseReduction    bool          `json:"noise_reduction"`
	Timeout           time.Duration `json:"timeout"`
	Priority          string        `json:"priority"` // normal | high | urgent
}
