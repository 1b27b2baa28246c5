// Package store persists documents, extracted fields, reprocessing attempts,
// templates and saved mappings behind a driver-agnostic interface.
package store

import (
	"context"
	"errors"

	"github.com/naqeebali-shamsi/intellifill/internal/model"
)

// ErrNotFound reports a missing row. Wrapped with context by each driver;
// check with errors.Is.
var ErrNotFound = errors.New("store: not found")

// Store defines the persistence interface for the form-filling pipeline.
type Store interface {
	// Documents
	CreateDocument(ctx context.Context, doc *model.Document) error
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	ListDocuments(ctx context.Context, userID string) ([]model.Document, error)
	// BeginProcessing conditionally flips the document to processing.
	// Returns false without error when it is already in flight.
	BeginProcessing(ctx context.Context, id string) (bool, error)
	FinishProcessing(ctx context.Context, id string, status model.DocumentStatus, confidence float64) error

	// Extracted fields. A new extraction pass replaces the document's
	// fields wholesale.
	ReplaceFields(ctx context.Context, documentID string, fields []model.ExtractedField) error
	FieldsForDocument(ctx context.Context, documentID string) ([]model.ExtractedField, error)
	// FieldsForUser returns fields from the user's successfully processed
	// documents, oldest document first.
	FieldsForUser(ctx context.Context, userID string) ([]model.ExtractedField, error)

	// Reprocess attempts
	MaxAttemptNumber(ctx context.Context, documentID string) (int, error)
	CreateAttempt(ctx context.Context, attempt *model.ReprocessAttempt) error
	UpdateAttemptOutcome(ctx context.Context, attemptID string, newConfidence, improvement float64) error
	ListAttempts(ctx context.Context, documentID string) ([]model.ReprocessAttempt, error)

	// Templates
	CreateTemplate(ctx context.Context, t *model.Template) error
	// ListVisibleTemplates returns the user's own templates plus public ones.
	ListVisibleTemplates(ctx context.Context, userID string) ([]model.Template, error)
	IncrementTemplateUsage(ctx context.Context, templateID string) error

	// Saved mappings, keyed by (document, form)
	SaveMappings(ctx context.Context, documentID, formID string, mappings []model.FieldMapping) error
	GetMappings(ctx context.Context, documentID, formID string) ([]model.FieldMapping, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
