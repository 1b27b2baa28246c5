package reprocess

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/naqeebali-shamsi/intellifill/internal/model"
	"github.com/naqeebali-shamsi/intellifill/internal/resilience"
)

// Store is the slice of the persistence layer the reprocessing service needs.
type Store interface {
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	// BeginProcessing flips the document to processing only if it is not
	// already there. Returns false when another request won the race.
	BeginProcessing(ctx context.Context, id string) (bool, error)
	FinishProcessing(ctx context.Context, id string, status model.DocumentStatus, confidence float64) error
	MaxAttemptNumber(ctx context.Context, documentID string) (int, error)
	CreateAttempt(ctx context.Context, attempt *model.ReprocessAttempt) error
	UpdateAttemptOutcome(ctx context.Context, attemptID string, newConfidence, improvement float64) error
}

// Dispatcher hands a queued attempt to whatever executes the extraction.
type Dispatcher interface {
	Dispatch(ctx context.Context, attempt model.ReprocessAttempt, settings model.ExtractionSettings) error
}

// Config tunes the reprocessing service.
type Config struct {
	MaxAttempts  int
	MaxBatchSize int
	// DispatchRate caps dispatches per second across the whole service.
	DispatchRate float64
	DispatchBurst int
	// Concurrency bounds the batch fan-out.
	Concurrency int
}

// Service runs eligibility-guarded, rate-limited reprocessing requests.
type Service struct {
	store      Store
	dispatcher Dispatcher
	policy     Policy
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
	maxBatch   int
	workers    int
}

// NewService wires a Service from its dependencies.
func NewService(store Store, dispatcher Dispatcher, cfg Config) *Service {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 50
	}
	if cfg.DispatchRate <= 0 {
		cfg.DispatchRate = 10
	}
	if cfg.DispatchBurst <= 0 {
		cfg.DispatchBurst = 5
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("queue", "dispatch")
	return &Service{
		store:      store,
		dispatcher: dispatcher,
		policy:     NewPolicy(cfg.MaxAttempts),
		limiter:    rate.NewLimiter(rate.Limit(cfg.DispatchRate), cfg.DispatchBurst),
		retry:      retry,
		maxBatch:   cfg.MaxBatchSize,
		workers:    cfg.Concurrency,
	}
}

// Request queues one reprocessing attempt for a document. It enforces the
// attempt ceiling, rejects in-flight documents, claims the document with a
// conditional status transition so concurrent requests cannot double-queue,
// and dispatches with escalated settings for the new attempt number.
func (s *Service) Request(ctx context.Context, documentID string) (*model.ReprocessAttempt, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, eris.Wrapf(err, "reprocess: load document %s", documentID)
	}

	attempts, err := s.store.MaxAttemptNumber(ctx, documentID)
	if err != nil {
		return nil, eris.Wrapf(err, "reprocess: count attempts for %s", documentID)
	}
	if err := s.policy.Check(doc.Status, attempts); err != nil {
		return nil, err
	}

	claimed, err := s.store.BeginProcessing(ctx, documentID)
	if err != nil {
		return nil, eris.Wrapf(err, "reprocess: claim document %s", documentID)
	}
	if !claimed {
		return nil, ErrAlreadyProcessing
	}

	attempt := &model.ReprocessAttempt{
		ID:            uuid.NewString(),
		DocumentID:    documentID,
		AttemptNumber: attempts + 1,
		SettingsTier:  attempts + 1,
		OldConfidence: doc.Confidence,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.limiter.Wait(ctx); err != nil {
		s.release(ctx, documentID, doc.Status, doc.Confidence)
		return nil, eris.Wrap(err, "reprocess: rate limiter")
	}
	err = resilience.Do(ctx, s.retry, func(ctx context.Context) error {
		return s.dispatcher.Dispatch(ctx, *attempt, SettingsForTier(attempt.SettingsTier))
	})
	if err != nil {
		s.release(ctx, documentID, doc.Status, doc.Confidence)
		return nil, eris.Wrapf(err, "reprocess: dispatch attempt %d for %s", attempt.AttemptNumber, documentID)
	}

	// Recorded only once the dispatch succeeded: a queue outage must not
	// consume the attempt ceiling. The BeginProcessing claim keeps the
	// numbering race-free until the row exists.
	if err := s.store.CreateAttempt(ctx, attempt); err != nil {
		s.release(ctx, documentID, doc.Status, doc.Confidence)
		return nil, eris.Wrapf(err, "reprocess: record attempt for %s", documentID)
	}

	zap.L().Info("reprocess attempt queued",
		zap.String("document_id", documentID),
		zap.Int("attempt", attempt.AttemptNumber),
		zap.Int("tier", attempt.SettingsTier),
	)
	return attempt, nil
}

// release returns a claimed document to its prior state after a failed queue.
func (s *Service) release(ctx context.Context, id string, status model.DocumentStatus, confidence float64) {
	if err := s.store.FinishProcessing(ctx, id, status, confidence); err != nil {
		zap.L().Error("reprocess: release after failed queue",
			zap.String("document_id", id),
			zap.Error(err),
		)
	}
}

// BatchOutcome reports what happened to one document of a batch request.
type BatchOutcome struct {
	DocumentID    string `json:"document_id"`
	Queued        bool   `json:"queued"`
	AttemptNumber int    `json:"attempt_number,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// RequestBatch queues reprocessing for up to MaxBatchSize documents.
// Ineligible documents are skipped and reported per-document; only an
// oversized batch is an error for the whole call.
func (s *Service) RequestBatch(ctx context.Context, documentIDs []string) ([]BatchOutcome, error) {
	if len(documentIDs) == 0 {
		return nil, eris.New("reprocess: empty batch")
	}
	if len(documentIDs) > s.maxBatch {
		return nil, eris.Errorf("reprocess: batch size %d exceeds limit %d", len(documentIDs), s.maxBatch)
	}

	outcomes := make([]BatchOutcome, len(documentIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, id := range documentIDs {
		g.Go(func() error {
			attempt, err := s.Request(gctx, id)
			if err != nil {
				outcomes[i] = BatchOutcome{DocumentID: id, Reason: eris.Cause(err).Error()}
				return nil
			}
			outcomes[i] = BatchOutcome{DocumentID: id, Queued: true, AttemptNumber: attempt.AttemptNumber}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// RecordOutcome closes out a dispatched attempt: the attempt row gets the
// new confidence and its delta (which may be negative), and the document
// returns to a terminal status.
func (s *Service) RecordOutcome(ctx context.Context, attempt model.ReprocessAttempt, newConfidence float64, succeeded bool) error {
	improvement := newConfidence - attempt.OldConfidence
	if err := s.store.UpdateAttemptOutcome(ctx, attempt.ID, newConfidence, improvement); err != nil {
		return eris.Wrapf(err, "reprocess: record outcome for attempt %s", attempt.ID)
	}

	status := model.DocStatusCompleted
	if !succeeded {
		status = model.DocStatusFailed
	}
	if err := s.store.FinishProcessing(ctx, attempt.DocumentID, status, newConfidence); err != nil {
		return eris.Wrapf(err, "reprocess: finish document %s", attempt.DocumentID)
	}

	zap.L().Info("reprocess attempt finished",
		zap.String("document_id", attempt.DocumentID),
		zap.Int("attempt", attempt.AttemptNumber),
		zap.Float64("improvement", improvement),
		zap.Bool("succeeded", succeeded),
	)
	return nil
}
