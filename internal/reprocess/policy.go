// Package reprocess governs the bounded re-extraction workflow: eligibility
// checks, escalating extraction settings, and the hard attempt ceiling.
package reprocess

import (
	"errors"
	"fmt"

	"github.com/naqeebali-shamsi/intellifill/internal/model"
)

// Guard errors surfaced to callers. Everything else about an ineligible
// document is reported through Decision.Reason.
var (
	ErrAttemptLimitExceeded = errors.New("reprocess: attempt limit exceeded")
	ErrAlreadyProcessing    = errors.New("reprocess: document already processing")
)

// Decision is the outcome of an eligibility check.
type Decision struct {
	Eligible bool
	Reason   string
}

// Policy decides reprocessing eligibility. A document is eligible when its
// status is terminal (success or failure), it has attempts left, and no job
// is currently in flight.
type Policy struct {
	maxAttempts int
}

// NewPolicy creates a Policy with the given attempt ceiling.
func NewPolicy(maxAttempts int) Policy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return Policy{maxAttempts: maxAttempts}
}

// MaxAttempts returns the attempt ceiling.
func (p Policy) MaxAttempts() int { return p.maxAttempts }

// Decide evaluates eligibility for a document in the given status with the
// given number of recorded attempts.
func (p Policy) Decide(status model.DocumentStatus, attempts int) Decision {
	switch {
	case status == model.DocStatusProcessing:
		return Decision{Reason: "already processing"}
	case attempts >= p.maxAttempts:
		return Decision{Reason: fmt.Sprintf("attempt limit of %d reached", p.maxAttempts)}
	case !status.IsTerminal():
		return Decision{Reason: fmt.Sprintf("status %s is not terminal", status)}
	default:
		return Decision{Eligible: true}
	}
}

// Check is Decide mapped onto the error taxonomy: nil when eligible,
// a guard sentinel or a descriptive error otherwise.
func (p Policy) Check(status model.DocumentStatus, attempts int) error {
	switch {
	case status == model.DocStatusProcessing:
		return ErrAlreadyProcessing
	case attempts >= p.maxAttempts:
		return ErrAttemptLimitExceeded
	case !status.IsTerminal():
		return fmt.Errorf("reprocess: document status %s is not terminal", status)
	default:
		return nil
	}
}
