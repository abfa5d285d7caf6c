package automation

import (
	"time"

	"github.com/google/uuid"
)

// WorkItem is one queued response awaiting automation. Items are leased
// by workers through an atomic conditional update so at most one worker
// processes an item at a time.
type WorkItem struct {
	ID             uuid.UUID  `json:"id"`
	ResponseID     uuid.UUID  `json:"response_id"`
	CompanyID      uuid.UUID  `json:"company_id"`
	State          State      `json:"state"`
	Attempts       int        `json:"attempts"`
	MaxAttempts    int        `json:"max_attempts"`
	LeaseOwner     string     `json:"lease_owner,omitempty"`
	LeaseExpiresAt *time.Time `json:"lease_expires_at,omitempty"`
	NextAttemptAt  time.Time  `json:"next_attempt_at"`
	LastError      string     `json:"last_error,omitempty"`
	EnqueuedAt     time.Time  `json:"enqueued_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewWorkItem enqueues a response for processing.
func NewWorkItem(responseID, companyID uuid.UUID, maxAttempts int, now time.Time) *WorkItem {
	return &WorkItem{
		ID:            uuid.New(),
		ResponseID:    responseID,
		CompanyID:     companyID,
		State:         StatePending,
		MaxAttempts:   maxAttempts,
		NextAttemptAt: now,
		EnqueuedAt:    now,
		UpdatedAt:     now,
	}
}

// LeaseHeld reports whether a live lease exists at the given instant.
func (w *WorkItem) LeaseHeld(now time.Time) bool {
	return w.LeaseOwner != "" && w.LeaseExpiresAt != nil && now.Before(*w.LeaseExpiresAt)
}

// RetriesLeft reports whether another attempt is allowed.
func (w *WorkItem) RetriesLeft() bool {
	return w.Attempts < w.MaxAttempts
}

// Advance moves the item to the next pipeline state, validating the
// transition.
func (w *WorkItem) Advance(to State, now time.Time) error {
	if err := ValidateTransition(w.State, to); err != nil {
		return err
	}
	w.State = to
	w.UpdatedAt = now
	return nil
}

// RecordFailure consumes one attempt. Retryable failures with attempts
// left re-enter Pending after the backoff; anything else lands in
// Failed permanently. The lease is released either way.
func (w *WorkItem) RecordFailure(cause string, retryable bool, backoff time.Duration, now time.Time) {
	w.Attempts++
	w.LastError = cause
	w.LeaseOwner = ""
	w.LeaseExpiresAt = nil
	w.UpdatedAt = now
	if retryable && w.RetriesLeft() {
		w.State = StatePending
		w.NextAttemptAt = now.Add(backoff)
		return
	}
	w.State = StateFailed
}

// Complete finishes the item and releases the lease.
func (w *WorkItem) Complete(now time.Time) error {
	if err := ValidateTransition(w.State, StateDone); err != nil {
		return err
	}
	w.State = StateDone
	w.LeaseOwner = ""
	w.LeaseExpiresAt = nil
	w.UpdatedAt = now
	return nil
}
