package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists notifications and escalation states.
type Repository interface {
	// Save stores a notification. Returns an error with code NTF_002
	// when one with the same dedupe key already exists.
	Save(ctx context.Context, n *Notification) error

	// UpdateStatus records the delivery outcome.
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, sentAt *time.Time) error

	// ListByAnalysis returns notifications raised for an analysis.
	ListByAnalysis(ctx context.Context, analysisID uuid.UUID) ([]*Notification, error)

	// SaveEscalation stores a new escalation state.
	SaveEscalation(ctx context.Context, s *EscalationState) error

	// UpdateEscalation persists tier or acknowledgement changes.
	UpdateEscalation(ctx context.Context, s *EscalationState) error

	// DueEscalations returns unacknowledged states whose next check is
	// at or before now, oldest first.
	DueEscalations(ctx context.Context, now time.Time, limit int) ([]*EscalationState, error)

	// GetEscalationByAnalysis loads the ladder for an analysis.
	GetEscalationByAnalysis(ctx context.Context, analysisID uuid.UUID) (*EscalationState, error)
}
