package notification

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/nexohr/psicorisco/pkg/errors"
)

// Escalation ladder for unacknowledged critical findings. Tier 0 is the
// initial alert to HR; unacknowledged findings climb one tier per
// deadline until the ladder tops out. The ladder itself (roles,
// channels, deadlines) comes from the company's automation config, so
// the state machine only tracks position and deadlines handed to it.
type EscalationTier int

// Tier indices on the default three-step ladder.
const (
	TierHR         EscalationTier = 0 // HR analyst responsible for the company
	TierManager    EscalationTier = 1 // direct manager of the sector
	TierLeadership EscalationTier = 2 // leadership channel (Slack webhook)
)

// EscalationState tracks one critical finding through the ladder.
type EscalationState struct {
	ID           uuid.UUID      `json:"id"`
	CompanyID    uuid.UUID      `json:"company_id"`
	AnalysisID   uuid.UUID      `json:"analysis_id"`
	Tier         EscalationTier `json:"tier"`
	Acknowledged bool           `json:"acknowledged"`
	NextCheckAt  time.Time      `json:"next_check_at"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// NewEscalationState opens the ladder at tier 0 for a critical finding.
// The deadline is tier 0's acknowledgement window.
func NewEscalationState(companyID, analysisID uuid.UUID, deadline time.Duration, now time.Time) *EscalationState {
	return &EscalationState{
		ID:          uuid.New(),
		CompanyID:   companyID,
		AnalysisID:  analysisID,
		Tier:        TierHR,
		NextCheckAt: now.Add(deadline),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Due reports whether the state should be re-examined.
func (s *EscalationState) Due(now time.Time) bool {
	return !s.Acknowledged && !now.Before(s.NextCheckAt)
}

// Escalate advances to the next tier on a ladder of ladderSize steps.
// deadline is the new tier's acknowledgement window; it is ignored when
// the new tier is the final one. Fails with NTF_004 when the ladder is
// already at its final tier.
func (s *EscalationState) Escalate(now time.Time, ladderSize int, deadline time.Duration) error {
	if s.Acknowledged {
		return apperrors.New(apperrors.ErrCodeConflict, "finding already acknowledged")
	}
	if int(s.Tier) >= ladderSize-1 {
		return apperrors.Newf(apperrors.ErrCodeEscalationTierExceeded,
			"finding %s is already at the final tier", s.AnalysisID)
	}
	s.Tier++
	s.UpdatedAt = now
	if int(s.Tier) < ladderSize-1 {
		s.NextCheckAt = now.Add(deadline)
	} else {
		// Final tier: nothing left to climb to.
		s.NextCheckAt = time.Time{}
	}
	return nil
}

// Acknowledge closes the ladder.
func (s *EscalationState) Acknowledge(now time.Time) {
	s.Acknowledged = true
	s.UpdatedAt = now
}
