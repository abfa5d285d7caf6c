package automation

import (
	"time"

	"github.com/google/uuid"

	"github.com/nexohr/psicorisco/internal/domain/scoring"
)

// Recipient roles an escalation rung can target.
const (
	RoleHR         = "hr"
	RoleManager    = "manager"
	RoleLeadership = "leadership"
)

// EscalationStep is one rung of the critical-finding ladder: who gets
// alerted, over which channel, and how long the rung may stay
// unacknowledged before the finding climbs to the next one. The final
// rung never climbs, so its delay is ignored.
type EscalationStep struct {
	Role         string `json:"role"`
	Channel      string `json:"channel"`
	DelayMinutes int    `json:"delay_minutes"`
}

// Deadline returns the rung's acknowledgement window.
func (s EscalationStep) Deadline() time.Duration {
	return time.Duration(s.DelayMinutes) * time.Minute
}

// DefaultEscalationLadder alerts HR first, then the sector manager,
// then the leadership channel, one day per rung.
func DefaultEscalationLadder() []EscalationStep {
	return []EscalationStep{
		{Role: RoleHR, Channel: "email", DelayMinutes: 24 * 60},
		{Role: RoleManager, Channel: "in_app", DelayMinutes: 24 * 60},
		{Role: RoleLeadership, Channel: "slack"},
	}
}

// Config is the per-company automation policy. A company without a
// stored config has automation disabled: its responses stay queued
// untouched until a config appears.
type Config struct {
	CompanyID              uuid.UUID             `json:"company_id"`
	Enabled                bool                  `json:"enabled"`
	AutoGeneratePlans      bool                  `json:"auto_generate_plans"`
	NotificationEnabled    bool                  `json:"notification_enabled"`
	MinNotifyLevel         scoring.ExposureLevel `json:"min_notify_level"`
	HRRecipients           []uuid.UUID           `json:"hr_recipients"`
	NotifyManager          bool                  `json:"notify_manager"`
	EscalationEnabled      bool                  `json:"escalation_enabled"`
	EscalationLadder       []EscalationStep      `json:"escalation_ladder,omitempty"`
	ProcessingDelayMinutes int                   `json:"processing_delay_minutes"`
	UpdatedAt              time.Time             `json:"updated_at"`
}

// ShouldNotify reports whether a finding at the given level crosses the
// company's notification threshold.
func (c *Config) ShouldNotify(level scoring.ExposureLevel) bool {
	return level.Severity() >= c.MinNotifyLevel.Severity()
}

// Ladder returns the company's escalation ladder, or the default when
// the company never customised one.
func (c *Config) Ladder() []EscalationStep {
	if len(c.EscalationLadder) == 0 {
		return DefaultEscalationLadder()
	}
	return c.EscalationLadder
}

// TierDeadline returns how long the given tier may stay unacknowledged.
// The boolean is false for the final tier and for tiers past the
// ladder, which never climb.
func (c *Config) TierDeadline(tier int) (time.Duration, bool) {
	ladder := c.Ladder()
	if tier < 0 || tier >= len(ladder)-1 {
		return 0, false
	}
	return ladder[tier].Deadline(), true
}

// ProcessingDelay is the debounce window between a response completing
// and its first processing attempt, giving the employee room to amend
// answers before a score is locked in.
func (c *Config) ProcessingDelay() time.Duration {
	return time.Duration(c.ProcessingDelayMinutes) * time.Minute
}
