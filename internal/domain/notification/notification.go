// Package notification models the alerts sent when a risk analysis
// demands attention, and the escalation ladder for unacknowledged
// critical findings.
package notification

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type distinguishes what the notification is about.
type Type string

const (
	TypeRiskAlert         Type = "risk_alert"
	TypeActionPlanCreated Type = "action_plan_created"
	TypeNoActionNeeded    Type = "no_action_needed"
	TypeProcessingError   Type = "processing_error"
	TypeEscalation        Type = "escalation"
)

// Channel is the delivery medium.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelSlack Channel = "slack"
)

// Status tracks delivery.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Notification is one alert addressed to one recipient. DedupeKey makes
// retries idempotent: the same finding never alerts the same recipient
// twice.
type Notification struct {
	ID            uuid.UUID  `json:"id"`
	CompanyID     uuid.UUID  `json:"company_id"`
	AnalysisID    uuid.UUID  `json:"analysis_id"`
	RecipientID   uuid.UUID  `json:"recipient_id"`
	RecipientRole string     `json:"recipient_role"`
	Type          Type       `json:"type"`
	Channel       Channel    `json:"channel"`
	Subject       string     `json:"subject"`
	Body          string     `json:"body"`
	DedupeKey     string     `json:"dedupe_key"`
	Status        Status     `json:"status"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// MarkSent records successful delivery.
func (n *Notification) MarkSent(at time.Time) {
	n.Status = StatusSent
	n.SentAt = &at
}

// MarkFailed records a delivery failure.
func (n *Notification) MarkFailed() {
	n.Status = StatusFailed
}

// DedupeKeyFor builds the canonical dedupe key for a notification.
func DedupeKeyFor(typ Type, analysisID, recipientID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:%s", typ, analysisID, recipientID)
}
