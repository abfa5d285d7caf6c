package notification

import (
	"time"

	"github.com/google/uuid"

	"github.com/nexohr/psicorisco/internal/domain/actionplan"
	"github.com/nexohr/psicorisco/internal/domain/risk"
)

// Recipient is someone who should hear about a finding.
type Recipient struct {
	ID      uuid.UUID
	Role    string
	Channel Channel
}

// Compose builds the notifications for a finding: one risk alert per
// recipient, plus one action plan notice per recipient when a plan was
// generated. All notifications start pending; delivery happens later.
func Compose(analysis *risk.Analysis, plan *actionplan.Plan, sectorName string, recipients []Recipient, now time.Time) ([]*Notification, error) {
	subject, body, err := RenderRiskAlert(analysis, sectorName)
	if err != nil {
		return nil, err
	}

	var planSubject, planBody string
	if plan != nil {
		planSubject, planBody, err = RenderActionPlanCreated(plan)
		if err != nil {
			return nil, err
		}
	}

	out := make([]*Notification, 0, len(recipients)*2)
	for _, r := range recipients {
		out = append(out, forRecipient(analysis, r, TypeRiskAlert, subject, body, now))
		if plan != nil {
			out = append(out, forRecipient(analysis, r, TypeActionPlanCreated, planSubject, planBody, now))
		}
	}
	return out, nil
}

// ComposeNoAction builds the below-threshold notices: one "no action
// needed" notification per recipient, closing the run visibly.
func ComposeNoAction(analysis *risk.Analysis, sectorName string, recipients []Recipient, now time.Time) ([]*Notification, error) {
	subject, body, err := RenderNoActionNeeded(analysis, sectorName)
	if err != nil {
		return nil, err
	}
	out := make([]*Notification, 0, len(recipients))
	for _, r := range recipients {
		out = append(out, forRecipient(analysis, r, TypeNoActionNeeded, subject, body, now))
	}
	return out, nil
}

func forRecipient(analysis *risk.Analysis, r Recipient, typ Type, subject, body string, now time.Time) *Notification {
	return &Notification{
		ID:            uuid.New(),
		CompanyID:     analysis.CompanyID,
		AnalysisID:    analysis.ID,
		RecipientID:   r.ID,
		RecipientRole: r.Role,
		Type:          typ,
		Channel:       r.Channel,
		Subject:       subject,
		Body:          body,
		DedupeKey:     DedupeKeyFor(typ, analysis.ID, r.ID),
		Status:        StatusPending,
		CreatedAt:     now,
	}
}
