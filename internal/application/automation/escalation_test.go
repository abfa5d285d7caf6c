package automation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexohr/psicorisco/internal/domain/assessment"
	domain "github.com/nexohr/psicorisco/internal/domain/automation"
	"github.com/nexohr/psicorisco/internal/domain/notification"
	"github.com/nexohr/psicorisco/internal/domain/risk"
	"github.com/nexohr/psicorisco/internal/domain/scoring"
)

type escEnv struct {
	clock       *fakeClock
	notifs      *fakeNotifications
	analyses    *fakeAnalyses
	assessments *fakeAssessments
	configs     *fakeConfigs
	sender      *recordingSender
	worker      *EscalationWorker

	companyID  uuid.UUID
	employeeID uuid.UUID
	analysisID uuid.UUID
}

func newEscEnv(t *testing.T) *escEnv {
	t.Helper()
	e := &escEnv{
		clock:       newFakeClock(testStart),
		notifs:      newFakeNotifications(),
		analyses:    newFakeAnalyses(),
		assessments: newFakeAssessments(),
		configs:     newFakeConfigs(),
		sender:      &recordingSender{},
		companyID:   uuid.New(),
		employeeID:  uuid.New(),
	}
	e.worker = NewEscalationWorker(e.notifs, e.analyses, e.assessments, e.configs,
		e.sender, time.Minute, nil, e.clock, nil)

	analysis := &risk.Analysis{
		ID:         uuid.New(),
		ResponseID: uuid.New(),
		CompanyID:  e.companyID,
		EmployeeID: e.employeeID,
		WorstLevel: scoring.ExposureCritico,
	}
	require.NoError(t, e.analyses.Save(context.Background(), analysis))
	e.analysisID = analysis.ID

	e.assessments.orgs[e.employeeID] = &assessment.OrgContext{
		CompanyID:  e.companyID,
		EmployeeID: e.employeeID,
		SectorName: "Operações",
		ManagerID:  uuid.New(),
	}
	e.configs.configs[e.companyID] = &domain.Config{
		CompanyID:         e.companyID,
		Enabled:           true,
		HRRecipients:      []uuid.UUID{uuid.New()},
		EscalationEnabled: true,
	}
	require.NoError(t, e.notifs.SaveEscalation(context.Background(),
		notification.NewEscalationState(e.companyID, e.analysisID, 24*time.Hour, e.clock.Now())))
	return e
}

func (e *escEnv) state(t *testing.T) *notification.EscalationState {
	t.Helper()
	s, err := e.notifs.GetEscalationByAnalysis(context.Background(), e.analysisID)
	require.NoError(t, err)
	return s
}

func TestSweep_NothingDueBeforeDeadline(t *testing.T) {
	e := newEscEnv(t)

	e.clock.Advance(23 * time.Hour)
	e.worker.Sweep(context.Background())

	assert.Equal(t, notification.TierHR, e.state(t).Tier)
	assert.Zero(t, e.sender.count())
}

func TestSweep_ClimbsToManagerThenLeadership(t *testing.T) {
	e := newEscEnv(t)

	// First deadline passes: manager tier.
	e.clock.Advance(25 * time.Hour)
	e.worker.Sweep(context.Background())
	s := e.state(t)
	assert.Equal(t, notification.TierManager, s.Tier)
	require.Equal(t, 1, e.sender.count())
	assert.Equal(t, notification.ChannelInApp, e.sender.sent[0].Channel)
	assert.Equal(t, notification.TypeEscalation, e.sender.sent[0].Type)

	// Second deadline: leadership via Slack.
	e.clock.Advance(25 * time.Hour)
	e.worker.Sweep(context.Background())
	s = e.state(t)
	assert.Equal(t, notification.TierLeadership, s.Tier)
	require.Equal(t, 2, e.sender.count())
	assert.Equal(t, notification.ChannelSlack, e.sender.sent[1].Channel)

	// Ladder topped out: the state closes instead of looping forever.
	assert.True(t, s.NextCheckAt.IsZero())
}

func TestSweep_CustomLadderControlsStepsAndDeadlines(t *testing.T) {
	e := newEscEnv(t)

	// Two-step ladder: HR by email, then straight to leadership on
	// Slack, with a 2h first deadline.
	cfg := e.configs.configs[e.companyID]
	cfg.EscalationLadder = []domain.EscalationStep{
		{Role: domain.RoleHR, Channel: "email", DelayMinutes: 120},
		{Role: domain.RoleLeadership, Channel: "slack"},
	}

	// Reseed the state so tier 0 carries the configured deadline.
	s := e.state(t)
	s.NextCheckAt = e.clock.Now().Add(2 * time.Hour)
	require.NoError(t, e.notifs.UpdateEscalation(context.Background(), s))

	e.clock.Advance(time.Hour)
	e.worker.Sweep(context.Background())
	assert.Equal(t, notification.TierHR, e.state(t).Tier)

	e.clock.Advance(90 * time.Minute)
	e.worker.Sweep(context.Background())
	s = e.state(t)
	assert.Equal(t, notification.TierManager, s.Tier) // tier index 1, the ladder's final step
	require.Equal(t, 1, e.sender.count())
	assert.Equal(t, notification.ChannelSlack, e.sender.sent[0].Channel)
	assert.Equal(t, "leadership", e.sender.sent[0].RecipientRole)
	assert.True(t, s.NextCheckAt.IsZero())

	// A later sweep closes the topped-out ladder.
	e.clock.Advance(time.Hour)
	e.worker.Sweep(context.Background())
	assert.True(t, e.state(t).Acknowledged)
}

func TestSweep_AcknowledgedFindingIsIgnored(t *testing.T) {
	e := newEscEnv(t)
	s := e.state(t)
	s.Acknowledge(e.clock.Now())
	require.NoError(t, e.notifs.UpdateEscalation(context.Background(), s))

	e.clock.Advance(48 * time.Hour)
	e.worker.Sweep(context.Background())

	assert.Equal(t, notification.TierHR, e.state(t).Tier)
	assert.Zero(t, e.sender.count())
}

func TestSweep_MissingManagerStillAdvancesTier(t *testing.T) {
	e := newEscEnv(t)
	e.assessments.orgs[e.employeeID].ManagerID = uuid.Nil

	e.clock.Advance(25 * time.Hour)
	e.worker.Sweep(context.Background())

	// The climb persists even though no one could be alerted, so the
	// next deadline still fires at the leadership tier.
	assert.Equal(t, notification.TierManager, e.state(t).Tier)
	assert.Zero(t, e.sender.count())
}

func TestSweep_DeliveryFailureStillPersistsTier(t *testing.T) {
	e := newEscEnv(t)
	e.sender.err = errors.New("delivery down")

	e.clock.Advance(25 * time.Hour)
	e.worker.Sweep(context.Background())

	assert.Equal(t, notification.TierManager, e.state(t).Tier)
}

func TestStartStop(t *testing.T) {
	e := newEscEnv(t)
	e.worker.Start(context.Background())
	e.worker.Stop()
}
