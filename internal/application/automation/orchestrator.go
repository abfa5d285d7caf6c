package automation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nexohr/psicorisco/internal/domain/actionplan"
	"github.com/nexohr/psicorisco/internal/domain/assessment"
	domain "github.com/nexohr/psicorisco/internal/domain/automation"
	"github.com/nexohr/psicorisco/internal/domain/notification"
	"github.com/nexohr/psicorisco/internal/domain/risk"
	"github.com/nexohr/psicorisco/internal/domain/scoring"
	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
	apperrors "github.com/nexohr/psicorisco/pkg/errors"
)

// OrchestratorDeps bundles the collaborators of the pipeline.
type OrchestratorDeps struct {
	Assessments   assessment.Repository
	Configs       domain.ConfigRepository
	Queue         domain.QueueRepository
	Logs          domain.LogRepository
	Engine        *scoring.Engine
	Builder       *risk.Builder
	Analyses      risk.Repository
	Planner       *actionplan.Generator
	Notifications notification.Repository
	Sender        notification.Sender
	Events        EventPublisher
	Metrics       PipelineMetrics
	Clock         Clock
	Logger        logging.Logger
}

// Orchestrator runs one leased work item through every pipeline stage,
// persisting the state transition after each one so a retry resumes
// with consistent data rather than replaying blind.
type Orchestrator struct {
	deps   OrchestratorDeps
	logger logging.Logger
}

// NewOrchestrator builds an Orchestrator, filling optional dependencies
// with no-ops.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	if deps.Sender == nil {
		deps.Sender = notification.NopSender{}
	}
	if deps.Events == nil {
		deps.Events = NopPublisher{}
	}
	if deps.Metrics == nil {
		deps.Metrics = NopMetrics{}
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	return &Orchestrator{deps: deps, logger: deps.Logger.Named("orchestrator")}
}

// Process runs the pipeline for a leased item. The item must be in
// Processing state, held by owner. The returned error carries a code
// the processor uses to decide between retry and permanent failure.
func (o *Orchestrator) Process(ctx context.Context, item *domain.WorkItem, owner string) error {
	d := o.deps

	cfg, err := d.Configs.GetByCompany(ctx, item.CompanyID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return apperrors.Wrap(err, apperrors.ErrCodeAutomationDisabled,
				"company has no automation config")
		}
		return err
	}
	if !cfg.Enabled {
		return apperrors.Newf(apperrors.ErrCodeAutomationDisabled,
			"automation disabled for company %s", item.CompanyID)
	}

	// Stage: analyze.
	analysis, org, err := o.analyze(ctx, item)
	if err != nil {
		return err
	}
	if err := o.advance(ctx, item, domain.StateAnalyzed, owner); err != nil {
		return err
	}

	// Stage: action plan.
	plan, err := o.planStage(ctx, item, cfg, analysis, org, owner)
	if err != nil {
		return err
	}

	// Stage: notify.
	if err := o.notifyStage(ctx, item, cfg, analysis, plan, org, owner); err != nil {
		return err
	}

	// Stage: complete.
	now := d.Clock.Now()
	if err := item.Complete(now); err != nil {
		return err
	}
	if err := d.Queue.Update(ctx, item, owner); err != nil {
		o.appendLog(ctx, item, domain.StateDone, domain.OutcomeFailure, "state update failed", 0)
		return err
	}
	o.appendLog(ctx, item, domain.StateDone, domain.OutcomeSuccess, "", 0)
	d.Metrics.IncProcessed(analysis.WorstLevel)
	if err := d.Events.PublishPipelineCompleted(ctx, item, analysis.WorstLevel); err != nil {
		o.logger.Warn("pipeline completed event not published",
			logging.String("response_id", item.ResponseID.String()), logging.Err(err))
	}
	return nil
}

// ─────────────────────────────────────────────
// Stages
// ─────────────────────────────────────────────

func (o *Orchestrator) analyze(ctx context.Context, item *domain.WorkItem) (*risk.Analysis, *assessment.OrgContext, error) {
	d := o.deps
	started := d.Clock.Now()

	// A retried item may already carry an analysis from a previous
	// attempt; building twice would double notifications downstream.
	if existing, err := d.Analyses.GetByResponse(ctx, item.ResponseID); err == nil && existing != nil {
		return existing, o.orgContext(ctx, item.CompanyID, existing.EmployeeID), nil
	} else if err != nil && !apperrors.IsNotFound(err) {
		return nil, nil, err
	}

	response, err := d.Assessments.GetResponse(ctx, item.ResponseID)
	if err != nil {
		o.appendLog(ctx, item, domain.StateAnalyzed, domain.OutcomeFailure,
			"response unavailable", d.Clock.Now().Sub(started))
		return nil, nil, err
	}
	org := o.orgContext(ctx, item.CompanyID, response.EmployeeID)

	result, err := d.Engine.Score(response)
	if err != nil {
		o.appendLog(ctx, item, domain.StateAnalyzed, domain.OutcomeFailure,
			"scoring failed", d.Clock.Now().Sub(started))
		return nil, nil, err
	}

	analysis, err := d.Builder.Build(ctx, response, org, result, d.Clock.Now())
	if err != nil {
		o.appendLog(ctx, item, domain.StateAnalyzed, domain.OutcomeFailure,
			"risk analysis build failed", d.Clock.Now().Sub(started))
		return nil, nil, err
	}
	if err := d.Analyses.Save(ctx, analysis); err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeConflict) {
			// A racing attempt persisted first; use its analysis.
			analysis, err = d.Analyses.GetByResponse(ctx, item.ResponseID)
			if err != nil {
				return nil, nil, err
			}
		} else {
			o.appendLog(ctx, item, domain.StateAnalyzed, domain.OutcomeFailure,
				"risk analysis persist failed", d.Clock.Now().Sub(started))
			return nil, nil, err
		}
	}

	o.appendLog(ctx, item, domain.StateAnalyzed, domain.OutcomeSuccess, "", d.Clock.Now().Sub(started))
	if err := d.Events.PublishAnalysisCreated(ctx, analysis); err != nil {
		o.logger.Warn("analysis created event not published",
			logging.String("analysis_id", analysis.ID.String()), logging.Err(err))
	}
	return analysis, org, nil
}

// orgContext is best-effort: an unresolvable placement degrades sector
// labelling but never blocks the pipeline.
func (o *Orchestrator) orgContext(ctx context.Context, companyID, employeeID uuid.UUID) *assessment.OrgContext {
	org, err := o.deps.Assessments.GetOrgContext(ctx, companyID, employeeID)
	if err != nil {
		o.logger.Warn("org context unavailable, proceeding without sector",
			logging.String("employee_id", employeeID.String()), logging.Err(err))
		return nil
	}
	return org
}

func (o *Orchestrator) planStage(ctx context.Context, item *domain.WorkItem, cfg *domain.Config, analysis *risk.Analysis, org *assessment.OrgContext, owner string) (*actionplan.Plan, error) {
	d := o.deps
	started := d.Clock.Now()

	if !analysis.RequiresActionPlan() {
		if err := o.advance(ctx, item, domain.StateSkipped, owner); err != nil {
			return nil, err
		}
		o.appendLog(ctx, item, domain.StateSkipped, domain.OutcomeSkipped,
			"no category at alto or critico", d.Clock.Now().Sub(started))
		return nil, nil
	}
	if !cfg.AutoGeneratePlans {
		if err := o.advance(ctx, item, domain.StateSkipped, owner); err != nil {
			return nil, err
		}
		o.appendLog(ctx, item, domain.StateSkipped, domain.OutcomeSkipped,
			"plan generation disabled by config", d.Clock.Now().Sub(started))
		return nil, nil
	}

	plan, err := d.Planner.Generate(ctx, analysis, org, d.Clock.Now())
	if err != nil {
		o.appendLog(ctx, item, domain.StateActionPlanned, domain.OutcomeFailure,
			"plan generation failed", d.Clock.Now().Sub(started))
		return nil, err
	}
	if err := o.advance(ctx, item, domain.StateActionPlanned, owner); err != nil {
		return nil, err
	}
	o.appendLog(ctx, item, domain.StateActionPlanned, domain.OutcomeSuccess, "", d.Clock.Now().Sub(started))
	return plan, nil
}

func (o *Orchestrator) notifyStage(ctx context.Context, item *domain.WorkItem, cfg *domain.Config, analysis *risk.Analysis, plan *actionplan.Plan, org *assessment.OrgContext, owner string) error {
	d := o.deps
	started := d.Clock.Now()

	if !cfg.NotificationEnabled {
		if err := o.advance(ctx, item, domain.StateNotified, owner); err != nil {
			return err
		}
		o.appendLog(ctx, item, domain.StateNotified, domain.OutcomeSkipped,
			"notifications disabled by config", d.Clock.Now().Sub(started))
		return nil
	}

	recipients := o.recipients(cfg, org)
	if len(recipients) == 0 {
		o.appendLog(ctx, item, domain.StateNotified, domain.OutcomeFailure,
			"no notification recipients", d.Clock.Now().Sub(started))
		return apperrors.New(apperrors.ErrCodeConfigMissing,
			"automation config has no notification recipients")
	}

	sectorName := ""
	if org != nil {
		sectorName = org.SectorName
	}

	// A generated plan is always announced; alert-only findings honour
	// the company threshold. Everything below it still gets a closing
	// "no action needed" notice.
	var notifs []*notification.Notification
	var err error
	if plan != nil || cfg.ShouldNotify(analysis.WorstLevel) {
		notifs, err = notification.Compose(analysis, plan, sectorName, recipients, d.Clock.Now())
	} else {
		notifs, err = notification.ComposeNoAction(analysis, sectorName, recipients, d.Clock.Now())
	}
	if err != nil {
		o.appendLog(ctx, item, domain.StateNotified, domain.OutcomeFailure,
			"notification compose failed", d.Clock.Now().Sub(started))
		return err
	}

	// A previous attempt may have saved some of these already; re-send
	// only the ones that never went out.
	existing := make(map[string]*notification.Notification)
	if prior, err := d.Notifications.ListByAnalysis(ctx, analysis.ID); err == nil {
		for _, n := range prior {
			existing[n.DedupeKey] = n
		}
	}

	var delivered, failed int
	for _, n := range notifs {
		if prior, ok := existing[n.DedupeKey]; ok {
			if prior.Status == notification.StatusSent {
				continue
			}
			n = prior // retry delivery of the stored notification
		} else if err := d.Notifications.Save(ctx, n); err != nil {
			if apperrors.IsCode(err, apperrors.ErrCodeNotificationDuplicate) {
				continue // racing attempt saved it; let that one deliver
			}
			o.appendLog(ctx, item, domain.StateNotified, domain.OutcomeFailure,
				"notification persist failed", d.Clock.Now().Sub(started))
			return err
		}
		if err := d.Sender.Send(ctx, n); err != nil {
			failed++
			n.MarkFailed()
			o.logger.Warn("notification delivery failed",
				logging.String("notification_id", n.ID.String()),
				logging.String("channel", string(n.Channel)), logging.Err(err))
		} else {
			delivered++
			n.MarkSent(d.Clock.Now())
		}
		if err := d.Notifications.UpdateStatus(ctx, n.ID, n.Status, n.SentAt); err != nil {
			o.logger.Warn("notification status not persisted",
				logging.String("notification_id", n.ID.String()), logging.Err(err))
		}
	}
	if delivered == 0 && failed > 0 {
		o.appendLog(ctx, item, domain.StateNotified, domain.OutcomeFailure,
			"all deliveries failed", d.Clock.Now().Sub(started))
		return apperrors.Newf(apperrors.ErrCodeDeliveryFailed,
			"all %d notification deliveries failed", failed)
	}

	if analysis.HasCritical() && cfg.EscalationEnabled {
		if err := o.openEscalation(ctx, cfg, analysis); err != nil {
			o.appendLog(ctx, item, domain.StateNotified, domain.OutcomeFailure,
				"escalation open failed", d.Clock.Now().Sub(started))
			return err
		}
	}

	if err := o.advance(ctx, item, domain.StateNotified, owner); err != nil {
		return err
	}
	o.appendLog(ctx, item, domain.StateNotified, domain.OutcomeSuccess, "", d.Clock.Now().Sub(started))
	return nil
}

func (o *Orchestrator) openEscalation(ctx context.Context, cfg *domain.Config, analysis *risk.Analysis) error {
	d := o.deps
	if existing, err := d.Notifications.GetEscalationByAnalysis(ctx, analysis.ID); err == nil && existing != nil {
		return nil
	} else if err != nil && !apperrors.IsNotFound(err) {
		return err
	}
	deadline, _ := cfg.TierDeadline(0)
	state := notification.NewEscalationState(analysis.CompanyID, analysis.ID, deadline, d.Clock.Now())
	if err := d.Notifications.SaveEscalation(ctx, state); err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeConflict) {
			return nil
		}
		return err
	}
	return nil
}

func (o *Orchestrator) recipients(cfg *domain.Config, org *assessment.OrgContext) []notification.Recipient {
	out := make([]notification.Recipient, 0, len(cfg.HRRecipients)+1)
	for _, id := range cfg.HRRecipients {
		out = append(out, notification.Recipient{
			ID: id, Role: "hr_analyst", Channel: notification.ChannelEmail,
		})
	}
	if cfg.NotifyManager && org != nil && org.ManagerID != uuid.Nil {
		out = append(out, notification.Recipient{
			ID: org.ManagerID, Role: "manager", Channel: notification.ChannelInApp,
		})
	}
	return out
}

// ─────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────

func (o *Orchestrator) advance(ctx context.Context, item *domain.WorkItem, to domain.State, owner string) error {
	if err := item.Advance(to, o.deps.Clock.Now()); err != nil {
		return err
	}
	if err := o.deps.Queue.Update(ctx, item, owner); err != nil {
		o.appendLog(ctx, item, to, domain.OutcomeFailure, "state update failed", 0)
		return err
	}
	return nil
}

func (o *Orchestrator) appendLog(ctx context.Context, item *domain.WorkItem, stage domain.State, outcome domain.Outcome, detail string, duration time.Duration) {
	entry := domain.NewLogEntry(item, stage, outcome, detail, duration, o.deps.Clock.Now())
	if outcome == domain.OutcomeFailure {
		entry.ErrorCode = apperrors.ErrCodeInternal
	}
	if err := o.deps.Logs.Append(ctx, entry); err != nil {
		o.logger.Warn("processing log append failed",
			logging.String("response_id", item.ResponseID.String()), logging.Err(err))
	}
	o.deps.Metrics.ObserveStage(stage, outcome, duration)
}
