package automation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nexohr/psicorisco/internal/domain/assessment"
	domain "github.com/nexohr/psicorisco/internal/domain/automation"
	"github.com/nexohr/psicorisco/internal/domain/notification"
	"github.com/nexohr/psicorisco/internal/domain/risk"
	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
	apperrors "github.com/nexohr/psicorisco/pkg/errors"
)

const escalationBatchSize = 50

// EscalationWorker periodically sweeps unacknowledged critical findings
// and climbs their escalation ladder: HR first, then the sector
// manager, finally the leadership channel. Checks are best-effort on
// the sweep interval, not hard deadlines.
type EscalationWorker struct {
	notifications notification.Repository
	analyses      risk.Repository
	assessments   assessment.Repository
	configs       domain.ConfigRepository
	sender        notification.Sender
	interval      time.Duration
	metrics       PipelineMetrics
	clock         Clock
	logger        logging.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEscalationWorker builds an EscalationWorker.
func NewEscalationWorker(
	notifications notification.Repository,
	analyses risk.Repository,
	assessments assessment.Repository,
	configs domain.ConfigRepository,
	sender notification.Sender,
	interval time.Duration,
	metrics PipelineMetrics,
	clock Clock,
	logger logging.Logger,
) *EscalationWorker {
	if clock == nil {
		clock = SystemClock{}
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &EscalationWorker{
		notifications: notifications,
		analyses:      analyses,
		assessments:   assessments,
		configs:       configs,
		sender:        sender,
		interval:      interval,
		metrics:       metrics,
		clock:         clock,
		logger:        logger.Named("escalation"),
	}
}

// Start launches the sweep loop.
func (w *EscalationWorker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})

	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				w.Sweep(runCtx)
			}
		}
	}()
	w.logger.Info("escalation worker started", logging.Duration("interval", w.interval))
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (w *EscalationWorker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
	w.cancel = nil
}

// Sweep escalates every due finding once. Exported so the CLI can force
// a sweep and tests can drive the worker without the ticker.
func (w *EscalationWorker) Sweep(ctx context.Context) {
	now := w.clock.Now()
	due, err := w.notifications.DueEscalations(ctx, now, escalationBatchSize)
	if err != nil {
		w.logger.Warn("due escalation query failed", logging.Err(err))
		return
	}
	for _, state := range due {
		if err := w.escalateOne(ctx, state); err != nil {
			w.logger.Warn("escalation step failed",
				logging.String("analysis_id", state.AnalysisID.String()),
				logging.Int("tier", int(state.Tier)),
				logging.Err(err))
		}
	}
}

func (w *EscalationWorker) escalateOne(ctx context.Context, state *notification.EscalationState) error {
	now := w.clock.Now()
	ladder := w.ladderFor(ctx, state.CompanyID)

	var deadline time.Duration
	if next := int(state.Tier) + 1; next >= 0 && next < len(ladder)-1 {
		deadline = ladder[next].Deadline()
	}
	if err := state.Escalate(now, len(ladder), deadline); err != nil {
		// Ladder topped out: acknowledge implicitly so the sweep stops
		// revisiting it. The final tier was already alerted.
		if apperrors.IsCode(err, apperrors.ErrCodeEscalationTierExceeded) {
			state.Acknowledge(now)
			return w.notifications.UpdateEscalation(ctx, state)
		}
		return err
	}

	org := w.orgFor(ctx, state)
	recipient, ok := w.recipientFor(ctx, state, org, ladder)
	if !ok {
		// No one to notify at this tier; persist the climb so the next
		// deadline still fires.
		return w.notifications.UpdateEscalation(ctx, state)
	}

	sectorName := ""
	if org != nil {
		sectorName = org.SectorName
	}
	subject, body, err := notification.RenderEscalation(state, sectorName)
	if err != nil {
		return err
	}
	n := &notification.Notification{
		ID:            uuid.New(),
		CompanyID:     state.CompanyID,
		AnalysisID:    state.AnalysisID,
		RecipientID:   recipient.ID,
		RecipientRole: recipient.Role,
		Type:          notification.TypeEscalation,
		Channel:       recipient.Channel,
		Subject:       subject,
		Body:          body,
		DedupeKey:     escalationDedupeKey(state),
		Status:        notification.StatusPending,
		CreatedAt:     now,
	}
	if err := w.notifications.Save(ctx, n); err != nil {
		if !apperrors.IsCode(err, apperrors.ErrCodeNotificationDuplicate) {
			return err
		}
	} else {
		if err := w.sender.Send(ctx, n); err != nil {
			n.MarkFailed()
			w.logger.Warn("escalation delivery failed",
				logging.String("notification_id", n.ID.String()), logging.Err(err))
		} else {
			n.MarkSent(w.clock.Now())
		}
		if err := w.notifications.UpdateStatus(ctx, n.ID, n.Status, n.SentAt); err != nil {
			w.logger.Warn("escalation status not persisted", logging.Err(err))
		}
	}

	if err := w.notifications.UpdateEscalation(ctx, state); err != nil {
		return err
	}
	w.metrics.IncEscalation(int(state.Tier))
	w.logger.Info("finding escalated",
		logging.String("analysis_id", state.AnalysisID.String()),
		logging.Int("tier", int(state.Tier)))
	return nil
}

// orgFor resolves the sector placement behind a finding; optional
// decoration for the notice and the manager-tier recipient.
func (w *EscalationWorker) orgFor(ctx context.Context, state *notification.EscalationState) *assessment.OrgContext {
	analysis, err := w.analyses.Get(ctx, state.AnalysisID)
	if err != nil {
		return nil
	}
	org, err := w.assessments.GetOrgContext(ctx, analysis.CompanyID, analysis.EmployeeID)
	if err != nil {
		return nil
	}
	return org
}

// ladderFor loads the company's configured escalation ladder, falling
// back to the default one when the config is unreachable.
func (w *EscalationWorker) ladderFor(ctx context.Context, companyID uuid.UUID) []domain.EscalationStep {
	cfg, err := w.configs.GetByCompany(ctx, companyID)
	if err != nil {
		return domain.DefaultEscalationLadder()
	}
	return cfg.Ladder()
}

// recipientFor resolves who the state's current ladder step alerts.
// The leadership step routes to the Slack channel through a synthetic
// recipient.
func (w *EscalationWorker) recipientFor(ctx context.Context, state *notification.EscalationState, org *assessment.OrgContext, ladder []domain.EscalationStep) (notification.Recipient, bool) {
	if int(state.Tier) >= len(ladder) {
		return notification.Recipient{}, false
	}
	step := ladder[state.Tier]
	channel := notification.Channel(step.Channel)
	switch step.Role {
	case domain.RoleManager:
		if org == nil || org.ManagerID == uuid.Nil {
			return notification.Recipient{}, false
		}
		return notification.Recipient{ID: org.ManagerID, Role: "manager", Channel: channel}, true
	case domain.RoleLeadership:
		return notification.Recipient{ID: state.CompanyID, Role: "leadership", Channel: channel}, true
	default:
		cfg, err := w.configs.GetByCompany(ctx, state.CompanyID)
		if err != nil || len(cfg.HRRecipients) == 0 {
			return notification.Recipient{}, false
		}
		return notification.Recipient{ID: cfg.HRRecipients[0], Role: "hr_analyst", Channel: channel}, true
	}
}

func escalationDedupeKey(state *notification.EscalationState) string {
	return notification.DedupeKeyFor(notification.TypeEscalation, state.AnalysisID,
		uuid.NewSHA1(state.AnalysisID, []byte{byte(state.Tier)}))
}
