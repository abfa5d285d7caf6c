package automation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nexohr/psicorisco/internal/domain/assessment"
	domain "github.com/nexohr/psicorisco/internal/domain/automation"
	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
	apperrors "github.com/nexohr/psicorisco/pkg/errors"
)

// IntakeGuard is a fast idempotency check in front of the queue's
// unique constraint. A guard failure never blocks intake: errors are
// treated as acquired and the constraint catches the duplicate.
type IntakeGuard interface {
	Acquire(ctx context.Context, responseID uuid.UUID) (bool, error)
}

// Trigger enqueues responses for processing, either from the intake
// consumer on assessment.completed events or from a manual API call.
// Enqueueing is idempotent per response.
type Trigger struct {
	assessments assessment.Repository
	queue       domain.QueueRepository
	configs     domain.ConfigRepository
	guard       IntakeGuard
	maxRetries  int
	clock       Clock
	logger      logging.Logger
}

// NewTrigger builds a Trigger. configs and guard are optional.
func NewTrigger(assessments assessment.Repository, queue domain.QueueRepository, configs domain.ConfigRepository, guard IntakeGuard, maxRetries int, clock Clock, logger logging.Logger) *Trigger {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Trigger{
		assessments: assessments,
		queue:       queue,
		configs:     configs,
		guard:       guard,
		maxRetries:  maxRetries,
		clock:       clock,
		logger:      logger.Named("trigger"),
	}
}

// Enqueue validates the response and queues it. Incomplete responses
// are rejected up front so the queue only ever holds scoreable work.
// The first attempt is pushed out by the company's processing delay.
func (t *Trigger) Enqueue(ctx context.Context, responseID uuid.UUID) (*domain.WorkItem, error) {
	response, err := t.assessments.GetResponse(ctx, responseID)
	if err != nil {
		return nil, err
	}
	if !response.IsComplete() {
		return nil, apperrors.Newf(apperrors.ErrCodeResponseIncomplete,
			"response %s is not completed", responseID)
	}

	if t.guard != nil {
		fresh, err := t.guard.Acquire(ctx, responseID)
		if err != nil {
			t.logger.Warn("intake guard unavailable, relying on queue constraint",
				logging.String("response_id", responseID.String()), logging.Err(err))
		} else if !fresh {
			if existing, err := t.queue.GetByResponse(ctx, responseID); err == nil {
				t.logger.Debug("response already queued",
					logging.String("response_id", responseID.String()),
					logging.String("state", string(existing.State)))
				return existing, nil
			}
		}
	}

	now := t.clock.Now()
	item := domain.NewWorkItem(response.ID, response.CompanyID, t.maxRetries, now)
	if delay := t.processingDelay(ctx, response.CompanyID); delay > 0 {
		item.NextAttemptAt = now.Add(delay)
	}
	queued, err := t.queue.Enqueue(ctx, item)
	if err != nil {
		return nil, err
	}
	if queued.ID != item.ID {
		t.logger.Debug("response already queued",
			logging.String("response_id", responseID.String()),
			logging.String("state", string(queued.State)))
	} else {
		t.logger.Info("response queued for automation",
			logging.String("response_id", responseID.String()),
			logging.String("company_id", response.CompanyID.String()))
	}
	return queued, nil
}

// processingDelay looks up the company's configured delay before the
// pipeline may pick an item up. Missing config means no delay.
func (t *Trigger) processingDelay(ctx context.Context, companyID uuid.UUID) time.Duration {
	if t.configs == nil {
		return 0
	}
	cfg, err := t.configs.GetByCompany(ctx, companyID)
	if err != nil {
		return 0
	}
	return cfg.ProcessingDelay()
}

// Retry re-queues a permanently failed item with a fresh attempt
// budget. Items in any other state are left alone.
func (t *Trigger) Retry(ctx context.Context, responseID uuid.UUID) (*domain.WorkItem, error) {
	item, err := t.queue.GetByResponse(ctx, responseID)
	if err != nil {
		return nil, err
	}
	if item.State != domain.StateFailed {
		return nil, apperrors.Newf(apperrors.ErrCodeConflict,
			"item for response %s is %s, only failed items can be retried", responseID, item.State)
	}
	now := t.clock.Now()
	if err := item.Advance(domain.StatePending, now); err != nil {
		return nil, err
	}
	item.Attempts = 0
	item.LastError = ""
	item.NextAttemptAt = now
	if err := t.queue.Update(ctx, item, ""); err != nil {
		return nil, err
	}
	t.logger.Info("failed item re-queued", logging.String("response_id", responseID.String()))
	return item, nil
}
