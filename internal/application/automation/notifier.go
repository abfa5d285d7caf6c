package automation

import (
	"context"

	"github.com/google/uuid"

	domain "github.com/nexohr/psicorisco/internal/domain/automation"
	"github.com/nexohr/psicorisco/internal/domain/notification"
	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
	apperrors "github.com/nexohr/psicorisco/pkg/errors"
)

// FailureNotifier tells someone that an item exhausted its retries.
type FailureNotifier interface {
	NotifyProcessingFailure(ctx context.Context, item *domain.WorkItem, cause string) error
}

// HRFailureNotifier emails the company's HR recipients when a response
// fails permanently, so the response does not vanish silently from the
// compliance trail.
type HRFailureNotifier struct {
	configs       domain.ConfigRepository
	notifications notification.Repository
	sender        notification.Sender
	clock         Clock
	logger        logging.Logger
}

// NewFailureNotifier builds an HRFailureNotifier.
func NewFailureNotifier(configs domain.ConfigRepository, notifications notification.Repository, sender notification.Sender, clock Clock, logger logging.Logger) *HRFailureNotifier {
	if sender == nil {
		sender = notification.NopSender{}
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &HRFailureNotifier{
		configs:       configs,
		notifications: notifications,
		sender:        sender,
		clock:         clock,
		logger:        logger.Named("failure_notifier"),
	}
}

// NotifyProcessingFailure sends one processing_error notice per HR
// recipient. Companies without a config or with notifications disabled
// get nothing.
func (n *HRFailureNotifier) NotifyProcessingFailure(ctx context.Context, item *domain.WorkItem, cause string) error {
	cfg, err := n.configs.GetByCompany(ctx, item.CompanyID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil
		}
		return err
	}
	if !cfg.NotificationEnabled || len(cfg.HRRecipients) == 0 {
		return nil
	}

	subject, body, err := notification.RenderProcessingError(item.ResponseID, cause)
	if err != nil {
		return err
	}

	now := n.clock.Now()
	for _, id := range cfg.HRRecipients {
		notif := &notification.Notification{
			ID:            uuid.New(),
			CompanyID:     item.CompanyID,
			AnalysisID:    item.ResponseID, // no analysis exists; key by response
			RecipientID:   id,
			RecipientRole: "hr_analyst",
			Type:          notification.TypeProcessingError,
			Channel:       notification.ChannelEmail,
			Subject:       subject,
			Body:          body,
			DedupeKey:     notification.DedupeKeyFor(notification.TypeProcessingError, item.ResponseID, id),
			Status:        notification.StatusPending,
			CreatedAt:     now,
		}
		if err := n.notifications.Save(ctx, notif); err != nil {
			if apperrors.IsCode(err, apperrors.ErrCodeNotificationDuplicate) {
				continue
			}
			return err
		}
		if err := n.sender.Send(ctx, notif); err != nil {
			notif.MarkFailed()
			n.logger.Warn("processing failure notice delivery failed",
				logging.String("notification_id", notif.ID.String()), logging.Err(err))
		} else {
			notif.MarkSent(n.clock.Now())
		}
		if err := n.notifications.UpdateStatus(ctx, notif.ID, notif.Status, notif.SentAt); err != nil {
			n.logger.Warn("notification status not persisted",
				logging.String("notification_id", notif.ID.String()), logging.Err(err))
		}
	}
	return nil
}
