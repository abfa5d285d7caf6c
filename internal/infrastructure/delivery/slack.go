package delivery

import (
	"context"

	"github.com/slack-go/slack"

	"github.com/nexohr/psicorisco/internal/config"
	"github.com/nexohr/psicorisco/internal/domain/notification"
	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
	apperrors "github.com/nexohr/psicorisco/pkg/errors"
)

// webhookPoster allows tests to intercept the outgoing webhook call.
type webhookPoster func(ctx context.Context, url string, msg *slack.WebhookMessage) error

// SlackSender posts leadership escalations to the configured webhook.
type SlackSender struct {
	webhookURL string
	channel    string
	post       webhookPoster
	logger     logging.Logger
}

// NewSlackSender builds the sender from configuration.
func NewSlackSender(cfg config.SlackConfig, logger logging.Logger) *SlackSender {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &SlackSender{
		webhookURL: cfg.WebhookURL,
		channel:    cfg.Channel,
		post:       slack.PostWebhookContext,
		logger:     logger.Named("slack"),
	}
}

// Send posts the notification as an attachment so critical findings
// stand out in the channel.
func (s *SlackSender) Send(ctx context.Context, n *notification.Notification) error {
	msg := &slack.WebhookMessage{
		Channel: s.channel,
		Text:    n.Subject,
		Attachments: []slack.Attachment{{
			Color: "danger",
			Text:  n.Body,
		}},
	}
	if err := s.post(ctx, s.webhookURL, msg); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDeliveryFailed, "slack webhook failed")
	}
	return nil
}
