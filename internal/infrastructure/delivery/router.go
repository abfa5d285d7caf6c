// Package delivery implements the notification senders: a channel
// router, a Slack webhook sender for escalations and a bus sender that
// hands email and in-app messages to the platform delivery service.
package delivery

import (
	"context"

	"github.com/nexohr/psicorisco/internal/domain/notification"
	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
	apperrors "github.com/nexohr/psicorisco/pkg/errors"
)

// Router dispatches a notification to the sender registered for its
// channel.
type Router struct {
	senders map[notification.Channel]notification.Sender
	logger  logging.Logger
}

// NewRouter builds an empty router.
func NewRouter(logger logging.Logger) *Router {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Router{
		senders: make(map[notification.Channel]notification.Sender),
		logger:  logger.Named("delivery"),
	}
}

// Register binds a sender to a channel, replacing any previous binding.
func (r *Router) Register(channel notification.Channel, sender notification.Sender) *Router {
	r.senders[channel] = sender
	return r
}

// Send delivers over the channel's sender.
func (r *Router) Send(ctx context.Context, n *notification.Notification) error {
	sender, ok := r.senders[n.Channel]
	if !ok {
		return apperrors.Newf(apperrors.ErrCodeDeliveryFailed,
			"no sender registered for channel %s", n.Channel)
	}
	if err := sender.Send(ctx, n); err != nil {
		r.logger.Warn("delivery failed",
			logging.String("channel", string(n.Channel)),
			logging.String("dedupe_key", n.DedupeKey),
			logging.Err(err),
		)
		return err
	}
	r.logger.Debug("notification delivered",
		logging.String("channel", string(n.Channel)),
		logging.String("type", string(n.Type)),
	)
	return nil
}
