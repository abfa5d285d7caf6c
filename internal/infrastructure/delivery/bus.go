package delivery

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/nexohr/psicorisco/internal/config"
	"github.com/nexohr/psicorisco/internal/domain/notification"
	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
	apperrors "github.com/nexohr/psicorisco/pkg/errors"
)

// TopicNotificationDispatch is consumed by the platform delivery
// service, which owns templating-free email and in-app fan-out.
const TopicNotificationDispatch = "notification.dispatch"

// busWriter abstracts kafka.Writer for tests.
type busWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// BusSender publishes email and in-app notifications to the message
// bus. Delivery to the final device is the platform's job; a successful
// publish counts as sent here.
type BusSender struct {
	writer busWriter
	logger logging.Logger
}

// NewBusSender builds the sender over the configured brokers.
func NewBusSender(cfg config.KafkaConfig, logger logging.Logger) *BusSender {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        TopicNotificationDispatch,
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxAttempts:  cfg.MaxAttempts,
		RequiredAcks: kafka.RequireAll,
	}
	return &BusSender{writer: writer, logger: logger.Named("bus_sender")}
}

// Send publishes the notification keyed by recipient so one person's
// messages stay ordered.
func (s *BusSender) Send(ctx context.Context, n *notification.Notification) error {
	value, err := json.Marshal(n)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeSerialization, "failed to encode notification")
	}
	msg := kafka.Message{
		Key:   []byte(n.RecipientID.String()),
		Value: value,
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDeliveryFailed, "failed to publish notification")
	}
	return nil
}

// Close flushes and closes the writer.
func (s *BusSender) Close() error {
	return s.writer.Close()
}
