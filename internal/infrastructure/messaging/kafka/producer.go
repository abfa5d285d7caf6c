package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/nexohr/psicorisco/internal/config"
	"github.com/nexohr/psicorisco/internal/domain/automation"
	"github.com/nexohr/psicorisco/internal/domain/risk"
	"github.com/nexohr/psicorisco/internal/domain/scoring"
	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
	apperrors "github.com/nexohr/psicorisco/pkg/errors"
)

// writerIface abstracts kafka.Writer for tests.
type writerIface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes pipeline events. It satisfies the application
// layer's EventPublisher port.
type Producer struct {
	writer writerIface
	logger logging.Logger
}

// NewProducer builds a producer over the configured brokers. One writer
// serves all topics; the topic is set per message.
func NewProducer(cfg config.KafkaConfig, logger logging.Logger) *Producer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxAttempts:  cfg.MaxAttempts,
		RequiredAcks: kafka.RequireAll,
	}
	return &Producer{writer: writer, logger: logger.Named("kafka_producer")}
}

// PublishAnalysisCreated emits a risk.analysis.created event.
func (p *Producer) PublishAnalysisCreated(ctx context.Context, analysis *risk.Analysis) error {
	payload := AnalysisCreatedPayload{
		AnalysisID:   analysis.ID,
		ResponseID:   analysis.ResponseID,
		CompanyID:    analysis.CompanyID,
		SectorID:     analysis.SectorID,
		OverallScore: analysis.OverallScore,
		OverallLevel: string(analysis.OverallLevel),
		WorstLevel:   string(analysis.WorstLevel),
	}
	return p.publish(ctx, TopicAnalysisCreated, analysis.CompanyID, payload)
}

// PublishPipelineCompleted emits an automation.pipeline.completed event.
func (p *Producer) PublishPipelineCompleted(ctx context.Context, item *automation.WorkItem, level scoring.ExposureLevel) error {
	payload := PipelineCompletedPayload{
		WorkItemID: item.ID,
		ResponseID: item.ResponseID,
		CompanyID:  item.CompanyID,
		WorstLevel: string(level),
		Attempts:   item.Attempts,
	}
	return p.publish(ctx, TopicPipelineCompleted, item.CompanyID, payload)
}

// PublishPipelineFailed emits an automation.pipeline.failed event.
func (p *Producer) PublishPipelineFailed(ctx context.Context, item *automation.WorkItem, cause string) error {
	payload := PipelineFailedPayload{
		WorkItemID: item.ID,
		ResponseID: item.ResponseID,
		CompanyID:  item.CompanyID,
		Attempts:   item.Attempts,
		Cause:      cause,
	}
	return p.publish(ctx, TopicPipelineFailed, item.CompanyID, payload)
}

func (p *Producer) publish(ctx context.Context, topic string, companyID uuid.UUID, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeSerialization, "failed to encode event payload")
	}
	envelope := Envelope{
		ID:         uuid.New(),
		Type:       topic,
		CompanyID:  companyID,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	}
	value, err := json.Marshal(envelope)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeSerialization, "failed to encode event envelope")
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(companyID.String()),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to publish event")
	}
	p.logger.Debug("event published",
		logging.String("topic", topic),
		logging.String("company_id", companyID.String()),
	)
	return nil
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
