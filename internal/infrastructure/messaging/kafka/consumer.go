package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/nexohr/psicorisco/internal/config"
	"github.com/nexohr/psicorisco/internal/domain/assessment"
	"github.com/nexohr/psicorisco/internal/domain/automation"
	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
	apperrors "github.com/nexohr/psicorisco/pkg/errors"
)

// readerIface abstracts kafka.Reader for tests.
type readerIface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ResponseStore is the slice of the read model the consumer writes.
type ResponseStore interface {
	SaveResponse(ctx context.Context, resp *assessment.Response) error
	SaveOrgContext(ctx context.Context, org *assessment.OrgContext) error
}

// Enqueuer queues a stored response for processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, responseID uuid.UUID) (*automation.WorkItem, error)
}

// IntakeConsumer reads assessment.completed events, persists the
// response into the read model and enqueues it for the pipeline. The
// consumer commits only after both writes succeed, so a crash replays
// the message; both writes are idempotent.
type IntakeConsumer struct {
	reader  readerIface
	store   ResponseStore
	trigger Enqueuer
	logger  logging.Logger

	stop   context.CancelFunc
	doneWg sync.WaitGroup
}

// NewIntakeConsumer builds a consumer in the configured group.
func NewIntakeConsumer(cfg config.KafkaConfig, store ResponseStore, trigger Enqueuer, logger logging.Logger) *IntakeConsumer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.IntakeTopic,
		MinBytes: 1,
		MaxBytes: 10 << 20,
		MaxWait:  time.Second,
	})
	return &IntakeConsumer{
		reader:  reader,
		store:   store,
		trigger: trigger,
		logger:  logger.Named("kafka_intake"),
	}
}

// Start consumes messages until Stop or context cancellation.
func (c *IntakeConsumer) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	c.stop = cancel
	c.doneWg.Add(1)
	go func() {
		defer c.doneWg.Done()
		c.run(runCtx)
	}()
	c.logger.Info("intake consumer started")
}

// Stop halts consumption and closes the reader.
func (c *IntakeConsumer) Stop() {
	if c.stop != nil {
		c.stop()
	}
	c.doneWg.Wait()
	_ = c.reader.Close()
	c.logger.Info("intake consumer stopped")
}

func (c *IntakeConsumer) run(ctx context.Context) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("fetch failed", logging.Err(err))
			continue
		}

		if err := c.handle(ctx, msg); err != nil {
			// Leave the message uncommitted so the group replays it.
			c.logger.Error("intake failed, message will be redelivered",
				logging.String("topic", msg.Topic),
				logging.Int("partition", msg.Partition),
				logging.Int64("offset", msg.Offset),
				logging.Err(err),
			)
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("commit failed", logging.Err(err))
		}
	}
}

func (c *IntakeConsumer) handle(ctx context.Context, msg kafka.Message) error {
	var envelope Envelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		// Malformed messages can never succeed; log and drop.
		c.logger.Warn("dropping malformed envelope", logging.Err(err))
		return nil
	}
	var payload AssessmentCompletedPayload
	if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
		c.logger.Warn("dropping malformed payload",
			logging.String("event_id", envelope.ID.String()),
			logging.Err(err),
		)
		return nil
	}

	resp := &assessment.Response{
		ID:           payload.ResponseID,
		CompanyID:    payload.CompanyID,
		EmployeeID:   payload.EmployeeID,
		EvaluationID: payload.EvaluationID,
		Status:       assessment.Status(payload.Status),
		CompletedAt:  payload.CompletedAt,
		CreatedAt:    envelope.OccurredAt,
	}
	for _, a := range payload.Answers {
		resp.Answers = append(resp.Answers, assessment.Answer{
			QuestionID: a.QuestionID,
			CategoryID: a.CategoryID,
			Value:      a.Value,
			Reverse:    a.Reverse,
		})
	}

	if err := c.store.SaveResponse(ctx, resp); err != nil {
		return err
	}
	if payload.Org != nil {
		org := &assessment.OrgContext{
			CompanyID:  payload.CompanyID,
			EmployeeID: payload.EmployeeID,
			SectorID:   payload.Org.SectorID,
			SectorName: payload.Org.SectorName,
			RoleName:   payload.Org.RoleName,
			ManagerID:  payload.Org.ManagerID,
		}
		if err := c.store.SaveOrgContext(ctx, org); err != nil {
			return err
		}
	}

	if _, err := c.trigger.Enqueue(ctx, resp.ID); err != nil {
		// Incomplete responses are stored but never queued.
		if apperrors.GetCode(err) == apperrors.ErrCodeResponseIncomplete {
			c.logger.Info("response stored but not complete, skipping enqueue",
				logging.String("response_id", resp.ID.String()),
			)
			return nil
		}
		return err
	}

	c.logger.Info("response queued",
		logging.String("response_id", resp.ID.String()),
		logging.String("company_id", resp.CompanyID.String()),
	)
	return nil
}
