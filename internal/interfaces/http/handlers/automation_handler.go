package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appautomation "github.com/nexohr/psicorisco/internal/application/automation"
	"github.com/nexohr/psicorisco/internal/domain/automation"
	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
	apperrors "github.com/nexohr/psicorisco/pkg/errors"
)

// Triggerer enqueues and retries pipeline runs.
type Triggerer interface {
	Enqueue(ctx context.Context, responseID uuid.UUID) (*automation.WorkItem, error)
	Retry(ctx context.Context, responseID uuid.UUID) (*automation.WorkItem, error)
}

// ProcessorControl exposes the worker pool to the API.
type ProcessorControl interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Status(ctx context.Context) appautomation.Status
}

// AutomationHandler serves the pipeline control endpoints.
type AutomationHandler struct {
	trigger   Triggerer
	queue     automation.QueueRepository
	logs      automation.LogRepository
	processor ProcessorControl
	logger    logging.Logger
}

// NewAutomationHandler constructs the handler.
func NewAutomationHandler(trigger Triggerer, queue automation.QueueRepository, logs automation.LogRepository, processor ProcessorControl, logger logging.Logger) *AutomationHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &AutomationHandler{
		trigger:   trigger,
		queue:     queue,
		logs:      logs,
		processor: processor,
		logger:    logger.Named("automation_handler"),
	}
}

type triggerRequest struct {
	ResponseID uuid.UUID `json:"response_id" binding:"required"`
}

// Trigger enqueues a response for processing.
// POST /api/v1/automation/trigger
func (h *AutomationHandler) Trigger(c *gin.Context) {
	var req triggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "invalid trigger request"))
		return
	}

	item, err := h.trigger.Enqueue(c.Request.Context(), req.ResponseID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, item)
}

// Retry re-queues a permanently failed response.
// POST /api/v1/automation/retry
func (h *AutomationHandler) Retry(c *gin.Context) {
	var req triggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "invalid retry request"))
		return
	}

	item, err := h.trigger.Retry(c.Request.Context(), req.ResponseID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, item)
}

// ResponseStatus reports queue state and audit trail for a response.
// GET /api/v1/automation/responses/:id
func (h *AutomationHandler) ResponseStatus(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	item, err := h.queue.GetByResponse(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	entries, err := h.logs.ListByResponse(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"work_item": item,
		"log":       entries,
	})
}

// QueueStatus reports the worker pool state.
// GET /api/v1/automation/queue
func (h *AutomationHandler) QueueStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.processor.Status(c.Request.Context()))
}

// StartQueue resumes processing.
// POST /api/v1/automation/queue/start
func (h *AutomationHandler) StartQueue(c *gin.Context) {
	if err := h.processor.Start(context.WithoutCancel(c.Request.Context())); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"running": true})
}

// StopQueue drains the workers and halts processing.
// POST /api/v1/automation/queue/stop
func (h *AutomationHandler) StopQueue(c *gin.Context) {
	if err := h.processor.Stop(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"running": false})
}
