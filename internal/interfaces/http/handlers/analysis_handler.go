package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nexohr/psicorisco/internal/domain/actionplan"
	"github.com/nexohr/psicorisco/internal/domain/notification"
	"github.com/nexohr/psicorisco/internal/domain/risk"
	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
)

// AnalysisHandler serves risk analyses, their action plans and the
// escalation ladder.
type AnalysisHandler struct {
	analyses      risk.Repository
	plans         actionplan.Repository
	notifications notification.Repository
	logger        logging.Logger
}

// NewAnalysisHandler constructs the handler.
func NewAnalysisHandler(analyses risk.Repository, plans actionplan.Repository, notifications notification.Repository, logger logging.Logger) *AnalysisHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &AnalysisHandler{
		analyses:      analyses,
		plans:         plans,
		notifications: notifications,
		logger:        logger.Named("analysis_handler"),
	}
}

// Get returns one analysis.
// GET /api/v1/analyses/:id
func (h *AnalysisHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	analysis, err := h.analyses.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// GetByResponse returns the analysis produced for a response.
// GET /api/v1/responses/:id/analysis
func (h *AnalysisHandler) GetByResponse(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	analysis, err := h.analyses.GetByResponse(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// GetPlan returns the action plan generated for an analysis.
// GET /api/v1/analyses/:id/plan
func (h *AnalysisHandler) GetPlan(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	plan, err := h.plans.GetByAnalysis(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// ListSectorPlans returns the open plans for a sector.
// GET /api/v1/companies/:id/sectors/:sectorID/plans
func (h *AnalysisHandler) ListSectorPlans(c *gin.Context) {
	companyID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	sectorID, ok := pathUUID(c, "sectorID")
	if !ok {
		return
	}
	plans, err := h.plans.ListBySector(c.Request.Context(), companyID, sectorID, 50)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

// Acknowledge stops the escalation ladder for an analysis.
// POST /api/v1/analyses/:id/escalation/acknowledge
func (h *AnalysisHandler) Acknowledge(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	state, err := h.notifications.GetEscalationByAnalysis(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	state.Acknowledge(time.Now().UTC())
	if err := h.notifications.UpdateEscalation(c.Request.Context(), state); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}
