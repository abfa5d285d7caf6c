package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/google/uuid"

	appautomation "github.com/nexohr/psicorisco/internal/application/automation"
	"github.com/nexohr/psicorisco/internal/domain/automation"
	"github.com/nexohr/psicorisco/internal/domain/scoring"
	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
	apperrors "github.com/nexohr/psicorisco/pkg/errors"
)

const (
	defaultStatsWindow = 24 * time.Hour
	maxStatsWindow     = 90 * 24 * time.Hour
)

// StatsHandler serves processing statistics and per-company automation
// policies.
type StatsHandler struct {
	stats   *appautomation.StatsService
	configs automation.ConfigRepository
	logger  logging.Logger
}

// NewStatsHandler constructs the handler.
func NewStatsHandler(stats *appautomation.StatsService, configs automation.ConfigRepository, logger logging.Logger) *StatsHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &StatsHandler{stats: stats, configs: configs, logger: logger.Named("stats_handler")}
}

// CompanyStats returns aggregated stats over a trailing window.
// GET /api/v1/companies/:id/stats?window=24h
func (h *StatsHandler) CompanyStats(c *gin.Context) {
	companyID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	window := defaultStatsWindow
	if raw := c.Query("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 || parsed > maxStatsWindow {
			respondError(c, apperrors.Newf(apperrors.ErrCodeBadRequest,
				"window must be a duration up to %s", maxStatsWindow))
			return
		}
		window = parsed
	}

	stats, err := h.stats.Get(c.Request.Context(), companyID, window)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetConfig returns the company's automation policy.
// GET /api/v1/companies/:id/automation-config
func (h *StatsHandler) GetConfig(c *gin.Context) {
	companyID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	cfg, err := h.configs.GetByCompany(c.Request.Context(), companyID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

type configRequest struct {
	Enabled                bool                    `json:"enabled"`
	AutoGeneratePlans      bool                    `json:"auto_generate_plans"`
	NotificationEnabled    bool                    `json:"notification_enabled"`
	MinNotifyLevel         string                  `json:"min_notify_level" binding:"required,oneof=baixo medio alto critico"`
	HRRecipients           []string                `json:"hr_recipients"`
	NotifyManager          bool                    `json:"notify_manager"`
	EscalationEnabled      bool                    `json:"escalation_enabled"`
	EscalationLadder       []escalationStepRequest `json:"escalation_ladder"`
	ProcessingDelayMinutes int                     `json:"processing_delay_minutes" binding:"gte=0"`
}

type escalationStepRequest struct {
	Role         string `json:"role" binding:"required,oneof=hr manager leadership"`
	Channel      string `json:"channel" binding:"required,oneof=email in_app sms slack"`
	DelayMinutes int    `json:"delay_minutes" binding:"gte=0"`
}

// PutConfig upserts the company's automation policy.
// PUT /api/v1/companies/:id/automation-config
func (h *StatsHandler) PutConfig(c *gin.Context) {
	companyID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req configRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "invalid config"))
		return
	}

	cfg := &automation.Config{
		CompanyID:              companyID,
		Enabled:                req.Enabled,
		AutoGeneratePlans:      req.AutoGeneratePlans,
		NotificationEnabled:    req.NotificationEnabled,
		MinNotifyLevel:         scoringLevel(req.MinNotifyLevel),
		NotifyManager:          req.NotifyManager,
		EscalationEnabled:      req.EscalationEnabled,
		ProcessingDelayMinutes: req.ProcessingDelayMinutes,
		UpdatedAt:              time.Now().UTC(),
	}
	for _, raw := range req.HRRecipients {
		id, err := parseRecipient(raw)
		if err != nil {
			respondError(c, err)
			return
		}
		cfg.HRRecipients = append(cfg.HRRecipients, id)
	}
	for _, step := range req.EscalationLadder {
		cfg.EscalationLadder = append(cfg.EscalationLadder, automation.EscalationStep{
			Role: step.Role, Channel: step.Channel, DelayMinutes: step.DelayMinutes,
		})
	}

	if err := h.configs.Save(c.Request.Context(), cfg); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func scoringLevel(raw string) scoring.ExposureLevel {
	return scoring.ExposureLevel(raw)
}

func parseRecipient(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.Newf(apperrors.ErrCodeBadRequest,
			"hr_recipients entries must be UUIDs, got %q", raw)
	}
	return id, nil
}
