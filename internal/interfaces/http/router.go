// Package http assembles the gin route tree and the HTTP server.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
	"github.com/nexohr/psicorisco/internal/interfaces/http/handlers"
	"github.com/nexohr/psicorisco/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers the route tree needs.
type RouterConfig struct {
	Automation *handlers.AutomationHandler
	Stats      *handlers.StatsHandler
	Analysis   *handlers.AnalysisHandler
	Health     *handlers.HealthHandler

	// MetricsHandler serves the Prometheus scrape endpoint; nil
	// disables it.
	MetricsHandler http.Handler

	Mode   string
	Logger logging.Logger
}

// NewRouter builds the complete route tree.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))

	if cfg.Health != nil {
		r.GET("/healthz", cfg.Health.Live)
		r.GET("/readyz", cfg.Health.Ready)
	}
	if cfg.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	v1 := r.Group("/api/v1")

	if cfg.Automation != nil {
		auto := v1.Group("/automation")
		auto.POST("/trigger", cfg.Automation.Trigger)
		auto.POST("/retry", cfg.Automation.Retry)
		auto.GET("/responses/:id", cfg.Automation.ResponseStatus)
		auto.GET("/queue", cfg.Automation.QueueStatus)
		auto.POST("/queue/start", cfg.Automation.StartQueue)
		auto.POST("/queue/stop", cfg.Automation.StopQueue)
	}

	if cfg.Analysis != nil {
		v1.GET("/analyses/:id", cfg.Analysis.Get)
		v1.GET("/analyses/:id/plan", cfg.Analysis.GetPlan)
		v1.POST("/analyses/:id/escalation/acknowledge", cfg.Analysis.Acknowledge)
		v1.GET("/responses/:id/analysis", cfg.Analysis.GetByResponse)
	}

	if cfg.Stats != nil {
		companies := v1.Group("/companies/:id")
		companies.GET("/stats", cfg.Stats.CompanyStats)
		companies.GET("/automation-config", cfg.Stats.GetConfig)
		companies.PUT("/automation-config", cfg.Stats.PutConfig)
		if cfg.Analysis != nil {
			companies.GET("/sectors/:sectorID/plans", cfg.Analysis.ListSectorPlans)
		}
	}

	return r
}
