package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
)

// Pinger is a dependency that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	deps    map[string]Pinger
	version string
	logger  logging.Logger
}

// NewHealthHandler constructs the handler over named dependencies.
func NewHealthHandler(deps map[string]Pinger, version string, logger logging.Logger) *HealthHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &HealthHandler{deps: deps, version: version, logger: logger.Named("health")}
}

// Live answers as long as the process is up.
// GET /healthz
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": h.version})
}

// Ready answers 200 only when every dependency responds.
// GET /readyz
func (h *HealthHandler) Ready(c *gin.Context) {
	status := http.StatusOK
	checks := make(map[string]string, len(h.deps))
	for name, dep := range h.deps {
		if err := dep.Ping(c.Request.Context()); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	c.JSON(status, gin.H{"checks": checks})
}
