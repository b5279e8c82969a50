package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Check reports whether one backing service is reachable.
type Check func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]Check
}

// NewHealthHandler takes one check per dependency, keyed by the name used
// in the readiness report.
func NewHealthHandler(checks map[string]Check) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Readyz(c *gin.Context) {
	ctx := c.Request.Context()

	report := gin.H{"status": "ok"}
	status := http.StatusOK
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			report[name] = "unavailable"
			report["status"] = "error"
			status = http.StatusServiceUnavailable
			continue
		}
		report[name] = "connected"
	}
	c.JSON(status, report)
}
