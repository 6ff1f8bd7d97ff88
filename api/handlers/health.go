package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]HealthCheck
}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{checks: make(map[string]HealthCheck)}
}

// Register adds a named dependency check.
func (h *HealthHandler) Register(name string, check HealthCheck) {
	h.checks[name] = check
}

// Check runs every check, failed ones map to their error text.
func (h *HealthHandler) Check(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	out := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			out[name] = err.Error()
			continue
		}
		out[name] = "ok"
	}
	return out
}

func (h *HealthHandler) Health(c *gin.Context) {
	results := h.Check(c.Request.Context())
	status := http.StatusOK
	overall := "ok"
	for _, r := range results {
		if r != "ok" {
			status = http.StatusServiceUnavailable
			overall = "degraded"
		}
	}
	c.JSON(status, gin.H{
		"status": overall,
		"checks": results,
	})
}
