package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/parcela/internal/middleware"
)

const (
	APIVersion = "0.3.0"

	// HealthCheckTimeout bounds each dependency ping.
	HealthCheckTimeout = 2 * time.Second
)

// Pinger is a dependency that can report its reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Check is a named readiness dependency. Optional checks report their
// state without failing readiness.
type Check struct {
	Pinger   Pinger
	Name     string
	Optional bool
}

// HealthHandler serves liveness, readiness and build info.
type HealthHandler struct {
	startTime time.Time
	env       string
	checks    []Check
}

// NewHealthHandler starts the uptime clock. Checks run in order on every readiness check.
func NewHealthHandler(env string, checks ...Check) *HealthHandler {
	return &HealthHandler{
		startTime: time.Now(),
		env:       env,
		checks:    checks,
	}
}

// HealthResponse is the liveness body.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse reports each dependency as connected or disconnected.
type ReadyResponse struct {
	Dependencies map[string]string `json:"dependencies"`
	Status       string            `json:"status"`
}

// InfoResponse is returned by /api/v1/info.
type InfoResponse struct {
	Version     string `json:"version"`
	Environment string `json:"environment"`
	Uptime      string `json:"uptime"`
}

// Health handles GET /health. It never checks dependencies.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy"})
}

// Ready handles GET /health/ready. It returns 503 when a required
// dependency is unreachable.
func (h *HealthHandler) Ready(c *gin.Context) {
	resp := ReadyResponse{Status: "ready", Dependencies: make(map[string]string, len(h.checks))}
	status := http.StatusOK

	for _, check := range h.checks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), HealthCheckTimeout)
		err := check.Pinger.Ping(ctx)
		cancel()

		if err == nil {
			resp.Dependencies[check.Name] = "connected"
			continue
		}
		resp.Dependencies[check.Name] = "disconnected"
		if log := middleware.GetLogger(c); log != nil {
			log.Error("Health check failed", err, map[string]interface{}{
				"dependency": check.Name,
				"optional":   check.Optional,
				"timeout":    HealthCheckTimeout.String(),
			})
		}
		if !check.Optional {
			resp.Status = "not_ready"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, resp)
}

// Info handles GET /api/v1/info.
func (h *HealthHandler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, InfoResponse{
		Version:     APIVersion,
		Environment: h.env,
		Uptime:      formatUptime(time.Since(h.startTime)),
	})
}

// formatUptime renders whole seconds, prefixed with full days once there are any.
func formatUptime(d time.Duration) string {
	const day = 24 * time.Hour
	d = d.Truncate(time.Second)
	days := d / day
	d -= days * day

	clock := fmt.Sprintf("%dh %dm %ds", d/time.Hour, d%time.Hour/time.Minute, d%time.Minute/time.Second)
	if days > 0 {
		return fmt.Sprintf("%dd %s", days, clock)
	}
	return clock
}
