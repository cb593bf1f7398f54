package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pubkeyapp/realms-vsr-holders/internal/services"
)

// DatabaseChecker is satisfied by services.DatabaseHealthChecker
type DatabaseChecker interface {
	services.HealthChecker
	GetDetailedHealth(ctx context.Context) map[string]*services.HealthCheck
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	db  DatabaseChecker
	rpc services.HealthChecker
}

// NewHealthHandler creates a new health handler. db may be nil when the
// service runs without a key store.
func NewHealthHandler(db DatabaseChecker, rpc services.HealthChecker) *HealthHandler {
	return &HealthHandler{
		db:  db,
		rpc: rpc,
	}
}

// HealthResponse represents the overall health response
type HealthResponse struct {
	Status    services.HealthStatus            `json:"status"`
	Timestamp time.Time                        `json:"timestamp"`
	Services  map[string]*services.HealthCheck `json:"services"`
	Version   string                           `json:"version,omitempty"`
}

func (h *HealthHandler) checks(ctx context.Context) map[string]*services.HealthCheck {
	checks := map[string]*services.HealthCheck{
		"solana_rpc": h.rpc.CheckHealth(ctx),
	}
	if h.db != nil {
		checks["database"] = h.db.CheckHealth(ctx)
	}
	return checks
}

func statusCode(status services.HealthStatus) int {
	if status == services.HealthStatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// GetHealth returns the overall health status
func (h *HealthHandler) GetHealth(c *gin.Context) {
	checks := h.checks(c.Request.Context())
	status := services.Worst(checks)

	c.JSON(statusCode(status), HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Services:  checks,
		Version:   Version,
	})
}

// GetLiveness returns a simple liveness check
func (h *HealthHandler) GetLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// GetReadiness reports whether every dependency is reachable
func (h *HealthHandler) GetReadiness(c *gin.Context) {
	for name, check := range h.checks(c.Request.Context()) {
		if check.Status == services.HealthStatusUnhealthy {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "not_ready",
				"message":   name + " not available",
				"timestamp": time.Now(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// GetDatabaseHealth returns detailed database health information
func (h *HealthHandler) GetDatabaseHealth(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusNotFound, gin.H{"status": "disabled"})
		return
	}

	checks := h.db.GetDetailedHealth(c.Request.Context())
	status := services.Worst(checks)
	c.JSON(statusCode(status), HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Services:  checks,
	})
}

// GetRPCHealth returns the Solana RPC health check
func (h *HealthHandler) GetRPCHealth(c *gin.Context) {
	check := h.rpc.CheckHealth(c.Request.Context())
	c.JSON(statusCode(check.Status), check)
}
