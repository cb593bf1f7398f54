package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pubkeyapp/realms-vsr-holders/internal/services"
)

const (
	ServiceName = "realms-vsr-holders"
	Version     = "1.0.0"
)

// Cluster describes the RPC endpoint the service resolves against
type Cluster interface {
	Endpoint() string
	ClusterMoniker(ctx context.Context) (string, error)
}

// StatsProvider exposes the power service counters
type StatsProvider interface {
	CacheStats() map[string]interface{}
	PerformanceStats() map[string]interface{}
}

// StatusHandler serves the monitoring endpoints
type StatusHandler struct {
	stats   StatsProvider
	cluster Cluster
	started time.Time
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(stats StatsProvider, cluster Cluster) *StatusHandler {
	return &StatusHandler{
		stats:   stats,
		cluster: cluster,
		started: time.Now(),
	}
}

// GetMetrics handles GET /metrics
func (h *StatusHandler) GetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":     ServiceName,
		"version":     Version,
		"performance": h.stats.PerformanceStats(),
	})
}

// GetStatus handles GET /status
func (h *StatusHandler) GetStatus(c *gin.Context) {
	cluster, err := h.cluster.ClusterMoniker(c.Request.Context())
	rpcHealthy := err == nil
	if err != nil {
		cluster = "unknown"
	}

	c.JSON(http.StatusOK, gin.H{
		"service":     ServiceName,
		"status":      "running",
		"version":     Version,
		"uptime":      time.Since(h.started).String(),
		"rpc_healthy": rpcHealthy,
		"endpoint":    services.RedactEndpoint(h.cluster.Endpoint()),
		"cluster":     cluster,
		"cache":       h.stats.CacheStats(),
	})
}
