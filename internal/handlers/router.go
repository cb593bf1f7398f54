package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/pubkeyapp/realms-vsr-holders/internal/services"
)

// Router handles HTTP routing setup
type Router struct {
	powerHandler  *PowerHandler
	healthHandler *HealthHandler
	statusHandler *StatusHandler
}

// NewRouter creates a new Router instance with all handlers
func NewRouter(powerService services.PowerServiceInterface, healthHandler *HealthHandler, statusHandler *StatusHandler) *Router {
	return &Router{
		powerHandler:  NewPowerHandler(powerService),
		healthHandler: healthHandler,
		statusHandler: statusHandler,
	}
}

// SetupAPIRoutes configures the governance power routes behind guards
func (r *Router) SetupAPIRoutes(engine *gin.Engine, guards ...gin.HandlerFunc) {
	api := engine.Group("/api", guards...)
	{
		api.GET("/governance-power/:wallet", r.powerHandler.GetPower)
		api.POST("/governance-power", r.powerHandler.GetPowers)
	}
}

// SetupHealthRoutes configures health check routes
func (r *Router) SetupHealthRoutes(engine *gin.Engine) {
	health := engine.Group("/health")
	{
		health.GET("", r.healthHandler.GetHealth)
		health.GET("/live", r.healthHandler.GetLiveness)
		health.GET("/ready", r.healthHandler.GetReadiness)
		health.GET("/db", r.healthHandler.GetDatabaseHealth)
		health.GET("/rpc", r.healthHandler.GetRPCHealth)
	}
}

// SetupMonitoringRoutes configures the metrics and status routes
func (r *Router) SetupMonitoringRoutes(engine *gin.Engine) {
	engine.GET("/metrics", r.statusHandler.GetMetrics)
	engine.GET("/status", r.statusHandler.GetStatus)
}
