package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pubkeyapp/realms-vsr-holders/internal/models"
	"github.com/pubkeyapp/realms-vsr-holders/internal/services"
	"github.com/pubkeyapp/realms-vsr-holders/pkg/logger"
)

// PowerHandler handles governance power HTTP requests
type PowerHandler struct {
	powerService services.PowerServiceInterface
}

// NewPowerHandler creates a new PowerHandler instance
func NewPowerHandler(powerService services.PowerServiceInterface) *PowerHandler {
	return &PowerHandler{
		powerService: powerService,
	}
}

// GetPower handles GET /api/governance-power/:wallet requests
func (h *PowerHandler) GetPower(c *gin.Context) {
	wallet := c.Param("wallet")
	ctx := logger.ContextWithWallet(c.Request.Context(), wallet)
	c.Request = c.Request.WithContext(ctx)
	log := logger.GetLogger().WithContext(ctx)

	result, cached, err := h.powerService.GetPower(ctx, wallet)
	if err != nil {
		models.HandleError(c, err, log)
		return
	}

	if result.Source == models.SourceError {
		log.Warn("Governance power resolution failed", zap.String("error", result.Error))
	} else {
		log.Info("Governance power resolved",
			zap.String("source", string(result.Source)),
			zap.Float64("total_power", result.TotalGovernancePower),
			zap.Bool("cached", cached),
		)
	}

	c.JSON(http.StatusOK, result)
}

// GetPowers handles POST /api/governance-power requests
func (h *PowerHandler) GetPowers(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())

	var req models.PowerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid JSON in request",
			zap.Error(err),
			zap.String("content_type", c.GetHeader("Content-Type")),
		)
		models.HandleError(c, models.NewAppErrorWithDetails(
			models.ErrorCodeMalformedJSON,
			"Invalid JSON format",
			err.Error(),
		), log)
		return
	}

	response, err := h.powerService.GetPowers(c.Request.Context(), req.Wallets)
	if err != nil {
		models.HandleError(c, err, log)
		return
	}

	log.Info("Governance power batch completed",
		zap.Int("wallet_count", len(response.Results)),
		zap.Bool("all_cached", response.Cached),
	)

	c.JSON(http.StatusOK, response)
}
