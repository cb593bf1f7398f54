package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pubkeyapp/realms-vsr-holders/internal/models"
	"github.com/pubkeyapp/realms-vsr-holders/internal/services"
	"github.com/pubkeyapp/realms-vsr-holders/pkg/logger"
)

// Context keys set for handlers after authentication
const (
	APIKeyContextKey     = "api_key"
	APIKeyIDContextKey   = "api_key_id"
	APIKeyNameContextKey = "api_key_name"
)

// AuthMiddleware creates a middleware for API key authentication
func AuthMiddleware(authService services.AuthServiceInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.GetLogger().WithContext(c.Request.Context())

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.Warn("Missing API key in Authorization header",
				zap.String("client_ip", c.ClientIP()),
				zap.String("user_agent", c.Request.UserAgent()),
			)
			models.HandleError(c, models.NewAppErrorWithDetails(
				models.ErrorCodeMissingAPIKey,
				"API key is required",
				"Provide API key in Authorization header",
			), log)
			return
		}

		apiKey := parseAPIKey(authHeader)
		if apiKey == "" {
			models.HandleError(c, models.NewAppErrorWithDetails(
				models.ErrorCodeInvalidAPIKey,
				"Invalid API key format",
				"API key cannot be empty",
			), log)
			return
		}

		validatedKey, err := authService.ValidateAPIKey(c.Request.Context(), apiKey)
		if err != nil {
			log.Warn("API key validation failed",
				zap.Error(err),
				zap.String("client_ip", c.ClientIP()),
			)

			var appErr *models.AppError
			switch {
			case errors.Is(err, services.ErrInvalidAPIKey):
				appErr = models.NewAuthenticationError(models.ErrorCodeInvalidAPIKey, "Invalid API key")
			case errors.Is(err, services.ErrInactiveAPIKey):
				appErr = models.NewAuthenticationError(models.ErrorCodeInactiveAPIKey, "API key is inactive")
			case errors.Is(err, services.ErrDatabaseError):
				appErr = models.NewDatabaseError("Authentication service unavailable", err)
			default:
				appErr = models.NewAppErrorWithCause(models.ErrorCodeInvalidAPIKey, "Authentication failed", err)
			}
			models.HandleError(c, appErr, log)
			return
		}

		c.Set(APIKeyContextKey, validatedKey)
		c.Set(APIKeyIDContextKey, validatedKey.ID.Hex())
		c.Set(APIKeyNameContextKey, validatedKey.Name)

		ctx := logger.ContextWithUserID(c.Request.Context(), validatedKey.ID.Hex())
		c.Request = c.Request.WithContext(ctx)

		log.Debug("Authentication successful",
			zap.String("api_key_id", validatedKey.ID.Hex()),
			zap.String("api_key_name", validatedKey.Name),
		)

		c.Next()
	}
}

// parseAPIKey accepts "Bearer <key>", "Bearer<key>" or a bare key
func parseAPIKey(header string) string {
	key := strings.TrimSpace(header)
	if len(key) >= 6 && strings.EqualFold(key[:6], "bearer") {
		key = strings.TrimSpace(key[6:])
	}
	return key
}
