package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"propertyleads/internal/service"

	"github.com/gin-gonic/gin"
)

// respondError maps service errors to status codes. Unknown errors are logged
// and reported without detail.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidSetting):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrAgentNotFound):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown agent"})
	case errors.Is(err, service.ErrAgentSuspended):
		c.JSON(http.StatusForbidden, gin.H{"error": "Account suspended"})
	case errors.Is(err, service.ErrLeadNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Lead not found"})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Lead was modified concurrently, retry"})
	case errors.Is(err, service.ErrLeadExpired):
		c.JSON(http.StatusGone, gin.H{"error": "Lead assignment has expired", "code": "LEAD_EXPIRED"})
	default:
		logger.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
