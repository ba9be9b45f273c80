package handler

import (
	"context"
	"net/http"
	"time"

	"wallet-service/internal/adapter/http/dto"
	"wallet-service/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const pingTimeout = 2 * time.Second

// HealthCheck handles GET /health. Each dependency gets its own ping deadline so
// one hung backend cannot stall the probe. Ping errors are logged, never returned.
func HealthCheck(log zerolog.Logger, checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		deps := make(map[string]dto.DependencyStatus, len(checkers))
		allHealthy := true

		for _, checker := range checkers {
			ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
			err := checker.Ping(ctx)
			cancel()
			if err != nil {
				log.Error().Err(err).Str("dependency", checker.Name()).Msg("health check failed")
				deps[checker.Name()] = dto.DependencyStatus{Status: "unhealthy"}
				allHealthy = false
			} else {
				deps[checker.Name()] = dto.DependencyStatus{Status: "healthy"}
			}
		}

		resp := dto.HealthResponse{Status: "healthy", Dependencies: deps}
		httpCode := http.StatusOK
		if !allHealthy {
			resp.Status = "degraded"
			httpCode = http.StatusServiceUnavailable
		}

		c.JSON(httpCode, resp)
	}
}
