package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pricescout/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// StatsSource reports session statistics.
type StatsSource interface {
	Stats() models.SessionStats
}

// Health returns a handler for GET /api/v1/health.
//
// Degrades status when the session is closed or > 80% of pages are active.
func Health(sc StatsSource, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := sc.Stats()

		status := "healthy"
		if stats.State == "closed" ||
			(stats.MaxPages > 0 && stats.ActivePages > int(float64(stats.MaxPages)*0.8)) {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:       status,
			Uptime:       time.Since(startTime).Round(time.Second).String(),
			SessionStats: stats,
			Version:      Version,
		})
	}
}
