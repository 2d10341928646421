package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/taxscrape/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Health returns a handler for GET /api/v1/health.
func Health(jobs *Jobs, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		running, lastJobID := jobs.Status()

		status := "healthy"
		if running {
			status = "busy"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:     status,
			Uptime:     time.Since(startTime).Round(time.Second).String(),
			JobRunning: running,
			LastJobID:  lastJobID,
			Version:    Version,
		})
	}
}
