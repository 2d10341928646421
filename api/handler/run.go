package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/taxscrape/export"
	"github.com/use-agent/taxscrape/models"
)

// RunScraper returns a handler for POST /run-scraper.
//
// The request carries no body. On success the response is the workbook as
// an attachment named filename. Failures are answered in plain text so
// the caller can show them as is.
func RunScraper(jobs *Jobs, filename string) gin.HandlerFunc {
	return func(c *gin.Context) {
		art, shared, err := jobs.Run()
		if err != nil {
			if id := jobIDOf(err); id != "" {
				c.Header("X-Job-ID", id)
			}
			respondError(c, err)
			return
		}

		if shared {
			slog.Info("joined in-flight scraper job", "jobID", art.JobID, "clientIP", c.ClientIP())
		}
		c.Header("Content-Disposition", "attachment; filename="+filename)
		c.Header("X-Job-ID", art.JobID)
		c.Data(http.StatusOK, export.ContentType, art.Data)
	}
}

// respondError maps err to a status code and a plain-text body.
func respondError(c *gin.Context, err error) {
	var scrapeErr *models.ScrapeError
	if !errors.As(err, &scrapeErr) {
		scrapeErr = models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
	}

	msg := "Scraper failed: " + scrapeErr.Message
	if scrapeErr.Code == models.ErrCodeNoResults {
		msg = scrapeErr.Message
	}
	c.Data(mapErrorToStatus(scrapeErr), "text/plain; charset=utf-8", []byte(msg))
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeNoResults:
		return http.StatusNotFound // 404
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeFetch, models.ErrCodeParse:
		return http.StatusBadGateway // 502
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
