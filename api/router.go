package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/taxscrape/api/handler"
	"github.com/use-agent/taxscrape/api/middleware"
	"github.com/use-agent/taxscrape/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:      Recovery → Logger
//	run-scraper: Auth (if enabled) → RateLimit
//
// Health stays outside auth so monitoring probes always work.
func NewRouter(jobs *handler.Jobs, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/api/v1/health", handler.Health(jobs, startTime))

	protected := r.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.POST("/run-scraper", handler.RunScraper(jobs, cfg.Export.Filename))

	return r
}
