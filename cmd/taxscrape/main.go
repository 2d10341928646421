package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/taxscrape/api"
	"github.com/use-agent/taxscrape/api/handler"
	"github.com/use-agent/taxscrape/cache"
	"github.com/use-agent/taxscrape/config"
	"github.com/use-agent/taxscrape/engine"
	"github.com/use-agent/taxscrape/logging"
	"github.com/use-agent/taxscrape/scraper"
	"github.com/use-agent/taxscrape/webhook"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	logging.Init(cfg.Log, os.Stdout)
	slog.Info("taxscrape starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"queries", len(cfg.Scraper.Queries),
		"maxPages", cfg.Scraper.MaxPages,
	)

	// ── 3. Fetch engines ────────────────────────────────────────────
	var fetcher engine.Engine = engine.NewHTTPEngine()
	if cfg.Engine.BrowserFallback {
		rodEngine := engine.NewRodEngine(cfg.Engine)
		defer rodEngine.Close()

		engines := []engine.Engine{fetcher, rodEngine}
		fetcher = engine.NewDispatcher(engines, cfg.Engine.EscalationDelays, time.Hour)
		slog.Info("browser fallback enabled",
			"engines", len(engines),
			"delays", cfg.Engine.EscalationDelays,
		)
	}

	// ── 4. Results cache and scraper ────────────────────────────────
	cc := cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	defer cc.Close()

	sc := scraper.NewScraper(fetcher, cc, cfg.Scraper)

	// Jobs outlive individual requests but not the process.
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()
	jobs := handler.NewJobs(jobCtx, sc, webhook.New(cfg.Webhook.URL, cfg.Webhook.Secret))

	// ── 5. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(jobs, cfg, startTime)

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
		cancelJobs()
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("taxscrape stopped")
}
