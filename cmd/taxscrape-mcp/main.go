package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/taxscrape/config"
	"github.com/use-agent/taxscrape/logging"
	"github.com/use-agent/taxscrape/trigger"
)

func main() {
	cfg := config.LoadClient()

	// stdout carries the MCP protocol; logs must stay on stderr.
	logger := logging.New(cfg.Log, os.Stderr)

	s := server.NewMCPServer(
		"taxscrape",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	runTool := mcp.NewTool("run_scraper",
		mcp.WithDescription("Run the property tax scraper on the taxscrape server and save the resulting spreadsheet. A job usually takes several minutes."),
		mcp.WithString("out_dir",
			mcp.Description("Directory the spreadsheet is saved to (defaults to TAXSCRAPE_DOWNLOAD_DIR)"),
		),
	)

	gate := trigger.NewGate()
	s.AddTool(runTool, handleRunScraper(cfg, gate, logger))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// handleRunScraper shares one gate across calls so a second call made while
// a job runs is refused instead of queued.
func handleRunScraper(cfg *config.ClientConfig, gate *trigger.Gate, logger *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dir := request.GetString("out_dir", cfg.DownloadDir)

		var mu sync.Mutex
		var lines []string
		status := trigger.StatusFunc(func(text string) {
			mu.Lock()
			lines = append(lines, text)
			mu.Unlock()
		})

		ctrl := trigger.New(cfg.ServerURL,
			trigger.Handles{Control: gate, Busy: trigger.NopBusy{}, Status: status},
			trigger.DirSaver{Dir: dir},
			trigger.WithAPIKey(cfg.APIKey),
			trigger.WithLogger(logger),
		)

		out, err := ctrl.Trigger(ctx)
		if err != nil {
			return mcp.NewToolResultError("a scrape is already running; try again when it finishes"), nil
		}
		logger.Info("run_scraper finished", "outcome", out.Kind.String(), "status", out.StatusCode)

		if out.Kind != trigger.OutcomeDownloaded {
			return mcp.NewToolResultError(out.Message), nil
		}

		mu.Lock()
		defer mu.Unlock()
		var b strings.Builder
		for _, l := range lines {
			b.WriteString(l)
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "Saved: %s\nSize: %d bytes\nSHA-256: %s\n", out.File.Path, out.File.Size, out.File.SHA256)
		return mcp.NewToolResultText(b.String()), nil
	}
}
