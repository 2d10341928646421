// Command taxscrape-trigger asks a taxscrape server to run a scrape job and
// saves the spreadsheet it returns.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/use-agent/taxscrape/config"
	"github.com/use-agent/taxscrape/logging"
	"github.com/use-agent/taxscrape/trigger"
)

func main() {
	cfg := config.LoadClient()

	serverURL := flag.String("server", cfg.ServerURL, "base URL of the taxscrape server")
	outDir := flag.String("out", cfg.DownloadDir, "directory downloads are saved to")
	apiKey := flag.String("api-key", cfg.APIKey, "API key sent as X-API-Key")
	interactive := flag.Bool("interactive", false, "press Enter to start each scrape; q to quit")
	flag.Parse()

	// Status lines go to stdout, diagnostics to stderr.
	logger := logging.New(cfg.Log, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console := trigger.NewConsole(os.Stdout)
	ctrl := trigger.New(*serverURL,
		trigger.Handles{Control: trigger.NewGate(), Busy: console, Status: console},
		trigger.DirSaver{Dir: *outDir},
		trigger.WithAPIKey(*apiKey),
		trigger.WithLogger(logger),
	)

	if !*interactive {
		out, err := ctrl.Trigger(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if out.Kind != trigger.OutcomeDownloaded {
			os.Exit(1)
		}
		fmt.Println(out.File.Path)
		return
	}

	if err := loop(ctx, ctrl); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loop triggers one scrape per line read from stdin until EOF, "q" or ctx
// is cancelled.
func loop(ctx context.Context, ctrl *trigger.Controller) error {
	fmt.Printf("Press Enter to run the scraper at %s (q to quit).\n", ctrl.Endpoint())

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok || strings.EqualFold(strings.TrimSpace(line), "q") {
				return nil
			}
			out, err := ctrl.Trigger(ctx)
			if errors.Is(err, trigger.ErrControlDisabled) {
				continue
			}
			if err != nil {
				return err
			}
			if out.File != nil {
				fmt.Printf("Saved %s (%d bytes)\n", out.File.Path, out.File.Size)
			}
		}
	}
}
