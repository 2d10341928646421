package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/taxscrape/config"
	"github.com/use-agent/taxscrape/models"
	"github.com/ysmood/gson"
)

// RodEngine renders pages in a headless Chromium. The browser is launched
// on first use so a server that never escalates never starts Chrome.
type RodEngine struct {
	cfg  config.EngineConfig
	name string

	mu      sync.Mutex
	browser *rod.Browser
}

// NewRodEngine creates a RodEngine. With cfg.Stealth set, pages are opened
// with stealth evasions and the engine reports itself as "rod-stealth".
func NewRodEngine(cfg config.EngineConfig) *RodEngine {
	name := "rod"
	if cfg.Stealth {
		name = "rod-stealth"
	}
	return &RodEngine{cfg: cfg, name: name}
}

func (e *RodEngine) Name() string { return e.name }

func (e *RodEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	browser, err := e.ensureBrowser()
	if err != nil {
		return nil, err
	}

	var page *rod.Page
	if e.cfg.Stealth {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to open page", err)
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			slog.Warn("rod_engine: close page", "error", closeErr)
		}
	}()

	if len(req.Headers) > 0 {
		if err := (proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(req.Headers)}).Call(page); err != nil {
			slog.Warn("rod_engine: extra headers not applied", "error", err)
		}
	}

	p := page.Context(ctx)
	if err := p.Navigate(req.URL); err != nil {
		return nil, fmt.Errorf("%s: navigate: %w", e.name, err)
	}
	if err := p.WaitLoad(); err != nil {
		return nil, fmt.Errorf("%s: wait load: %w", e.name, err)
	}

	html, err := p.HTML()
	if err != nil {
		return nil, fmt.Errorf("%s: read html: %w", e.name, err)
	}

	finalURL := req.URL
	if info, infoErr := p.Info(); infoErr == nil {
		finalURL = info.URL
	}

	return &FetchResult{
		HTML:       []byte(html),
		FinalURL:   finalURL,
		EngineName: e.name,
	}, nil
}

// Close kills the browser if it was started.
func (e *RodEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.browser == nil {
		return nil
	}
	err := e.browser.Close()
	e.browser = nil
	return err
}

func (e *RodEngine) ensureBrowser() (*rod.Browser, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.browser != nil {
		return e.browser, nil
	}

	l := launcher.New().
		Headless(e.cfg.Headless).
		NoSandbox(e.cfg.NoSandbox)
	if e.cfg.BrowserBin != "" {
		l = l.Bin(e.cfg.BrowserBin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}
	e.browser = browser
	return browser, nil
}

// toHeadersMap converts a plain string map to proto.NetworkHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
