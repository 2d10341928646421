// Package trigger starts a server-side scrape job and saves the artifact it
// returns.
//
// A Controller owns one user-facing action. Triggering it disables the
// control, shows a busy indicator and posts to /run-scraper. A successful
// response body is handed to a Saver under the name advertised in the
// Content-Disposition header; a failed one is surfaced in the status
// display. Whatever happens, the control is re-enabled and the busy
// indicator hidden before Trigger returns.
//
// The UI resources are passed in as handles so the same controller drives a
// terminal (see Console and Gate), an MCP tool or a test recorder.
package trigger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// RunPath is the fixed endpoint that starts a scrape job.
const RunPath = "/run-scraper"

// ErrControlDisabled is returned when Trigger is invoked while a previous
// interaction still holds the control.
var ErrControlDisabled = errors.New("trigger: control is disabled")

// Control is the action that starts a scrape. While disabled it ignores
// further invocations.
type Control interface {
	Enabled() bool
	SetEnabled(enabled bool)
}

// TryDisabler is implemented by controls that can check and disable in one
// atomic step. Trigger prefers it over Enabled followed by SetEnabled, so
// concurrent callers sharing the control cannot both get through.
type TryDisabler interface {
	TryDisable() bool
}

// BusyIndicator is shown for the duration of a request.
type BusyIndicator interface {
	Show()
	Hide()
}

// StatusDisplay shows one line of status text.
type StatusDisplay interface {
	SetStatus(text string)
}

// Saver persists a downloaded artifact under the given name.
type Saver interface {
	Save(name string, r io.Reader) (*SavedFile, error)
}

// Handles bundles the UI resources a Controller mutates. They are owned by
// the caller; the Controller is their only writer during Trigger.
type Handles struct {
	Control Control
	Busy    BusyIndicator
	Status  StatusDisplay
}

// OutcomeKind classifies how an interaction ended.
type OutcomeKind int

const (
	// OutcomeDownloaded means the artifact was saved.
	OutcomeDownloaded OutcomeKind = iota
	// OutcomeHTTPError means the server answered with a non-2xx status.
	OutcomeHTTPError
	// OutcomeTransportError means the request or body read did not complete.
	OutcomeTransportError
	// OutcomeSaveError means the body arrived but could not be written.
	OutcomeSaveError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeDownloaded:
		return "downloaded"
	case OutcomeHTTPError:
		return "http_error"
	case OutcomeTransportError:
		return "transport_error"
	case OutcomeSaveError:
		return "save_error"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome describes one finished interaction.
type Outcome struct {
	Kind OutcomeKind

	// StatusCode is the HTTP status, zero on transport errors.
	StatusCode int

	// Message is the final text written to the status display.
	Message string

	// Filename is the derived save name (downloads and save errors only).
	Filename string

	// File is populated when Kind is OutcomeDownloaded.
	File *SavedFile

	// Err carries the transport or save error for diagnostics.
	Err error
}

// Controller orchestrates one request/response/download cycle per Trigger.
type Controller struct {
	client   *http.Client
	endpoint string
	apiKey   string
	handles  Handles
	saver    Saver
	logger   *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Controller) { c.client = client }
}

// WithAPIKey sends key as X-API-Key on every request.
func WithAPIKey(key string) Option {
	return func(c *Controller) { c.apiKey = key }
}

// WithLogger sets the diagnostics logger (default: slog.Default()).
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// New creates a Controller posting to serverURL + RunPath.
func New(serverURL string, handles Handles, saver Saver, opts ...Option) *Controller {
	c := &Controller{
		client:   http.DefaultClient,
		endpoint: strings.TrimRight(serverURL, "/") + RunPath,
		handles:  handles,
		saver:    saver,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the URL the controller posts to.
func (c *Controller) Endpoint() string {
	return c.endpoint
}

// Trigger runs one interaction. It returns ErrControlDisabled without side
// effects when the control is already disabled; otherwise it always returns
// an Outcome, including for failed requests.
//
// ctx is passed to the transport as is. The controller applies no timeout
// of its own.
func (c *Controller) Trigger(ctx context.Context) (*Outcome, error) {
	if !c.acquire() {
		return nil, ErrControlDisabled
	}

	c.handles.Busy.Show()
	c.handles.Status.SetStatus(StatusInProgress)
	defer func() {
		c.handles.Control.SetEnabled(true)
		c.handles.Busy.Hide()
	}()

	out := c.run(ctx)
	c.handles.Status.SetStatus(out.Message)
	return out, nil
}

// acquire disables the control, reporting false if it already was.
func (c *Controller) acquire() bool {
	if td, ok := c.handles.Control.(TryDisabler); ok {
		return td.TryDisable()
	}
	if !c.handles.Control.Enabled() {
		return false
	}
	c.handles.Control.SetEnabled(false)
	return true
}

func (c *Controller) run(ctx context.Context) *Outcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, nil)
	if err != nil {
		return c.transportFailure(fmt.Errorf("trigger: build request: %w", err))
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return c.transportFailure(fmt.Errorf("trigger: request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, err := io.ReadAll(resp.Body)
		if err != nil {
			return c.transportFailure(fmt.Errorf("trigger: read error body: %w", err))
		}
		c.logger.Warn("scrape job rejected",
			"status", resp.StatusCode,
			"jobID", resp.Header.Get("X-Job-ID"),
		)
		return &Outcome{
			Kind:       OutcomeHTTPError,
			StatusCode: resp.StatusCode,
			Message:    statusErrorPrefix + string(text),
		}
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.transportFailure(fmt.Errorf("trigger: read body: %w", err))
	}

	name := FilenameFromDisposition(resp.Header.Get("Content-Disposition"))
	saved, err := c.saver.Save(name, bytes.NewReader(blob))
	if err != nil {
		c.logger.Error("saving download failed", "filename", name, "error", err)
		return &Outcome{
			Kind:       OutcomeSaveError,
			StatusCode: resp.StatusCode,
			Message:    statusErrorPrefix + "could not save " + name,
			Filename:   name,
			Err:        err,
		}
	}

	c.logger.Info("download saved",
		"path", saved.Path,
		"bytes", saved.Size,
		"sha256", saved.SHA256,
		"jobID", resp.Header.Get("X-Job-ID"),
	)
	return &Outcome{
		Kind:       OutcomeDownloaded,
		StatusCode: resp.StatusCode,
		Message:    StatusComplete,
		Filename:   name,
		File:       saved,
	}
}

func (c *Controller) transportFailure(err error) *Outcome {
	c.logger.Error("fetch error", "endpoint", c.endpoint, "error", err)
	return &Outcome{
		Kind:    OutcomeTransportError,
		Message: StatusNoConnect,
		Err:     err,
	}
}
