package handler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/use-agent/taxscrape/export"
	"github.com/use-agent/taxscrape/models"
	"github.com/use-agent/taxscrape/webhook"
	"golang.org/x/sync/singleflight"
)

// Runner runs one full scrape and returns the accounts found.
type Runner interface {
	Run(ctx context.Context) ([]models.TaxAccount, error)
}

// Artifact is the finished output of one job.
type Artifact struct {
	JobID    string
	Data     []byte
	Accounts int
}

// Jobs runs scrape jobs one at a time. Callers arriving while a job is in
// flight wait for it and receive the same artifact.
type Jobs struct {
	runner Runner
	base   context.Context
	notify *webhook.Notifier
	group  singleflight.Group

	mu        sync.Mutex
	running   bool
	lastJobID string
}

// NewJobs creates a Jobs. Jobs run under base rather than the request
// context so one client hanging up does not fail the others sharing it.
// notify may be nil.
func NewJobs(base context.Context, runner Runner, notify *webhook.Notifier) *Jobs {
	return &Jobs{runner: runner, base: base, notify: notify}
}

// Run starts a job or joins the one in flight. shared reports the latter.
func (j *Jobs) Run() (art *Artifact, shared bool, err error) {
	v, err, shared := j.group.Do("run-scraper", func() (interface{}, error) {
		art, err := j.run()
		j.announce(art, err)
		return art, err
	})
	if err != nil {
		return nil, shared, err
	}
	return v.(*Artifact), shared, nil
}

// Status reports whether a job is running and the last job started.
func (j *Jobs) Status() (running bool, lastJobID string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running, j.lastJobID
}

func (j *Jobs) run() (*Artifact, error) {
	jobID := uuid.NewString()
	j.mu.Lock()
	j.running, j.lastJobID = true, jobID
	j.mu.Unlock()
	defer func() {
		j.mu.Lock()
		j.running = false
		j.mu.Unlock()
	}()

	start := time.Now()
	slog.Info("scraper job started", "jobID", jobID)

	accounts, err := j.runner.Run(j.base)
	if err != nil {
		slog.Error("scraper job failed", "jobID", jobID, "error", err)
		return nil, withJobID(err, jobID)
	}
	if len(accounts) == 0 {
		slog.Info("scraper job found nothing", "jobID", jobID)
		return nil, withJobID(models.NewScrapeError(models.ErrCodeNoResults, "No results found.", nil), jobID)
	}

	var buf bytes.Buffer
	if err := export.WriteWorkbook(&buf, accounts); err != nil {
		slog.Error("scraper job export failed", "jobID", jobID, "error", err)
		return nil, withJobID(models.NewScrapeError(models.ErrCodeExport, "could not build the spreadsheet", err), jobID)
	}

	slog.Info("scraper job finished",
		"jobID", jobID,
		"accounts", len(accounts),
		"bytes", buf.Len(),
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	)
	return &Artifact{JobID: jobID, Data: buf.Bytes(), Accounts: len(accounts)}, nil
}

func (j *Jobs) announce(art *Artifact, err error) {
	if j.notify == nil {
		return
	}
	if err == nil {
		j.notify.Notify(&webhook.Event{Type: webhook.EventJobCompleted, JobID: art.JobID, Accounts: art.Accounts})
		return
	}
	ev := &webhook.Event{Type: webhook.EventJobFailed, JobID: jobIDOf(err), Error: err.Error()}
	var se *models.ScrapeError
	if errors.As(err, &se) {
		ev.ErrorCode, ev.Error = se.Code, se.Message
	}
	j.notify.Notify(ev)
}

// jobError carries the failed job's ID to the handler.
type jobError struct {
	jobID string
	err   error
}

func (e *jobError) Error() string { return e.err.Error() }
func (e *jobError) Unwrap() error { return e.err }

func withJobID(err error, jobID string) error {
	return &jobError{jobID: jobID, err: err}
}

// jobIDOf returns the job ID attached to err, if any.
func jobIDOf(err error) string {
	var je *jobError
	if errors.As(err, &je) {
		return je.jobID
	}
	return ""
}
