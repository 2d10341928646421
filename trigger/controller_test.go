package trigger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

// recorder implements every UI handle and logs each mutation in order.
// Only enabled is read from other goroutines.
type recorder struct {
	disabled atomic.Bool
	events   []string
	status   []string
}

func newRecorder() *recorder { return &recorder{} }

func (r *recorder) Enabled() bool { return !r.disabled.Load() }

func (r *recorder) SetEnabled(enabled bool) {
	r.disabled.Store(!enabled)
	if enabled {
		r.events = append(r.events, "enable")
	} else {
		r.events = append(r.events, "disable")
	}
}

func (r *recorder) Show() { r.events = append(r.events, "show") }
func (r *recorder) Hide() { r.events = append(r.events, "hide") }

func (r *recorder) SetStatus(text string) {
	r.events = append(r.events, "status")
	r.status = append(r.status, text)
}

func (r *recorder) handles() Handles {
	return Handles{Control: r, Busy: r, Status: r}
}

func (r *recorder) lastStatus() string {
	if len(r.status) == 0 {
		return ""
	}
	return r.status[len(r.status)-1]
}

func (r *recorder) count(event string) int {
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

// memSaver keeps saved artifacts in memory.
type memSaver struct {
	saved map[string][]byte
	err   error
}

func (m *memSaver) Save(name string, r io.Reader) (*SavedFile, error) {
	if m.err != nil {
		return nil, m.err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	m.saved[name] = b
	return &SavedFile{Name: name, Path: name, Size: int64(len(b))}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTrigger_Success(t *testing.T) {
	ui := newRecorder()
	type seen struct {
		method, path string
		bodyLen      int64
		enabled      bool
	}
	requests := make(chan seen, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests <- seen{r.Method, r.URL.RequestURI(), r.ContentLength, ui.Enabled()}
		w.Header().Set("Content-Disposition", `attachment; filename="report.xlsx"`)
		_, _ = w.Write([]byte("xlsx-bytes"))
	}))
	defer srv.Close()

	saver := &memSaver{}
	c := New(srv.URL, ui.handles(), saver, WithLogger(quietLogger()))

	out, err := c.Trigger(context.Background())
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	req := <-requests
	if req.method != http.MethodPost || req.path != "/run-scraper" {
		t.Errorf("request = %s %s, want POST /run-scraper", req.method, req.path)
	}
	if req.bodyLen > 0 {
		t.Errorf("request carried a body of %d bytes", req.bodyLen)
	}
	if req.enabled {
		t.Error("control enabled while the request was in flight")
	}
	if out.Kind != OutcomeDownloaded {
		t.Fatalf("Kind = %v, want downloaded", out.Kind)
	}
	if got := string(saver.saved["report.xlsx"]); got != "xlsx-bytes" {
		t.Errorf("saved %q under report.xlsx", got)
	}
	if ui.lastStatus() != StatusComplete {
		t.Errorf("status = %q", ui.lastStatus())
	}

	want := []string{"disable", "show", "status", "status", "enable", "hide"}
	if strings.Join(ui.events, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v", ui.events, want)
	}
	if ui.status[0] != StatusInProgress {
		t.Errorf("first status = %q", ui.status[0])
	}
}

func TestTrigger_FilenameHeader(t *testing.T) {
	tests := []struct {
		name        string
		disposition string
		want        string
	}{
		{"quoted", `attachment; filename="report.xlsx"`, "report.xlsx"},
		{"unquoted", `attachment; filename=report.xlsx`, "report.xlsx"},
		{"absent", "", DefaultFilename},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.disposition != "" {
					w.Header().Set("Content-Disposition", tt.disposition)
				}
				_, _ = w.Write([]byte("data"))
			}))
			defer srv.Close()

			saver := &memSaver{}
			c := New(srv.URL, newRecorder().handles(), saver, WithLogger(quietLogger()))
			out, err := c.Trigger(context.Background())
			if err != nil {
				t.Fatalf("Trigger: %v", err)
			}
			if out.Filename != tt.want {
				t.Errorf("Filename = %q, want %q", out.Filename, tt.want)
			}
			if _, ok := saver.saved[tt.want]; !ok {
				t.Errorf("nothing saved under %q", tt.want)
			}
		})
	}
}

func TestTrigger_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Scraper failed: timeout"))
	}))
	defer srv.Close()

	ui := newRecorder()
	saver := &memSaver{}
	c := New(srv.URL, ui.handles(), saver, WithLogger(quietLogger()))

	out, err := c.Trigger(context.Background())
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if out.Kind != OutcomeHTTPError || out.StatusCode != http.StatusInternalServerError {
		t.Errorf("outcome = %v/%d", out.Kind, out.StatusCode)
	}
	if ui.lastStatus() != "Error: Scraper failed: timeout" {
		t.Errorf("status = %q", ui.lastStatus())
	}
	if len(saver.saved) != 0 {
		t.Errorf("download triggered on error: %v", saver.saved)
	}
	if !ui.Enabled() || ui.count("enable") != 1 || ui.count("hide") != 1 {
		t.Errorf("cleanup not run exactly once: %v", ui.events)
	}
}

func TestTrigger_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close() // nothing listens any more

	ui := newRecorder()
	c := New(url, ui.handles(), &memSaver{}, WithLogger(quietLogger()))

	out, err := c.Trigger(context.Background())
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if out.Kind != OutcomeTransportError || out.Err == nil {
		t.Errorf("outcome = %+v", out)
	}
	if ui.lastStatus() != StatusNoConnect {
		t.Errorf("status = %q", ui.lastStatus())
	}
	if !ui.Enabled() {
		t.Error("control not re-enabled after transport failure")
	}
	if ui.count("enable") != 1 || ui.count("hide") != 1 {
		t.Errorf("cleanup not run exactly once: %v", ui.events)
	}
}

func TestTrigger_SaveError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data"))
	}))
	defer srv.Close()

	ui := newRecorder()
	c := New(srv.URL, ui.handles(), &memSaver{err: errors.New("disk full")}, WithLogger(quietLogger()))

	out, _ := c.Trigger(context.Background())
	if out.Kind != OutcomeSaveError {
		t.Fatalf("Kind = %v, want save_error", out.Kind)
	}
	if !strings.HasPrefix(ui.lastStatus(), "Error: ") {
		t.Errorf("status = %q", ui.lastStatus())
	}
	if !ui.Enabled() {
		t.Error("control not re-enabled after save failure")
	}
}

func TestTrigger_DisabledControl(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	ui := newRecorder()
	ui.disabled.Store(true)
	c := New(srv.URL, ui.handles(), &memSaver{}, WithLogger(quietLogger()))

	if _, err := c.Trigger(context.Background()); !errors.Is(err, ErrControlDisabled) {
		t.Fatalf("err = %v, want ErrControlDisabled", err)
	}
	if hits.Load() != 0 || len(ui.events) != 0 {
		t.Errorf("disabled control caused side effects: hits=%d events=%v", hits.Load(), ui.events)
	}
}

func TestTrigger_APIKeyHeader(t *testing.T) {
	keys := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys <- r.Header.Get("X-API-Key")
	}))
	defer srv.Close()

	c := New(srv.URL+"/", newRecorder().handles(), &memSaver{},
		WithAPIKey("k1"), WithLogger(quietLogger()))
	if c.Endpoint() != srv.URL+"/run-scraper" {
		t.Errorf("Endpoint = %q", c.Endpoint())
	}
	if _, err := c.Trigger(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := <-keys; got != "k1" {
		t.Errorf("X-API-Key = %q, want k1", got)
	}
}

func TestTrigger_SavesToDirectory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", "attachment; filename=beta-results.xlsx")
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	c := New(srv.URL, newRecorder().handles(), DirSaver{Dir: dir}, WithLogger(quietLogger()))

	out, err := c.Trigger(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "beta-results.xlsx")
	if out.File == nil || out.File.Path != want {
		t.Fatalf("File = %+v, want path %s", out.File, want)
	}
	b, err := os.ReadFile(want)
	if err != nil || string(b) != "payload" {
		t.Errorf("file content = %q, err = %v", b, err)
	}
}

func TestTrigger_SharedGateRefusesSecondCaller(t *testing.T) {
	arrived := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(arrived)
		<-release
		_, _ = w.Write([]byte("data"))
	}))
	defer srv.Close()

	gate := NewGate()
	handles := Handles{Control: gate, Busy: NopBusy{}, Status: StatusFunc(func(string) {})}
	first := New(srv.URL, handles, &memSaver{}, WithLogger(quietLogger()))
	second := New(srv.URL, handles, &memSaver{}, WithLogger(quietLogger()))

	done := make(chan error, 1)
	go func() {
		_, err := first.Trigger(context.Background())
		done <- err
	}()
	<-arrived

	if _, err := second.Trigger(context.Background()); !errors.Is(err, ErrControlDisabled) {
		t.Errorf("second Trigger err = %v, want ErrControlDisabled", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first Trigger: %v", err)
	}
	if !gate.Enabled() {
		t.Error("gate not re-enabled after the first interaction")
	}
}
