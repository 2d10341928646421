package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeEngine struct {
	name  string
	delay time.Duration
	err   error
	calls atomic.Int32
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &FetchResult{HTML: []byte(f.name), FinalURL: req.URL, EngineName: f.name}, nil
}

func TestDispatcher_FirstEngineWins(t *testing.T) {
	httpEng := &fakeEngine{name: "http"}
	rodEng := &fakeEngine{name: "rod"}
	d := NewDispatcher([]Engine{httpEng, rodEng}, []time.Duration{0, time.Second}, time.Minute)

	res, err := d.Fetch(context.Background(), &FetchRequest{URL: "https://example.test"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.EngineName != "http" {
		t.Errorf("winner = %s, want http", res.EngineName)
	}
	if rodEng.calls.Load() != 0 {
		t.Error("escalated engine started although the first one succeeded")
	}
}

func TestDispatcher_EscalatesOnFailure(t *testing.T) {
	httpEng := &fakeEngine{name: "http", err: errors.New("blocked")}
	rodEng := &fakeEngine{name: "rod"}
	d := NewDispatcher([]Engine{httpEng, rodEng}, []time.Duration{0, 10 * time.Millisecond}, time.Minute)

	res, err := d.Fetch(context.Background(), &FetchRequest{URL: "https://example.test"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.EngineName != "rod" {
		t.Errorf("winner = %s, want rod", res.EngineName)
	}

	// The winner is remembered and tried alone next time.
	httpCalls := httpEng.calls.Load()
	if _, err := d.Fetch(context.Background(), &FetchRequest{URL: "https://example.test"}); err != nil {
		t.Fatal(err)
	}
	if httpEng.calls.Load() != httpCalls {
		t.Error("preferred engine was not tried alone")
	}
}

func TestDispatcher_AllFail(t *testing.T) {
	wantErr := errors.New("down")
	d := NewDispatcher([]Engine{
		&fakeEngine{name: "http", err: wantErr},
		&fakeEngine{name: "rod", err: wantErr},
	}, nil, time.Minute)

	if _, err := d.Fetch(context.Background(), &FetchRequest{URL: "u"}); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}

func TestDispatcher_NoEngines(t *testing.T) {
	d := NewDispatcher(nil, nil, time.Minute)
	if _, err := d.Fetch(context.Background(), &FetchRequest{URL: "u"}); err == nil {
		t.Error("expected error without engines")
	}
}

func TestDispatcher_PreferenceExpires(t *testing.T) {
	d := NewDispatcher([]Engine{&fakeEngine{name: "http"}}, nil, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	d.setPreferred("http")
	if d.preferredEngine() != "http" {
		t.Fatal("preference not stored")
	}
	now = now.Add(2 * time.Minute)
	if d.preferredEngine() != "" {
		t.Error("preference outlived its TTL")
	}
}
