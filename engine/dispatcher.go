package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Dispatcher coordinates staged escalation across engines. It starts the
// lightest engine first and starts heavier ones after their delay if no
// engine has succeeded yet. The winning engine is remembered for preferTTL
// and tried alone on the next fetch.
type Dispatcher struct {
	engines          []Engine
	escalationDelays []time.Duration
	preferTTL        time.Duration

	mu           sync.Mutex
	preferred    string
	preferredExp time.Time
	now          func() time.Time
}

// NewDispatcher creates a Dispatcher. engines[i] starts after
// escalationDelays[i]; missing delays default to 0.
func NewDispatcher(engines []Engine, escalationDelays []time.Duration, preferTTL time.Duration) *Dispatcher {
	delays := make([]time.Duration, len(engines))
	copy(delays, escalationDelays)
	return &Dispatcher{
		engines:          engines,
		escalationDelays: delays,
		preferTTL:        preferTTL,
		now:              time.Now,
	}
}

// Name reports the dispatcher as an Engine.
func (d *Dispatcher) Name() string { return "dispatcher" }

// Fetch implements Engine so a Dispatcher can stand wherever one engine can.
func (d *Dispatcher) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if name := d.preferredEngine(); name != "" {
		for _, eng := range d.engines {
			if eng.Name() != name {
				continue
			}
			result, err := eng.Fetch(ctx, req)
			if err == nil {
				return result, nil
			}
			slog.Info("preferred engine failed, running full race",
				"engine", name, "error", err)
			d.setPreferred("")
			break
		}
	}
	return d.race(ctx, req)
}

func (d *Dispatcher) race(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if len(d.engines) == 0 {
		return nil, fmt.Errorf("dispatcher: no engines configured")
	}

	type raceResult struct {
		result *FetchResult
		err    error
	}

	raceCtx, raceCancel := context.WithCancel(ctx)
	defer raceCancel()

	results := make(chan raceResult, len(d.engines))
	var wg sync.WaitGroup

	for i, eng := range d.engines {
		wg.Add(1)
		go func(e Engine, delay time.Duration) {
			defer wg.Done()

			if delay > 0 {
				timer := time.NewTimer(delay)
				defer timer.Stop()
				select {
				case <-raceCtx.Done():
					return
				case <-timer.C:
				}
			}
			if raceCtx.Err() != nil {
				return
			}

			slog.Debug("engine starting", "engine", e.Name(), "url", req.URL)
			result, err := e.Fetch(raceCtx, req)
			if err != nil {
				slog.Debug("engine failed", "engine", e.Name(), "url", req.URL, "error", err)
			}
			results <- raceResult{result: result, err: err}
		}(eng, d.escalationDelays[i])
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var lastErr error
	for rr := range results {
		if rr.err != nil {
			lastErr = rr.err
			continue
		}
		raceCancel()
		slog.Debug("engine won race", "engine", rr.result.EngineName, "url", req.URL)
		d.setPreferred(rr.result.EngineName)
		return rr.result, nil
	}

	if lastErr == nil {
		lastErr = ctx.Err()
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("dispatcher: all engines failed for %s", req.URL)
	}
	return nil, lastErr
}

func (d *Dispatcher) preferredEngine() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.preferred == "" || d.now().After(d.preferredExp) {
		return ""
	}
	return d.preferred
}

func (d *Dispatcher) setPreferred(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.preferred = name
	d.preferredExp = d.now().Add(d.preferTTL)
}
