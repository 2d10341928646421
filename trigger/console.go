package trigger

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// Gate is a Control backed by an atomic flag. It starts enabled.
type Gate struct {
	disabled atomic.Bool
}

// NewGate returns an enabled Gate.
func NewGate() *Gate { return &Gate{} }

func (g *Gate) Enabled() bool { return !g.disabled.Load() }

func (g *Gate) SetEnabled(enabled bool) { g.disabled.Store(!enabled) }

// TryDisable disables the gate and reports whether it was enabled.
func (g *Gate) TryDisable() bool { return g.disabled.CompareAndSwap(false, true) }

var spinnerFrames = []rune{'|', '/', '-', '\\'}

// Console renders the busy indicator and status lines on a terminal.
// It implements both BusyIndicator and StatusDisplay so the spinner and
// status output never interleave mid-line.
type Console struct {
	mu       sync.Mutex
	w        io.Writer
	interval time.Duration
	spinning bool
	stop     chan struct{}
	done     chan struct{}
}

// NewConsole creates a Console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w, interval: 120 * time.Millisecond}
}

// Show starts the spinner. Calling Show while it is running is a no-op.
func (c *Console) Show() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.spinning {
		return
	}
	c.spinning = true
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.spin(c.stop, c.done)
}

// Hide stops the spinner and clears its line.
func (c *Console) Hide() {
	c.mu.Lock()
	if !c.spinning {
		c.mu.Unlock()
		return
	}
	c.spinning = false
	stop, done := c.stop, c.done
	c.mu.Unlock()

	close(stop)
	<-done

	c.mu.Lock()
	fmt.Fprint(c.w, "\r\033[K")
	c.mu.Unlock()
}

// SetStatus prints text on its own line.
func (c *Console) SetStatus(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.spinning {
		fmt.Fprint(c.w, "\r\033[K")
	}
	fmt.Fprintln(c.w, text)
}

func (c *Console) spin(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	start := time.Now()
	for i := 0; ; i++ {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			fmt.Fprintf(c.w, "\r%c %s", spinnerFrames[i%len(spinnerFrames)],
				time.Since(start).Round(time.Second))
			c.mu.Unlock()
		}
	}
}

// StatusFunc adapts a function to StatusDisplay.
type StatusFunc func(text string)

func (f StatusFunc) SetStatus(text string) { f(text) }

// NopBusy is a BusyIndicator for callers without a visible surface.
type NopBusy struct{}

func (NopBusy) Show() {}
func (NopBusy) Hide() {}
