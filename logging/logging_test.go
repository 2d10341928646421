package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/use-agent/taxscrape/config"
)

func TestNew_JSONByDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LogConfig{Level: "info"}, &buf)

	logger.Info("job finished", "accounts", 3)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if line["msg"] != "job finished" {
		t.Errorf("msg = %v", line["msg"])
	}
}

func TestNew_LevelFilter(t *testing.T) {
	tests := []struct {
		level     string
		debugSeen bool
		warnSeen  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"", false, true},
		{"error", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(config.LogConfig{Level: tt.level, Format: "text"}, &buf)

			logger.Debug("debug-line")
			logger.Warn("warn-line")

			out := buf.String()
			if got := strings.Contains(out, "debug-line"); got != tt.debugSeen {
				t.Errorf("debug visible = %v, want %v", got, tt.debugSeen)
			}
			if got := strings.Contains(out, "warn-line"); got != tt.warnSeen {
				t.Errorf("warn visible = %v, want %v", got, tt.warnSeen)
			}
		})
	}
}
