package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"unknown": slog.LevelInfo,
	}

	for input, want := range tests {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	log := NewLoggerWithWriter(&buf, "warn", "text")
	log.Info("hidden")
	log.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message leaked at warn level: %s", out)
	}

	if !strings.Contains(out, "shown") {
		t.Errorf("warn message missing: %s", out)
	}
}

func TestLogger_DebugLevel(t *testing.T) {
	var buf bytes.Buffer

	log := NewLoggerWithWriter(&buf, "debug", "text")
	log.Debug("now visible")

	if !strings.Contains(buf.String(), "now visible") {
		t.Errorf("debug message missing at debug level: %s", buf.String())
	}
}

func TestLogger_JSONWithAttributes(t *testing.T) {
	var buf bytes.Buffer

	log := NewLoggerWithWriter(&buf, "info", "json").With("run_id", "abc")
	log.Info("harvest complete", "articles", 3)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}

	if record["run_id"] != "abc" {
		t.Errorf("run_id = %v, want abc", record["run_id"])
	}

	if record["articles"] != float64(3) {
		t.Errorf("articles = %v, want 3", record["articles"])
	}
}
