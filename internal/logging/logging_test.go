package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewHandlerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, "info", "json"))
	logger.Debug("hidden")
	logger.Info("tag registered", "tag_id", "FS-0001")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec["tag_id"] != "FS-0001" {
		t.Errorf("tag_id = %v", rec["tag_id"])
	}
}

func TestNewHandlerPretty(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, "debug", "pretty"))
	logger.Debug("qr batch exported", "count", 3)

	if !strings.Contains(buf.String(), "qr batch exported") {
		t.Errorf("output missing message: %q", buf.String())
	}
}
