package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestModuleLoggerCarriesModuleAttr(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithHandler(slog.NewJSONHandler(&buf, nil))

	l.Module("state").Info("snapshot created", "root", "0xabc")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if entry["module"] != "state" {
		t.Errorf("module = %v, want state", entry["module"])
	}
	if entry["root"] != "0xabc" {
		t.Errorf("root = %v, want 0xabc", entry["root"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.name); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSetDefaultIgnoresNil(t *testing.T) {
	before := Default()
	SetDefault(nil)
	if Default() != before {
		t.Error("SetDefault(nil) replaced the default logger")
	}
}
