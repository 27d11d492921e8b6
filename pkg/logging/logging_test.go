package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q): expected %v, got %v", in, want, got)
		}
	}
}

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelWarn)

	logger.Info("quiet")
	logger.Warn("loud", "household_id", "h1")

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Errorf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, "loud") || !strings.Contains(out, "household_id") {
		t.Errorf("expected warn line with attributes, got %q", out)
	}
}
