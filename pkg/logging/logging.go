// Package logging configures colored structured logging with tint.
//
// Usage:
//
//	logging.Setup()                          // level from HEARTH_LOG_LEVEL env
//	logging.SetupWithLevel(slog.LevelDebug)  // explicit level override
//	logging.SetupWithLevel(logging.ParseLevel(cfg.LogLevel))
//
// Never pass key material, invite codes or passwords as log attributes.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Setup configures colored logging at the level specified by the
// HEARTH_LOG_LEVEL env var (default: INFO).
func Setup() {
	SetupWithLevel(ParseLevel(os.Getenv("HEARTH_LOG_LEVEL")))
}

// SetupWithLevel configures colored logging at the given level.
func SetupWithLevel(level slog.Level) {
	slog.SetDefault(New(os.Stderr, level))
}

// New returns a tint logger writing to w.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(
		tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		}),
	)
}

// ParseLevel maps debug, info, warn and error to slog levels. Anything
// else is INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
