package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New creates a console slog.Logger with provided level string.
func New(level string) *slog.Logger {
	return NewWithWriter(level, os.Stdout)
}

// NewWithWriter is New for an arbitrary destination; "json" in the level
// string (e.g. "info,json") switches to the JSON handler.
func NewWithWriter(level string, w io.Writer) *slog.Logger {
	lvl, asJSON := parse(level)
	opts := &slog.HandlerOptions{Level: lvl}
	if asJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parse(value string) (slog.Level, bool) {
	level := slog.LevelInfo
	asJSON := false
	for _, part := range strings.Split(value, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "json":
			asJSON = true
		case "debug":
			level = slog.LevelDebug
		case "error":
			level = slog.LevelError
		case "warn", "warning":
			level = slog.LevelWarn
		case "info":
			level = slog.LevelInfo
		}
	}
	return level, asJSON
}
