// Package log builds the configured slog.Logger used by the makcu CLI and
// example programs.
package log

import (
	"io"
	"log/slog"
	"os"
)

// ParseLevel maps a level name to its slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup returns a text-handler logger writing to stderr, or to file when a
// path is given. The returned closer is nil when logging to stderr.
func Setup(level, file string) (*slog.Logger, io.Closer, error) {
	lvl := ParseLevel(level)
	var w io.Writer = os.Stderr
	var closer io.Closer
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, err
		}
		w = f
		closer = f
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
	return logger, closer, nil
}
