package app

import (
	"io"
	"log/slog"
)

// newLogger builds the application's isolated logger on the given
// writer; App points it at the error stream so log records never mix
// into the bitstream output. Level and format strings are validated by
// the CLI layer, so anything unrecognized here degrades to info/text
// instead of failing the run.
func newLogger(levelStr, formatStr string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(levelStr)}
	if formatStr == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
