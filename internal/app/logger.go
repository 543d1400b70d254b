package app

import (
	"io"
	"log/slog"
	"strings"
)

// newLogger builds the service logger. Unknown levels fall back to info and
// anything other than "json" renders as text. Debug output carries source
// locations.
func newLogger(level, format string, outW io.Writer) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl, AddSource: lvl <= slog.LevelDebug}

	var h slog.Handler = slog.NewTextHandler(outW, opts)
	if format == "json" {
		h = slog.NewJSONHandler(outW, opts)
	}
	return slog.New(h).With("service", ServiceName)
}
