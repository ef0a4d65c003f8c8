// Package logging constructs the process logger. The logger is built once at
// startup from the runtime mode and level override, then injected into each
// component; level and formatting are immutable for the process lifetime.
package logging

import (
	"io"
	"log/slog"

	"github.com/optiohire/optiohire-api/internal/config"
)

// New returns a logger writing to w. Production mode emits JSON with a minimum
// level of info; development mode emits human-readable text at debug. An
// explicit level override wins in either mode.
func New(w io.Writer, runtime config.RuntimeConfig) *slog.Logger {
	level := slog.LevelInfo
	if runtime.IsDevelopment() {
		level = slog.LevelDebug
	}
	if l, ok := parseLevel(runtime.LogLevel); ok {
		level = l
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if runtime.IsDevelopment() {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}

func parseLevel(s string) (slog.Level, bool) {
	switch s {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return 0, false
	}
}
