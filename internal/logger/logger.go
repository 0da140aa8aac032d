// Package logger holds the process logger shared by the pool report sink and
// the command-line tools.
// Author: momentics <momentics@gmail.com>
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// L is the global logger instance. It writes warnings and above to stderr
// until Init is called.
var L = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

// Options configures the logger initialization.
type Options struct {
	Output io.Writer  // Destination. Default: os.Stderr
	Level  slog.Level // Minimum log level
	JSON   bool       // Emit JSON records instead of key=value text
}

// Init replaces L according to opts.
func Init(opts Options) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: opts.Level}
	if opts.JSON {
		L = slog.New(slog.NewJSONHandler(out, hopts))
		return
	}
	L = slog.New(slog.NewTextHandler(out, hopts))
}

// Discard silences all output.
func Discard() {
	L = slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
