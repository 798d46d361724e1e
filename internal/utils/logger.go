package utils

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger returns a slog.Logger configured for the desired verbosity and
// format. Output goes to stderr so CLI result output stays clean on stdout.
func NewLogger(level string, json bool) *slog.Logger {
	return NewLoggerTo(os.Stderr, level, json)
}

// NewLoggerTo is NewLogger with an explicit sink, used by tests and the MCP
// server (which must keep stdout reserved for the protocol).
func NewLoggerTo(w io.Writer, level string, json bool) *slog.Logger {
	handlerLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		handlerLevel = slog.LevelDebug
	case "warn":
		handlerLevel = slog.LevelWarn
	case "error":
		handlerLevel = slog.LevelError
	}

	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: handlerLevel})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: handlerLevel})
	}

	return slog.New(handler)
}
