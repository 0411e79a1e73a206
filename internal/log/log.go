// Package log provides the logging infrastructure shared by all toolhub
// components.
//
// This package provides:
//   - A type alias for *slog.Logger to use as DI dependency
//   - Factory functions to create configured loggers
//   - A Nop logger for testing
//
// Loggers are injected through constructors, never read from globals.
// Components add context via logger.With().
//
// The MCP server speaks newline-delimited JSON on stdout, so every logger in
// this repository writes to stderr (or an injected writer in tests). Nothing
// may ever log to stdout while the stdio transport is attached.
//
// Usage:
//
//	logger := log.New(log.Config{Level: slog.LevelDebug})
//
//	fileToolset := tools.NewFileToolset(ws, logger.With("component", "file"))
//	server, err := mcp.NewServer(mcp.Config{Logger: logger.With("component", "mcp"), ...})
//
//	// In tests, use a Nop logger or capture to a buffer:
//	testLogger := log.NewNop()
//	var buf bytes.Buffer
//	testLogger = log.NewWithWriter(&buf, log.Config{})
package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger is a type alias for *slog.Logger.
// Using the standard library type directly provides:
//   - Full compatibility with the slog ecosystem
//   - Access to With() for adding context
//   - No need for custom interface definitions
//
// Components should accept log.Logger as a dependency.
type Logger = *slog.Logger

// Config defines logger configuration options.
type Config struct {
	// Level sets the minimum log level. Default: slog.LevelInfo
	Level slog.Level

	// JSON enables JSON format output. Default: false (text format)
	JSON bool

	// AddSource adds source file information to log entries. Default: false
	AddSource bool
}

// New creates a new logger with the given configuration.
// Output is written to os.Stderr, keeping stdout free for protocol frames.
func New(cfg Config) Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter creates a new logger that writes to the specified writer.
// Useful for testing or custom output destinations.
func NewWithWriter(w io.Writer, cfg Config) Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// NewNop creates a logger that discards all output.
//
// WARNING: This should ONLY be used in tests. Never use NewNop() in production
// code as it will silently discard all logs, making debugging impossible.
func NewNop() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel converts a configuration string ("debug", "info", "warn",
// "error") to a slog.Level. Unknown values fall back to Info.
func ParseLevel(s string) slog.Level {
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
