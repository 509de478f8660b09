// Package logger holds the process-wide structured logger used by the
// allocators and the CLI.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// EnvLogAlloc names the environment variable that turns allocator debug
// logging on (to stderr) without code changes.
const EnvLogAlloc = "PAGEZONE_LOG_ALLOC"

// L is the global logger instance. It's initialized to discard all output by
// default, unless EnvLogAlloc is set. Call Init() to reconfigure it.
var L = fromEnv()

// Options configures the logger initialization.
type Options struct {
	Enabled bool       // If false, all logging is discarded
	Output  io.Writer  // Destination. Default: os.Stderr
	Level   slog.Level // Minimum log level. Default: LevelInfo when enabled
	JSON    bool       // Emit JSON records instead of key=value text
}

// Init configures logging. Call from main() before any log calls.
// If opts.Enabled is false, all log output is discarded.
func Init(opts Options) {
	L = New(opts)
}

// New builds a logger from opts without touching the global one.
func New(opts Options) *slog.Logger {
	if !opts.Enabled {
		return Discard()
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	hopts := &slog.HandlerOptions{Level: opts.Level}
	if opts.JSON {
		return slog.New(slog.NewJSONHandler(out, hopts))
	}
	return slog.New(slog.NewTextHandler(out, hopts))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Or returns l when it is non-nil and the global logger otherwise.
func Or(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return L
}

func fromEnv() *slog.Logger {
	if os.Getenv(EnvLogAlloc) == "" {
		return Discard()
	}
	return New(Options{Enabled: true, Level: slog.LevelDebug})
}

// Debug logs a debug message with optional key-value pairs.
func Debug(msg string, args ...any) { L.Debug(msg, args...) }

// Info logs an info message with optional key-value pairs.
func Info(msg string, args ...any) { L.Info(msg, args...) }

// Warn logs a warning message with optional key-value pairs.
func Warn(msg string, args ...any) { L.Warn(msg, args...) }

// Error logs an error message with optional key-value pairs.
func Error(msg string, args ...any) { L.Error(msg, args...) }
