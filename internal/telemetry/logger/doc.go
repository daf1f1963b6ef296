// Package logger provides structured logging for keymesh.
//
// It configures the standard library log/slog with JSON (default) or text
// output and a process-wide dynamic level, so a config reload can raise or
// lower verbosity without restarting the server.
package logger
