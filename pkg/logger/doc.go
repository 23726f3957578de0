// Package logger provides structured logging with configurable log levels.
// It wraps log/slog: JSON output in prod, text output elsewhere, with service
// and environment attributes on every record.
package logger
