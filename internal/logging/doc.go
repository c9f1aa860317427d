// Package logging builds the slog loggers used by sbustui. The TUI owns the
// terminal, so interactive sessions log to a file only; headless commands
// also write to stderr.
package logging
