// Package logger builds the structured slog.Logger shared by the monitor's
// components. Production environments log JSON; every other environment logs
// human-readable text.
package logger
