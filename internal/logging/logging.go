// Package logging sets up the process-wide slog logger. Every binary calls
// Init once at startup; all packages log through the default logger so the
// service tag travels with every line.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init installs a handler for LOG_FORMAT ("json" or "text"; anything else
// gets json) tagged with the service name, and returns the logger.
func Init(service, format string) *slog.Logger {
	var h slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "text":
		h = slog.NewTextHandler(os.Stdout, nil)
	default:
		h = slog.NewJSONHandler(os.Stdout, nil)
	}

	logger := slog.New(h).With("service", service)
	slog.SetDefault(logger)
	return logger
}
