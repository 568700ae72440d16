// Package logging carries request-scoped slog loggers and lightweight spans.
package logging

import (
	"io"
	"log/slog"
)

// New returns the service logger: JSON lines at level, tagged with the
// service name. Source locations are included at debug level.
func New(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	})
	return slog.New(handler).With(slog.String("service", "image-vault"))
}
