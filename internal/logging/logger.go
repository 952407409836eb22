// Package logging provides structured logging configuration using log/slog.
//
// This package integrates with chi's RequestID middleware and the table
// session cookie so every log entry for a request carries request_id and,
// once a session is resolved, session.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/JonMunkholm/ParkingTable/internal/core"
	"github.com/go-chi/chi/v5/middleware"
)

// Setup configures the global slog logger based on level and format and
// returns it.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
func Setup(level, format string) *slog.Logger {
	logger := New(os.Stdout, level, format)
	slog.SetDefault(logger)
	return logger
}

// New builds a logger writing to w without touching the global default.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// FromContext returns the default logger enriched with request context.
//
// Usage:
//
//	func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
//	    logger := logging.FromContext(r.Context())
//	    logger.Info("deleting sensor", "id", id)
//	}
func FromContext(ctx context.Context) *slog.Logger {
	return enrich(ctx, slog.Default())
}

// WithFields returns a request logger with additional structured fields.
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}

func enrich(ctx context.Context, logger *slog.Logger) *slog.Logger {
	// Chi's RequestID middleware stores the ID in context
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	if sessionID := core.SessionIDFromContext(ctx); sessionID != "" {
		logger = logger.With("session", shortID(sessionID))
	}
	return logger
}

// shortID keeps log lines readable; the prefix is enough to correlate.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
