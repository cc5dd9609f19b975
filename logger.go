package fragdb

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with fragdb-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithDocument adds a document id field to the logger.
func (l *Logger) WithDocument(documentID string) *Logger {
	return &Logger{
		Logger: l.Logger.With("document_id", documentID),
	}
}

// LogIngest logs an ingest operation.
func (l *Logger) LogIngest(ctx context.Context, documentID string, chunks int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "ingest failed",
			"document_id", documentID,
			"chunks", chunks,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "ingest completed",
			"document_id", documentID,
			"chunks", chunks,
		)
	}
}

// LogQuery logs a query operation.
func (l *Logger) LogQuery(ctx context.Context, k, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed",
			"k", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "query completed",
			"k", k,
			"results", resultsFound,
		)
	}
}

// LogDelete logs a delete operation.
func (l *Logger) LogDelete(ctx context.Context, documentID string, chunks int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"document_id", documentID,
			"chunks", chunks,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "delete completed",
			"document_id", documentID,
			"chunks", chunks,
		)
	}
}

// LogSnapshot logs a snapshot save or load.
func (l *Logger) LogSnapshot(ctx context.Context, prefix string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"prefix", prefix,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot saved",
			"prefix", prefix,
		)
	}
}

// LogReconcile logs a reconciliation pass.
func (l *Logger) LogReconcile(ctx context.Context, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "reconciliation failed",
			"duration", duration,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "reconciliation completed",
			"duration", duration,
		)
	}
}
