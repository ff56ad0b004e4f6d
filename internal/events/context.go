package events

import (
	"context"
	"os"
)

type contextKey int

const (
	loggerKey contextKey = iota
	documentPathKey
)

// FromContext extracts the logger from a context, falling back to the
// process default.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey).(*Logger); ok {
		return l
	}
	return defaultLogger
}

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// WithDocumentPath tags the context (and its logger) with the document
// path being operated on.
func WithDocumentPath(ctx context.Context, path string) context.Context {
	logger := FromContext(ctx).WithField("document", path)
	ctx = context.WithValue(ctx, documentPathKey, path)
	return WithLogger(ctx, logger)
}

// GetDocumentPath retrieves the document path from the context.
func GetDocumentPath(ctx context.Context) string {
	if p, ok := ctx.Value(documentPathKey).(string); ok {
		return p
	}
	return ""
}

var defaultLogger = &Logger{
	level:  InfoLevel,
	format: "text",
	output: os.Stderr,
	fields: make(map[string]interface{}),
}

// SetDefault sets the process default logger used when a context does not
// carry one.
func SetDefault(logger *Logger) {
	defaultLogger = logger
}
