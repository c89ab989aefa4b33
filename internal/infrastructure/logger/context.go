package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey    contextKey = "logger"
	requestIDKey contextKey = "request_id"
	datasetIDKey contextKey = "dataset_id"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the context logger, or fallback when none is attached,
// enriched with the request, dataset and trace identifiers found in ctx.
func FromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	l, ok := ctx.Value(loggerKey).(*zap.Logger)
	if !ok || l == nil {
		l = fallback
	}
	if l == nil {
		return zap.NewNop()
	}
	return enrich(ctx, l)
}

// WithRequestID stores the request ID in ctx
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithDatasetID stores the dataset version being processed in ctx
func WithDatasetID(ctx context.Context, datasetID string) context.Context {
	return context.WithValue(ctx, datasetIDKey, datasetID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// GetDatasetID retrieves the dataset version ID from context
func GetDatasetID(ctx context.Context) string {
	id, _ := ctx.Value(datasetIDKey).(string)
	return id
}

func enrich(ctx context.Context, l *zap.Logger) *zap.Logger {
	var fields []zap.Field
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		fields = append(fields,
			zap.String("trace_id", spanCtx.TraceID().String()),
			zap.String("span_id", spanCtx.SpanID().String()),
		)
	}
	if id := GetRequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if id := GetDatasetID(ctx); id != "" {
		fields = append(fields, zap.String("dataset_id", id))
	}
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}
