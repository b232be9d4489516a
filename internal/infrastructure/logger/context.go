package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey      contextKey = "logger"
	tenantIDKey    contextKey = "tenant_id"
	terminalIDKey  contextKey = "terminal_id"
	operationIDKey contextKey = "operation_id"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the attached logger, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// WithTenantID tags the context with the issuing tenant
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

// WithTerminalID tags the context with the point-of-sale terminal
func WithTerminalID(ctx context.Context, terminalID string) context.Context {
	return context.WithValue(ctx, terminalIDKey, terminalID)
}

// WithOperationID tags the context with a correlation ID for one command
func WithOperationID(ctx context.Context, operationID string) context.Context {
	return context.WithValue(ctx, operationIDKey, operationID)
}

func stringValue(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// GetTenantID retrieves the tenant ID from context
func GetTenantID(ctx context.Context) string { return stringValue(ctx, tenantIDKey) }

// GetTerminalID retrieves the terminal ID from context
func GetTerminalID(ctx context.Context) string { return stringValue(ctx, terminalIDKey) }

// GetOperationID retrieves the operation ID from context
func GetOperationID(ctx context.Context) string { return stringValue(ctx, operationIDKey) }

// Fields returns the correlation fields carried by ctx: trace and span IDs
// of the active span plus tenant, terminal and operation tags.
func Fields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		fields = append(fields,
			zap.String("trace_id", spanCtx.TraceID().String()),
			zap.String("span_id", spanCtx.SpanID().String()),
		)
	}
	if v := GetTenantID(ctx); v != "" {
		fields = append(fields, zap.String("tenant_id", v))
	}
	if v := GetTerminalID(ctx); v != "" {
		fields = append(fields, zap.String("terminal_id", v))
	}
	if v := GetOperationID(ctx); v != "" {
		fields = append(fields, zap.String("operation_id", v))
	}
	return fields
}

// L returns base enriched with the correlation fields of ctx.
// A nil base falls back to the logger attached to ctx.
//
// Usage: logger.L(ctx, s.logger).Info("fiscal document transitioned", ...)
func L(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		base = FromContext(ctx)
	}
	fields := Fields(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
