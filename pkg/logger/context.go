package logger

import (
	"context"
	"os"

	"go.opentelemetry.io/otel/trace"

	appctx "medcore/internal/core/context"
)

type loggerKey struct{}

// WithContext adds request, span and caller fields found in ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	sugar := l.SugaredLogger

	if t := appctx.GetTrace(ctx); t != nil {
		sugar = sugar.With("trace_id", t.TraceID, "request_id", t.RequestID)
	} else if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		sugar = sugar.With("trace_id", sc.TraceID().String())
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasSpanID() {
		sugar = sugar.With("span_id", sc.SpanID().String())
	}

	if c := appctx.GetCaller(ctx); c != nil {
		fields := []any{"tenant_id", c.TenantID, "user_id", c.UserID}
		if c.CompanyID != "" {
			fields = append(fields, "company_id", c.CompanyID)
		}
		sugar = sugar.With(fields...)
	}

	return &Logger{sugar}
}

// WithLogger attaches l to ctx. The package-level helpers pick it up.
func WithLogger(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the attached logger, or Default, enriched from ctx.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey{}).(*Logger); ok {
		return l.WithContext(ctx)
	}
	return Default().WithContext(ctx)
}

// Debug logs at debug level from context.
func Debug(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Debugw(msg, keysAndValues...)
}

// Info logs at info level from context.
func Info(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Infow(msg, keysAndValues...)
}

// Warn logs at warn level from context.
func Warn(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Warnw(msg, keysAndValues...)
}

// Error logs at error level from context.
func Error(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Errorw(msg, keysAndValues...)
}

// Fatal logs at fatal level and exits.
func Fatal(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Errorw(msg, keysAndValues...)
	_ = FromContext(ctx).Sync()
	os.Exit(1)
}
