// Package context carries request-scoped values (trace, caller) for logging.
package context

import (
	"context"

	"github.com/google/uuid"
)

// TraceContext identifies the request or background job a log line belongs to.
type TraceContext struct {
	TraceID   string
	SpanID    string
	RequestID string
}

type traceContextKey struct{}

// WithTrace adds TraceContext to context.
func WithTrace(ctx context.Context, trace *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// GetTrace returns TraceContext from context.
func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	return nil
}

// ForJob starts a trace for one run of a background job. The request id is
// prefixed with the job name so worker logs group by job.
func ForJob(ctx context.Context, job string) context.Context {
	id := uuid.New()
	return WithTrace(ctx, &TraceContext{
		TraceID:   id.String(),
		SpanID:    id.String()[:16],
		RequestID: job + "-" + uuid.New().String()[:8],
	})
}
