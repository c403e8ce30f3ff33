package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	appctx "medcore/internal/core/context"
)

func observed() (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return FromZap(zap.New(core)), logs
}

func TestWithContext_AddsTraceAndCaller(t *testing.T) {
	l, logs := observed()

	ctx := appctx.WithTrace(context.Background(), &appctx.TraceContext{TraceID: "t-1", RequestID: "r-1"})
	ctx = appctx.WithCaller(ctx, &appctx.Caller{TenantID: "ten", UserID: "nurse"})

	l.WithContext(ctx).Infow("posted", "doc", "INV-2026-00001")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "t-1", fields["trace_id"])
	assert.Equal(t, "r-1", fields["request_id"])
	assert.Equal(t, "ten", fields["tenant_id"])
	assert.Equal(t, "nurse", fields["user_id"])
	assert.NotContains(t, fields, "company_id")
	assert.Equal(t, "INV-2026-00001", fields["doc"])
}

func TestPackageHelpers_UseAttachedLogger(t *testing.T) {
	l, logs := observed()
	ctx := WithLogger(context.Background(), l.WithComponent("poster"))

	Warn(ctx, "reconcile mismatch", "delta", "0.01")
	Debug(ctx, "detail")

	require.Equal(t, 2, logs.Len())
	first := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, first.Level)
	assert.Equal(t, "poster", first.ContextMap()["component"])
}

func TestDefault_SetDefault(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	l, logs := observed()
	SetDefault(l)

	Info(context.Background(), "hello")
	assert.Equal(t, 1, logs.Len())
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	l, err := New(Config{Level: "chatty", OutputPaths: []string{"stderr"}, Service: "medcore"})
	require.NoError(t, err)
	assert.False(t, l.Desugar().Core().Enabled(zapcore.DebugLevel))
	assert.True(t, l.Desugar().Core().Enabled(zapcore.InfoLevel))
}
