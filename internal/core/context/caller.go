package context

import (
	"context"
)

// Caller identifies who issued the current command. It is attached for log
// enrichment only; business code receives tenant scope as an explicit argument.
type Caller struct {
	TenantID  string
	CompanyID string
	UserID    string
}

type callerKey struct{}

// WithCaller adds Caller to context.
func WithCaller(ctx context.Context, c *Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// GetCaller returns Caller from context.
func GetCaller(ctx context.Context) *Caller {
	if v, ok := ctx.Value(callerKey{}).(*Caller); ok {
		return v
	}
	return nil
}
