package middleware

import "context"

type contextKey string

const (
	ctxAccountID   contextKey = "account_id"
	ctxAccountKind contextKey = "account_kind"
)

func AccountIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxAccountID).(string); ok {
		return v
	}
	return ""
}

func AccountKindFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxAccountKind).(string); ok {
		return v
	}
	return ""
}

// WithAccountID injects the authenticated account into the context.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxAccountID, accountID)
}

// WithAccountKind injects the authenticated account's kind into the context.
func WithAccountKind(ctx context.Context, kind string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxAccountKind, kind)
}
