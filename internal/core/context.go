package core

import "context"

type contextKey string

const ctxKeySessionID contextKey = "table_session"

// ContextWithSessionID attaches the table session id for logging.
func ContextWithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeySessionID, id)
}

// SessionIDFromContext extracts the table session id, or "".
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeySessionID).(string); ok {
		return v
	}
	return ""
}
