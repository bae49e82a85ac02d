package log

import (
	"context"
)

type logContextKeyType struct{}

var logContextKey = logContextKeyType{}

// Logging metadata carried on a context. Never mutated after creation, so no locking is needed.
type metadata map[string]any

func (m metadata) Flat() []any {
	out := []any{}
	for k, v := range m {
		out = append(out, k, v)
	}
	return out
}

// WithLogValues returns a child context whose log lines will include the given key/value pairs
func WithLogValues(ctx context.Context, args ...string) context.Context {
	oldMetadata, _ := ctx.Value(logContextKey).(metadata)
	newMetadata := metadata{}
	for k, v := range oldMetadata {
		newMetadata[k] = v
	}
	for i := 1; i < len(args); i += 2 {
		newMetadata[args[i-1]] = args[i]
	}
	return context.WithValue(ctx, logContextKey, newMetadata)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return WithLogValues(ctx, "request_id", requestID)
}

// RequestID returns the request ID attached with WithRequestID, or "" if there isn't one
func RequestID(ctx context.Context) string {
	meta, _ := ctx.Value(logContextKey).(metadata)
	requestID, _ := meta["request_id"].(string)
	return requestID
}

func LogCtx(ctx context.Context, message string, args ...any) {
	requestID, allArgs := ctxArgs(ctx, args)
	if requestID == "" {
		LogNoRequestID(message, allArgs...)
	} else {
		Log(requestID, message, allArgs...)
	}
}

func LogCtxError(ctx context.Context, message string, err error, args ...any) {
	requestID, allArgs := ctxArgs(ctx, args)
	if requestID == "" {
		LogErrorNoRequestID(message, err, allArgs...)
	} else {
		LogError(requestID, message, err, allArgs...)
	}
}

func ctxArgs(ctx context.Context, args []any) (string, []any) {
	meta, _ := ctx.Value(logContextKey).(metadata)
	requestID, _ := meta["request_id"].(string)
	allArgs := append([]any{}, meta.Flat()...)
	return requestID, append(allArgs, args...)
}
