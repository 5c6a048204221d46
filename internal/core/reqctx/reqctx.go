// Package reqctx carries per-request metadata through context.
package reqctx

import (
	"context"

	"docstitch/internal/core/id"
)

type requestIDKey struct{}

// WithRequestID stores the request id in context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the request id from context, or empty string.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// NewRequestID generates a fresh request id.
func NewRequestID() string {
	return id.New().String()
}
