// Package ctxmanage carries per-request values through context.
package ctxmanage

import (
	"context"

	"github.com/gin-gonic/gin"
)

type key int

const traceIDKey key = iota

// WithTraceID returns a context carrying the request trace id.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID extracts the trace id from ctx, empty string when absent.
func TraceID(ctx context.Context) string {
	v, _ := ctx.Value(traceIDKey).(string)
	return v
}

// GetTraceIdOfRequest reads the trace id the logger middleware stored on the
// gin request context.
func GetTraceIdOfRequest(c *gin.Context) string {
	return TraceID(c.Request.Context())
}
