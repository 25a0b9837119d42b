package pipeline

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// HeaderRequestID carries the per-call correlation ID.
const HeaderRequestID = "X-Request-Id"

type requestIDContextKey struct{}

// WithRequestID attaches a request ID that outgoing requests reuse instead of
// generating their own.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

// RequestIDFromContext returns the ID set by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}

// ensureRequestID sets the header on req when absent. req must be owned by the caller.
func ensureRequestID(req *http.Request) string {
	if id := req.Header.Get(HeaderRequestID); id != "" {
		return id
	}
	id := RequestIDFromContext(req.Context())
	if id == "" {
		id = uuid.NewString()
	}
	req.Header.Set(HeaderRequestID, id)
	return id
}
