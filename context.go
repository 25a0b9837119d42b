package moodjournal

import (
	"context"

	"github.com/MrEthical07/moodjournal/pipeline"
)

// WithRequestID makes requests issued with ctx carry id as X-Request-Id
// instead of a generated one.
func WithRequestID(ctx context.Context, id string) context.Context {
	return pipeline.WithRequestID(ctx, id)
}

func RequestIDFromContext(ctx context.Context) string {
	return pipeline.RequestIDFromContext(ctx)
}
